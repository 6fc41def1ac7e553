package eventstore

import (
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.HistoryError("could not open history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = ferrors.HistoryError("failed to initialize history schema").Build()

	// ErrEventAppendFailed indicates appending a record failed.
	ErrEventAppendFailed = ferrors.HistoryError("failed to append history record").Build()

	// ErrEventQueryFailed indicates querying records failed.
	ErrEventQueryFailed = ferrors.HistoryError("failed to query history").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of a payload failed.
	ErrMarshalPayloadFailed = ferrors.HistoryError("failed to marshal history payload").Build()
)

func wrap(sentinel *ferrors.ClassifiedError, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryHistory, sentinel.Message()).Build()
}
