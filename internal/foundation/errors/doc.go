// Package errors provides the classified error primitives used across assetpipe.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category, a severity and structured context. The CLI adapter maps categories to
// process exit codes; the pipeline uses severity to decide between notifying and
// aborting.
//
// The asset build taxonomy:
//   - ConfigError: unknown category, malformed pattern, overlapping outputs
//   - SourceMissingError: a transform's source root does not exist
//   - ProcessingError: a single file failed one chain step
//   - WriteError: a destination could not be written
//
// Example usage:
//
//	err := errors.ProcessingError("sass compilation failed").
//		WithContext("stage", "sass").
//		WithContext("file", "scss/style.scss").
//		WithCause(cause).
//		Build()
package errors
