package steps

import (
	"context"
	"path"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// RenameMin inserts ".min" before the extension: css/style.css -> css/style.min.css.
func RenameMin() pipeline.Step {
	return pipeline.PerFile("rename-min", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		a.Path = minName(a.Path)
		return nil, nil
	})
}

func minName(p string) string {
	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	if strings.HasSuffix(stem, ".min") {
		return p
	}
	return stem + ".min" + ext
}
