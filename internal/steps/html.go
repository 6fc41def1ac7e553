package steps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// HTMLMin collapses whitespace and strips comments. Document tags, end tags and
// attribute quotes are kept so the output stays friendly to later rewrites.
func HTMLMin() pipeline.Step {
	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return pipeline.PerFile("htmlmin", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		out, err := m.Bytes("text/html", a.Contents)
		if err != nil {
			return nil, err
		}
		a.Contents = out
		return nil, nil
	})
}

// WebPHTML wraps raster <img> elements in a <picture> that offers the .webp variant
// first, for images idx has a variant of. outDir is the page output directory
// relative to the build root. Images already inside a <picture> are left alone.
func WebPHTML(idx WebPIndex, outDir string) pipeline.Step {
	return pipeline.PerFile("webp-html", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		from := path.Join(outDir, a.Path)
		out, err := rewritePictures(a.Contents, func(target string) bool {
			rel, ok := resolveRef(from, target)
			return ok && idx.HasWebP(rel)
		})
		if err != nil {
			return nil, err
		}
		a.Contents = out
		return nil, nil
	})
}

func rewritePictures(src []byte, hasWebP func(target string) bool) ([]byte, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var out bytes.Buffer
	out.Grow(len(src) + len(src)/8)
	pictureDepth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return out.Bytes(), nil
			}
			return nil, z.Err()
		}
		raw := bytes.Clone(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "picture":
				if tt == html.StartTagToken {
					pictureDepth++
				}
			case "img":
				if pictureDepth == 0 && hasAttr {
					if webp, target, ok := webpSource(z); ok && hasWebP(target) {
						out.WriteString(`<picture><source srcset="`)
						out.WriteString(html.EscapeString(webp))
						out.WriteString(`" type="image/webp">`)
						out.Write(raw)
						out.WriteString(`</picture>`)
						continue
					}
				}
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "picture" && pictureDepth > 0 {
				pictureDepth--
			}
		}
		out.Write(raw)
	}
}

// webpSource returns the .webp counterpart of the img src attribute when it points
// at a raster image, along with the image path stripped of query and fragment.
func webpSource(z *html.Tokenizer) (string, string, bool) {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "src" {
			return webpURL(string(val))
		}
		if !more {
			return "", "", false
		}
	}
}

func webpURL(src string) (string, string, bool) {
	if src == "" || strings.HasPrefix(src, "data:") {
		return "", "", false
	}
	u, suffix := src, ""
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u, suffix = u[:i], u[i:]
	}
	lower := strings.ToLower(u)
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		if strings.HasSuffix(lower, ext) {
			return u[:len(u)-len(ext)] + ".webp" + suffix, u, true
		}
	}
	return "", "", false
}
