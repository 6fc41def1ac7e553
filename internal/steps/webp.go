package steps

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	"github.com/gen2brain/webp"
	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// DefaultWebPQuality is the lossy quality used for JPEG sources.
const DefaultWebPQuality = 80

// WebPIndex reports whether the raster image at a build-root-relative path gets a
// .webp variant in the build.
type WebPIndex interface {
	HasWebP(rel string) bool
}

// ImageLocator maps a build-root-relative image path to the source file it is
// built from.
type ImageLocator func(rel string) (string, bool)

type webpVariant struct {
	data []byte
	keep bool
}

// WebPVariants encodes .webp variants and remembers, per source content, whether a
// variant is worth shipping. JPEGs are encoded lossy at the configured quality and
// PNGs losslessly; a variant that is not smaller than its original is dropped.
// The images transform and the page and stylesheet rewrites share one instance, so
// references only ever point at variants that are written.
type WebPVariants struct {
	quality int
	locate  ImageLocator
	encode  func(img image.Image, lossy bool) ([]byte, error)

	group singleflight.Group
	mu    sync.Mutex
	known map[[sha256.Size]byte]webpVariant
}

// NewWebPVariants returns an empty index. quality outside 1-100 selects
// DefaultWebPQuality. locate may be nil when no rewrite consults the index.
func NewWebPVariants(quality int, locate ImageLocator) *WebPVariants {
	if quality <= 0 || quality > 100 {
		quality = DefaultWebPQuality
	}
	v := &WebPVariants{quality: quality, locate: locate, known: make(map[[sha256.Size]byte]webpVariant)}
	v.encode = v.encodeImage
	return v
}

func (v *WebPVariants) encodeImage(img image.Image, lossy bool) ([]byte, error) {
	var buf bytes.Buffer
	if lossy {
		if err := webp.Encode(&buf, img, webp.Options{Quality: v.quality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Variant returns the .webp encoding of a PNG or JPEG and whether it is smaller than
// contents. Each distinct content is encoded once.
func (v *WebPVariants) Variant(contents []byte) ([]byte, bool, error) {
	key := sha256.Sum256(contents)
	v.mu.Lock()
	known, hit := v.known[key]
	v.mu.Unlock()
	if hit {
		return known.data, known.keep, nil
	}

	res, err, _ := v.group.Do(string(key[:]), func() (any, error) {
		img, format, err := image.Decode(bytes.NewReader(contents))
		if err != nil {
			return webpVariant{}, err
		}
		data, err := v.encode(img, format == "jpeg")
		if err != nil {
			return webpVariant{}, err
		}
		out := webpVariant{data: data, keep: len(data) < len(contents)}
		if !out.keep {
			out.data = nil
		}
		v.mu.Lock()
		v.known[key] = out
		v.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := res.(webpVariant)
	return out.data, out.keep, nil
}

// HasWebP implements WebPIndex. A .webp source next to the image counts as its
// variant.
func (v *WebPVariants) HasWebP(rel string) bool {
	if v.locate == nil {
		return false
	}
	if _, ok := v.locate(webpName(rel)); ok {
		return true
	}
	src, ok := v.locate(rel)
	if !ok {
		return false
	}
	contents, err := os.ReadFile(src)
	if err != nil {
		return false
	}
	_, keep, err := v.Variant(contents)
	if err != nil {
		slog.Debug("Image has no webp variant", logfields.Path(rel), logfields.Error(err))
		return false
	}
	return keep
}

// WebP adds a .webp sibling for every PNG and JPEG whose variant is smaller than the
// original. Originals are kept and an existing .webp source with the same name wins
// over the generated one.
func WebP(v *WebPVariants) pipeline.Step {
	return pipeline.StepFunc("webp", func(ctx context.Context, assets []*pipeline.Asset) ([]*pipeline.Asset, error) {
		present := make(map[string]bool, len(assets))
		for _, a := range assets {
			present[a.Path] = true
		}
		return pipeline.PerFile("webp", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
			target := webpName(a.Path)
			if !isRaster(a) || present[target] {
				return nil, nil
			}
			data, keep, err := v.Variant(a.Contents)
			if err != nil || !keep {
				return nil, err
			}
			return []*pipeline.Asset{{Path: target, Source: a.Source, Contents: data}}, nil
		}).Apply(ctx, assets)
	})
}

func isRaster(a *pipeline.Asset) bool {
	switch a.Ext() {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func webpName(p string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ".webp"
}

// resolveRef turns a URL found in the file at the build-root-relative path from into
// a build-root-relative path. External, data and escaping URLs do not resolve.
func resolveRef(from, ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "//") || strings.Contains(ref, ":") {
		return "", false
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	var p string
	if strings.HasPrefix(ref, "/") {
		p = path.Clean(strings.TrimPrefix(ref, "/"))
	} else {
		p = path.Join(path.Dir(from), ref)
	}
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}
