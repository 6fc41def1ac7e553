package steps

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Optimize re-encodes PNGs with increasingly aggressive strategies and keeps the
// smallest result, never growing a file. Level 0 disables it; 1 recompresses;
// 2 also tries a palette; 3 and above also try grayscale. JPEG and other formats
// pass through untouched since re-encoding them is lossy.
func Optimize(level int) pipeline.Step {
	return pipeline.PerFile("optimize", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		if level <= 0 || a.Ext() != ".png" {
			return nil, nil
		}
		img, err := png.Decode(bytes.NewReader(a.Contents))
		if err != nil {
			return nil, err
		}
		best := a.Contents
		for _, candidate := range pngCandidates(img, level) {
			var buf bytes.Buffer
			enc := png.Encoder{CompressionLevel: png.BestCompression}
			if err := enc.Encode(&buf, candidate); err != nil {
				return nil, err
			}
			if buf.Len() < len(best) {
				best = buf.Bytes()
			}
		}
		a.Contents = best
		return nil, nil
	})
}

func pngCandidates(img image.Image, level int) []image.Image {
	candidates := []image.Image{img}
	if level >= 2 {
		if p, ok := toPaletted(img); ok {
			candidates = append(candidates, p)
		}
	}
	if level >= 3 {
		if g, ok := toGray(img); ok {
			candidates = append(candidates, g)
		}
	}
	return candidates
}

// toPaletted converts img when it uses at most 256 distinct colours, which is lossless.
func toPaletted(img image.Image) (*image.Paletted, bool) {
	if p, ok := img.(*image.Paletted); ok {
		return p, false
	}
	b := img.Bounds()
	index := make(map[color.NRGBA]uint8)
	var palette color.Palette
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if _, ok := index[c]; ok {
				continue
			}
			if len(palette) == 256 {
				return nil, false
			}
			index[c] = uint8(len(palette))
			palette = append(palette, c)
		}
	}
	out := image.NewPaletted(b, palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetColorIndex(x, y, index[color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)])
		}
	}
	return out, true
}

// toGray converts opaque images whose pixels are all neutral grays.
func toGray(img image.Image) (*image.Gray, bool) {
	if _, ok := img.(*image.Gray); ok {
		return nil, false
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			if c.A != 0xffff || c.R != c.G || c.G != c.B || c.R&0xff != c.R>>8 {
				return nil, false
			}
		}
	}
	out := image.NewGray(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out, true
}
