package steps

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

type svgRoot struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

const spriteStyle = `<style>:root>svg{display:none}:root>svg:target{display:block}</style>`

// Sprite packs every SVG asset into one stack-mode sprite written as name. Each icon
// becomes a nested <svg> whose id is the icon's file name, so `sprite.svg#logo`
// displays just that icon.
func Sprite(name string) pipeline.Step {
	return pipeline.StepFunc("sprite", func(ctx context.Context, assets []*pipeline.Asset) ([]*pipeline.Asset, error) {
		var body bytes.Buffer
		var failures pipeline.Failures
		seen := make(map[string]string)
		count := 0
		for _, a := range assets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if a.Ext() != ".svg" {
				continue
			}
			id := iconID(a.Path)
			if prev, dup := seen[id]; dup {
				failures = append(failures, pipeline.Fail("sprite", a, fmt.Errorf("duplicate icon id %q (also %s)", id, prev)))
				continue
			}
			icon, err := stackIcon(a.Contents, id)
			if err != nil {
				failures = append(failures, pipeline.Fail("sprite", a, err))
				continue
			}
			seen[id] = a.Path
			body.Write(icon)
			count++
		}

		var out []*pipeline.Asset
		if count > 0 {
			var doc bytes.Buffer
			doc.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
			doc.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`)
			doc.WriteString(spriteStyle)
			doc.Write(body.Bytes())
			doc.WriteString(`</svg>`)
			out = append(out, &pipeline.Asset{Path: name, Contents: doc.Bytes()})
		}
		if len(failures) > 0 {
			return out, failures
		}
		return out, nil
	})
}

func stackIcon(src []byte, id string) ([]byte, error) {
	var root svgRoot
	if err := xml.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if root.XMLName.Local != "svg" {
		return nil, fmt.Errorf("root element is <%s>, want <svg>", root.XMLName.Local)
	}
	var b bytes.Buffer
	b.WriteString(`<svg id="`)
	_ = xml.EscapeText(&b, []byte(id))
	b.WriteByte('"')
	for _, attr := range root.Attrs {
		if attr.Name.Space != "" || attr.Name.Local == "xmlns" || attr.Name.Local == "id" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(attr.Name.Local)
		b.WriteString(`="`)
		_ = xml.EscapeText(&b, []byte(attr.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.Write(bytes.TrimSpace(root.Inner))
	b.WriteString(`</svg>`)
	return b.Bytes(), nil
}

func iconID(p string) string {
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, base)
}
