package steps

import (
	"context"
	"path"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

var cssRasterURL = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+\.(?i:png|jpe?g))((?:[?#][^'")]*)?)(['"]?)\s*\)`)

// WebPCSS adds, after every rule that references a raster image idx has a variant
// of, a companion rule scoped under `.webp` that points at the .webp variant. outDir
// is the stylesheet output directory relative to the build root. The page is
// expected to set the `webp` class on <html> when the browser supports the format.
func WebPCSS(idx WebPIndex, outDir string) pipeline.Step {
	return pipeline.PerFile("webp-css", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		if a.Ext() != ".css" {
			return nil, nil
		}
		nodes, err := parseCSS(a.Contents)
		if err != nil {
			return nil, err
		}
		from := path.Join(outDir, a.Path)
		a.Contents = writeCSS(addWebPRules(nodes, func(target string) bool {
			rel, ok := resolveRef(from, target)
			return ok && idx.HasWebP(rel)
		}))
		return nil, nil
	})
}

func addWebPRules(nodes []*cssNode, hasWebP func(target string) bool) []*cssNode {
	out := make([]*cssNode, 0, len(nodes))
	for _, n := range nodes {
		n.children = addWebPRules(n.children, hasWebP)
		out = append(out, n)
		if n.kind != cssRule {
			continue
		}
		var decls []cssDecl
		for _, d := range n.decls {
			if v, ok := webpValue(d.value, hasWebP); ok {
				decls = append(decls, cssDecl{prop: d.prop, value: v})
			}
		}
		if len(decls) == 0 {
			continue
		}
		sels := splitSelectors(n.prelude)
		for i, s := range sels {
			sels[i] = ".webp " + s
		}
		out = append(out, &cssNode{kind: cssRule, prelude: strings.Join(sels, ", "), decls: decls})
	}
	return out
}

func webpValue(value string, hasWebP func(target string) bool) (string, bool) {
	changed := false
	out := cssRasterURL.ReplaceAllStringFunc(value, func(m string) string {
		sub := cssRasterURL.FindStringSubmatch(m)
		if sub[1] != sub[4] || strings.HasPrefix(sub[2], "data:") || !hasWebP(sub[2]) {
			return m
		}
		changed = true
		return "url(" + sub[1] + webpName(sub[2]) + sub[3] + sub[4] + ")"
	})
	return out, changed
}
