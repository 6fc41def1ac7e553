package steps

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// GroupMedia merges top-level @media blocks that share a query and moves the merged
// blocks after all other rules, keeping first-appearance order between queries.
func GroupMedia() pipeline.Step {
	return pipeline.PerFile("group-media", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		if a.Ext() != ".css" {
			return nil, nil
		}
		nodes, err := parseCSS(a.Contents)
		if err != nil {
			return nil, err
		}
		a.Contents = writeCSS(groupMedia(nodes))
		return nil, nil
	})
}

func groupMedia(nodes []*cssNode) []*cssNode {
	var rest, grouped []*cssNode
	byKey := make(map[string]*cssNode)
	for _, n := range nodes {
		key, ok := mediaKey(n)
		if !ok {
			rest = append(rest, n)
			continue
		}
		if g, seen := byKey[key]; seen {
			g.decls = append(g.decls, n.decls...)
			g.children = append(g.children, n.children...)
			continue
		}
		byKey[key] = n
		grouped = append(grouped, n)
	}
	return append(rest, grouped...)
}
