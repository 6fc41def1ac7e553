package steps

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type cssKind int

const (
	cssRule        cssKind = iota // selector { declarations }
	cssAtBlock                    // @media ... { rules }
	cssAtStatement                // @import ...;
)

// cssNode is the minimal stylesheet tree the rewrite steps operate on.
type cssNode struct {
	kind     cssKind
	prelude  string
	decls    []cssDecl
	children []*cssNode
}

type cssDecl struct {
	prop  string
	value string
}

var spaceRun = regexp.MustCompile(`\s+`)

func tokensString(tokens []css.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.Write(t.Data)
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(b.String(), " "))
}

// parseCSS builds a cssNode tree. Comments are dropped.
func parseCSS(src []byte) ([]*cssNode, error) {
	p := css.NewParser(parse.NewInput(bytes.NewReader(src)), false)
	root := &cssNode{kind: cssAtBlock}
	stack := []*cssNode{root}
	var selectors []string

	for {
		gt, _, data := p.Next()
		cur := stack[len(stack)-1]
		switch gt {
		case css.ErrorGrammar:
			if errors.Is(p.Err(), io.EOF) {
				return root.children, nil
			}
			return nil, p.Err()
		case css.AtRuleGrammar:
			prelude := strings.TrimSpace(string(data) + " " + tokensString(p.Values()))
			cur.children = append(cur.children, &cssNode{kind: cssAtStatement, prelude: prelude})
		case css.BeginAtRuleGrammar:
			n := &cssNode{kind: cssAtBlock, prelude: strings.TrimSpace(string(data) + " " + tokensString(p.Values()))}
			cur.children = append(cur.children, n)
			stack = append(stack, n)
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, tokensString(p.Values()))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, tokensString(p.Values()))
			n := &cssNode{kind: cssRule, prelude: strings.Join(selectors, ", ")}
			selectors = nil
			cur.children = append(cur.children, n)
			stack = append(stack, n)
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			cur.decls = append(cur.decls, cssDecl{prop: string(data), value: tokensString(p.Values())})
		}
	}
}

// writeCSS serialises nodes in expanded form.
func writeCSS(nodes []*cssNode) []byte {
	var b bytes.Buffer
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeNode(&b, n, "")
	}
	return b.Bytes()
}

func writeNode(b *bytes.Buffer, n *cssNode, indent string) {
	if n.kind == cssAtStatement {
		b.WriteString(indent + n.prelude + ";\n")
		return
	}
	b.WriteString(indent + n.prelude + " {\n")
	for _, d := range n.decls {
		b.WriteString(indent + "  " + d.prop + ": " + d.value + ";\n")
	}
	for _, c := range n.children {
		writeNode(b, c, indent+"  ")
	}
	b.WriteString(indent + "}\n")
}

// splitSelectors splits a selector list on top-level commas.
func splitSelectors(list string) []string {
	var out []string
	depth, start := 0, 0
	for i, c := range list {
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(list[start:]))
}

// mediaKey normalises an @media prelude for grouping.
func mediaKey(n *cssNode) (string, bool) {
	if n.kind != cssAtBlock {
		return "", false
	}
	lower := strings.ToLower(n.prelude)
	if !strings.HasPrefix(lower, "@media") {
		return "", false
	}
	return strings.Join(strings.Fields(lower), " "), true
}
