package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func TestDefaultPaths_Valid(t *testing.T) {
	require.NoError(t, DefaultPaths().Validate())
}

func TestResolve_UnknownCategory(t *testing.T) {
	_, err := DefaultPaths().Resolve(Category("videos"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestResolve_MalformedPattern(t *testing.T) {
	p := DefaultPaths()
	cp := p.Categories[CategoryStyles]
	cp.Source = []string{"scss/[style.scss"}
	p.Categories[CategoryStyles] = cp

	_, err := p.Resolve(CategoryStyles)
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	pattern, _ := ce.Context().GetString("pattern")
	assert.Equal(t, "scss/[style.scss", pattern)
}

func TestResolve_JoinsRoots(t *testing.T) {
	r, err := DefaultPaths().WithRoots("site/src", "site/out").Resolve(CategoryStyles)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("site/out", "css"), r.OutputDir)
	assert.Equal(t, "site/src", r.SourceRoot)
	assert.Equal(t, []string{"scss/style.scss"}, r.Source)
}

func TestResolve_OutputEscape(t *testing.T) {
	p := DefaultPaths()
	cp := p.Categories[CategoryFonts]
	cp.Output = "../fonts"
	p.Categories[CategoryFonts] = cp

	_, err := p.Resolve(CategoryFonts)
	require.Error(t, err)
}

func TestWithRoots_DoesNotMutateOriginal(t *testing.T) {
	orig := DefaultPaths()
	moved := orig.WithRoots("a", "b")
	cp := moved.Categories[CategoryFonts]
	cp.Output = "type"
	moved.Categories[CategoryFonts] = cp

	assert.Equal(t, "./src", orig.SourceRoot)
	assert.Equal(t, "fonts", orig.Categories[CategoryFonts].Output)
}

func TestRecursive(t *testing.T) {
	p := DefaultPaths()
	assert.False(t, p.Recursive(CategoryMarkup))
	assert.False(t, p.Recursive(CategoryStyles))
	assert.True(t, p.Recursive(CategoryImages))
	assert.False(t, p.Recursive(CategoryFonts))
}

// Every pair of distinct categories must be unable to claim the same output path.
func TestValidate_Disjointness(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *PathConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*PathConfig) {}},
		{
			name: "fonts share css dir",
			mutate: func(p *PathConfig) {
				cp := p.Categories[CategoryFonts]
				cp.Output = "css"
				p.Categories[CategoryFonts] = cp
			},
			wantErr: true,
		},
		{
			name: "images stop excluding sprite",
			mutate: func(p *PathConfig) {
				cp := p.Categories[CategoryImages]
				cp.Exclude = nil
				p.Categories[CategoryImages] = cp
			},
			wantErr: true,
		},
		{
			name: "recursive markup swallows css",
			mutate: func(p *PathConfig) {
				cp := p.Categories[CategoryMarkup]
				cp.Source = []string{"pages/**/*.html"}
				p.Categories[CategoryMarkup] = cp
			},
			wantErr: true,
		},
		{
			name: "fonts nested in flat styles dir is fine",
			mutate: func(p *PathConfig) {
				cp := p.Categories[CategoryFonts]
				cp.Output = "css/fonts"
				p.Categories[CategoryFonts] = cp
			},
		},
		{
			name: "icons sprite moved to its own dir",
			mutate: func(p *PathConfig) {
				cp := p.Categories[CategoryIcons]
				cp.Output = "icons"
				p.Categories[CategoryIcons] = cp
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPaths()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidate_PairwiseScopesOfDefaults(t *testing.T) {
	p := DefaultPaths()
	cats := Categories()
	for i, a := range cats {
		for _, b := range cats[i+1:] {
			assert.False(t, p.scope(a).overlaps(p.scope(b)), "%s overlaps %s", a, b)
			assert.False(t, p.scope(b).overlaps(p.scope(a)), "%s overlaps %s", b, a)
		}
	}
}
