package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/regmap/catalog"
	"github.com/poiesic/regmap/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitClauses(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "articles with trailing period",
			text: sampleDocument,
			want: []string{"Access must be restricted.", "Data shall be encrypted at rest."},
		},
		{
			name: "mixed headings and case",
			text: "SECTION 1: Keep logs.\nclause 2) Report incidents.\nArticle 10 Protect personal data.",
			want: []string{"Keep logs.", "Report incidents.", "Protect personal data."},
		},
		{
			name: "preamble kept as a clause",
			text: "Preamble text. Article 1. Body.",
			want: []string{"Preamble text.", "Body."},
		},
		{
			name: "empty segments dropped",
			text: "Article 1. Article 2.   Article 3. Only this.",
			want: []string{"Only this."},
		},
		{
			name: "no headings",
			text: "  A single paragraph.  ",
			want: []string{"A single paragraph."},
		},
		{
			name: "heading needs a number",
			text: "Article about access. Section 2. Rest.",
			want: []string{"Article about access.", "Rest."},
		},
		{name: "blank", text: " \n\t ", want: []string{}},
		{name: "only headings", text: "Article 1. Section 2:", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitClauses(tt.text))
		})
	}
}

func TestParse_EmptyDocumentWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	p := newTestPipeline(t, store, nil)
	id := newRegulation(t, store)

	_, err := p.Parse(ctx, id, "Article 1. Article 2.")
	assert.ErrorIs(t, err, core.ErrEmptyDocument)
	assert.Equal(t, core.KindEmptyInput, core.KindOf(err))

	n, err := store.CountRequirements(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestParse_AlreadyParsed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	p := newTestPipeline(t, store, nil)
	id := newRegulation(t, store)

	_, err := p.Parse(ctx, id, sampleDocument)
	require.NoError(t, err)

	_, err = p.Parse(ctx, id, "Article 1. Something else entirely.")
	assert.ErrorIs(t, err, core.ErrAlreadyParsed)
	assert.Equal(t, core.KindPreconditionNotMet, core.KindOf(err))

	reqs, err := store.GetRequirements(ctx, id)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	for i, req := range reqs {
		assert.Equal(t, i+1, req.ClauseNumber)
		assert.Equal(t, core.StatusPendingAnalysis, req.Status)
	}
}

func TestParse_LargeDocument(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	p := newTestPipeline(t, store, nil)
	id := newRegulation(t, store)

	const clauses = 9000
	var doc strings.Builder
	for i := 1; i <= clauses; i++ {
		fmt.Fprintf(&doc, "Article %d. Access clause number %d. ", i, i)
	}

	outcome, err := p.Parse(ctx, id, doc.String())
	require.NoError(t, err)
	assert.Equal(t, clauses, outcome.Inserted())

	reqs, err := store.GetRequirements(ctx, id)
	require.NoError(t, err)
	require.Len(t, reqs, clauses)
	assert.Equal(t, 1, reqs[0].ClauseNumber)
	assert.Equal(t, "Access clause number 1.", reqs[0].Text)
	assert.Equal(t, clauses, reqs[clauses-1].ClauseNumber)
	assert.Equal(t, fmt.Sprintf("Access clause number %d.", clauses), reqs[clauses-1].Text)
	for _, req := range reqs {
		assert.NotZero(t, req.Id)
	}
}

func TestParseSource(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	p := newTestPipeline(t, store, nil)

	path := filepath.Join(t.TempDir(), "act.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o600))
	reg, err := store.CreateRegulation(ctx, &core.Regulation{Name: "Act", SourceRef: path})
	require.NoError(t, err)

	out, err := p.ParseSource(ctx, reg.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Inserted())

	noSource := newRegulation(t, store)
	_, err = p.ParseSource(ctx, noSource)
	assert.ErrorIs(t, err, core.ErrEmptyDocument)

	_, err = p.ParseSource(ctx, core.ID(404))
	assert.ErrorIs(t, err, core.ErrRegulationNotFound)
}
