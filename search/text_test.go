package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "punctuation trimmed", text: "(Access) to the control.", want: []string{"access", "control"}},
		{name: "modal verbs dropped", text: "Access must be restricted and shall be reviewed.", want: []string{"access", "restricted", "reviewed"}},
		{name: "codes kept whole", text: "See A.9.1.1 for data-at-rest.", want: []string{"see", "a.9.1.1", "data-at-rest"}},
		{name: "slashes split", text: "Encryption/protection", want: []string{"encryption", "protection"}},
		{name: "only stop words", text: "It shall be such that", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryTerms(tt.text))
		})
	}
}

func TestCoversQuery(t *testing.T) {
	doc := "Event logs recording user activities, exceptions and faults shall be kept."

	assert.True(t, coversQuery(doc, "event logs"))
	assert.True(t, coversQuery(doc, "Faults, the exceptions!"))
	assert.True(t, coversQuery(doc, "Event logs must be kept"), "modal verbs are not required to match")
	assert.False(t, coversQuery(doc, "event logging"))
	assert.False(t, coversQuery(doc, "the and of"), "stop words alone never match")
	assert.False(t, coversQuery(doc, "shall be"), "regulatory boilerplate alone never matches")
}
