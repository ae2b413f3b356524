package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intentShape struct {
	Type     string   `json:"type"`
	Keywords []string `json:"keywords"`
}

func TestExtractAndParseJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     intentShape
	}{
		{
			name:     "plain",
			response: `{"type":"constraint","keywords":["legal"]}`,
			want:     intentShape{Type: "constraint", Keywords: []string{"legal"}},
		},
		{
			name:     "fenced with prose",
			response: "Here you go:\n```json\n{\"type\": \"opportunity\", \"keywords\": []}\n```\nLet me know!",
			want:     intentShape{Type: "opportunity", Keywords: []string{}},
		},
		{
			name:     "trailing comma",
			response: `{"type": "capacity", "keywords": ["energy",],}`,
			want:     intentShape{Type: "capacity", Keywords: []string{"energy"}},
		},
		{
			name:     "missing comma between keys",
			response: "{\"type\": \"sequencing\"\n\"keywords\": [\"launch\"]}",
			want:     intentShape{Type: "sequencing", Keywords: []string{"launch"}},
		},
		{
			name:     "truncated",
			response: `{"type": "information", "keywords": ["cont`,
			want:     intentShape{Type: "information", Keywords: []string{"cont"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAndParseJSON[intentShape](tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractAndParseJSON_NoJSON(t *testing.T) {
	_, err := ExtractAndParseJSON[intentShape]("I cannot help with that.")
	assert.Error(t, err)
}

func TestExtractAndParseJSON_Array(t *testing.T) {
	got, err := ExtractAndParseJSON[[]string](`Result: ["a", "b"] done`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
