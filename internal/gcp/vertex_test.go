package gcp

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(" {\"categories\": "), genai.Text("[]} ")}},
	}}}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"categories": []}`, text)
}

func TestResponseText_Empty(t *testing.T) {
	for _, resp := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}},
	} {
		_, err := responseText(resp)
		assert.ErrorIs(t, err, errNoCandidates)
	}
}
