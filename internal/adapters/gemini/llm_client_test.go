package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGenaiSchemaConvertsDetectionSchema(t *testing.T) {
	s := toGenaiSchema(&core.DetectionSchema)

	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"isSpam", "confidence", "reasoning", "references"}, s.Required)
	require.Len(t, s.Properties, 4)
	assert.Equal(t, genai.TypeBoolean, s.Properties["isSpam"].Type)
	assert.Equal(t, genai.TypeNumber, s.Properties["confidence"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["reasoning"].Type)

	refs := s.Properties["references"]
	assert.Equal(t, genai.TypeArray, refs.Type)
	require.NotNil(t, refs.Items)
	assert.Equal(t, genai.TypeString, refs.Items.Type)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(" This email "), genai.Text("is safe. ")}},
		}},
	}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "This email is safe.", text)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}},
	})
	assert.Error(t, err)
}
