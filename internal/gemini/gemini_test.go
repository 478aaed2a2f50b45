package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(s, genai.RoleModel),
		}},
	}
}

func TestGenerateSendsPromptAndSettings(t *testing.T) {
	fm := &fakeModels{resp: textResponse("hey cutie")}
	c := newWithModels(fm, "")

	got, err := c.Generate(context.Background(), "PERSONA\nUser: hi\nGirlfriend:")
	require.NoError(t, err)
	assert.Equal(t, "hey cutie", got)
	assert.Equal(t, DefaultModel, fm.model)

	require.Len(t, fm.contents, 1)
	require.Len(t, fm.contents[0].Parts, 1)
	assert.Equal(t, "PERSONA\nUser: hi\nGirlfriend:", fm.contents[0].Parts[0].Text)

	cfg := fm.config
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.9, *cfg.Temperature, 1e-6)
	require.NotNil(t, cfg.TopP)
	assert.InDelta(t, 0.95, *cfg.TopP, 1e-6)
	assert.Equal(t, int32(150), cfg.MaxOutputTokens)

	require.Len(t, cfg.SafetySettings, 2)
	for _, s := range cfg.SafetySettings {
		assert.Equal(t, genai.HarmBlockThresholdBlockOnlyHigh, s.Threshold)
	}
	assert.Equal(t, genai.HarmCategorySexuallyExplicit, cfg.SafetySettings[0].Category)
	assert.Equal(t, genai.HarmCategoryHarassment, cfg.SafetySettings[1].Category)
}

func TestGenerateErrors(t *testing.T) {
	c := newWithModels(&fakeModels{err: errors.New("quota exceeded")}, "gemini-x")
	_, err := c.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, "gemini-x", c.Model())

	c = newWithModels(&fakeModels{resp: &genai.GenerateContentResponse{}}, "")
	_, err = c.Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
