package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"finbot/internal/core"
	"finbot/internal/intake"
)

type fakeModels struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
	}}}, nil
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_Parse(t *testing.T) {
	models := &fakeModels{text: "```json\n" + `{"transactions":[{"amount":30000,"category":"Ăn uống","description":"Ăn phở","date":"2024-03-13","type":"EXPENSE","person":"Nam","location":null}],"analysisAnswer":null}` + "\n```"}
	c := newClient(models, "", nil)

	history := []core.Transaction{{ID: "1", Amount: 20000, Category: "Ăn uống", Description: "Cà phê",
		Date: core.NewDate(2024, 3, 12), Type: core.Expense, Location: "Highland"}}
	res, err := c.Parse(context.Background(), intake.Input{Text: "ăn phở 30k với nam"}, history, core.NewDate(2024, 3, 13))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, 30000.0, res.Transactions[0].Amount)
	assert.Equal(t, core.Expense, res.Transactions[0].Type)
	assert.Equal(t, "Nam", res.Transactions[0].Person)
	assert.Empty(t, res.Transactions[0].Location)
	assert.Empty(t, res.AnalysisAnswer)

	assert.Equal(t, DefaultModel, models.model)
	require.Len(t, models.contents, 1)
	assert.Equal(t, "ăn phở 30k với nam", models.contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	require.NotNil(t, models.config.ResponseSchema)
	assert.Contains(t, models.config.ResponseSchema.Properties, "analysisAnswer")

	instruction := models.config.SystemInstruction.Parts[0].Text
	assert.Contains(t, instruction, "CURRENT DATE: 13/3/2024 (2024-03-13)")
	assert.Contains(t, instruction, "- [2024-03-12] Cà phê (Ăn uống): 20000 | Tại: Highland")
}

func TestClient_ParseNullTransactions(t *testing.T) {
	c := newClient(&fakeModels{text: `{"transactions":null,"analysisAnswer":"Bạn đã tiêu 2 triệu."}`}, "m", nil)
	res, err := c.Parse(context.Background(), intake.Input{Text: "tiêu bao nhiêu?"}, nil, core.NewDate(2024, 3, 13))
	require.NoError(t, err)
	assert.Nil(t, res.Transactions)
	assert.Equal(t, "Bạn đã tiêu 2 triệu.", res.AnalysisAnswer)
}

func TestClient_ParseUnusableResponses(t *testing.T) {
	for _, text := range []string{"", "   ", "I could not read that"} {
		c := newClient(&fakeModels{text: text}, "", nil)
		res, err := c.Parse(context.Background(), intake.Input{Text: "x"}, nil, core.NewDate(2024, 3, 13))
		require.NoError(t, err)
		assert.Nil(t, res, "text %q", text)
	}
}

func TestClient_ParseTransportError(t *testing.T) {
	c := newClient(&fakeModels{err: errors.New("403 PERMISSION_DENIED")}, "", nil)
	_, err := c.Parse(context.Background(), intake.Input{Text: "x"}, nil, core.NewDate(2024, 3, 13))
	assert.ErrorContains(t, err, "PERMISSION_DENIED")
}

func TestClient_Advise(t *testing.T) {
	models := &fakeModels{text: " Bạn hay ăn với Nam. \n"}
	c := newClient(models, "gemini-x", nil)
	history := []core.Transaction{{ID: "1", Amount: 30000, Category: "Ăn uống", Description: "Ăn phở",
		Date: core.NewDate(2024, 3, 13), Type: core.Expense, Person: "Nam"}}

	got, err := c.Advise(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Bạn hay ăn với Nam.", got)
	assert.Equal(t, "gemini-x", models.model)
	assert.Nil(t, models.config)
	prompt := models.contents[0].Parts[0].Text
	assert.Contains(t, prompt, "2024-03-13: Ăn phở (Ăn uống) - 30000 [Với: Nam]")
	assert.True(t, strings.HasPrefix(prompt, "Dựa trên lịch sử giao dịch:"))
}

func TestInputParts(t *testing.T) {
	tests := []struct {
		name      string
		in        intake.Input
		wantTexts []string
		wantMIME  string
	}{
		{name: "text only", in: intake.Input{Text: "cafe 20k"}, wantTexts: []string{"cafe 20k"}},
		{name: "image without text", in: intake.Input{Image: []byte{1}}, wantTexts: []string{imagePrompt}, wantMIME: "image/jpeg"},
		{name: "image with caption", in: intake.Input{Text: "hóa đơn", Image: []byte{1}, MIMEType: "image/png"}, wantTexts: []string{"hóa đơn"}, wantMIME: "image/png"},
		{name: "audio", in: intake.Input{Audio: []byte{1}}, wantTexts: []string{audioPrompt}, wantMIME: "audio/webm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var texts []string
			var mime string
			for _, p := range inputParts(tt.in) {
				if p.InlineData != nil {
					mime = p.InlineData.MIMEType
					continue
				}
				texts = append(texts, p.Text)
			}
			assert.Equal(t, tt.wantTexts, texts)
			assert.Equal(t, tt.wantMIME, mime)
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                       `{"a":1}`,
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"```\n{\"a\":1}```":             `{"a":1}`,
		"Here you go: {\"a\":1} thanks": `{"a":1}`,
		"no json":                       "no json",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanModelJSON(in), "input %q", in)
	}
}
