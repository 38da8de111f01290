package processors_test

import (
	"context"
	"testing"

	"radar/internal/processors"
	"radar/internal/testutil"
	"radar/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validExtraction = `{"attack_type":"prompt injection","modality":"multimodal","affected_models":["GPT-4V"],"is_theoretical":false,"severity":"High","summary_tldr":"Hidden instructions in images hijack vision-language agents."}`

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		label  string
		want   int
		wantOK bool
	}{
		{"critical", 5, true},
		{"High", 4, true},
		{" medium ", 3, true},
		{"Moderate", 3, true},
		{"low", 2, true},
		{"minimal", 1, true},
		{"informational", 1, true},
		{"none", 1, true},
		{"3", 3, true},
		{"5.0", 5, true},
		{"7", 1, false},
		{"catastrophic", 1, false},
		{"", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := processors.ParseSeverity(tt.label)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseAttackTypeAndModalities(t *testing.T) {
	assert.Equal(t, types.AttackPromptInjection, processors.ParseAttackType("prompt_injection"))
	assert.Equal(t, types.AttackAdversarialExample, processors.ParseAttackType("Adversarial-Example"))
	assert.Equal(t, types.AttackOther, processors.ParseAttackType("phishing"))

	assert.Equal(t, []types.Modality{types.ModalityMultiModal, types.ModalityAgentic},
		processors.ParseModalities([]string{"multimodal", "agentic", "smell", "Multi-modal"}))
	assert.Equal(t, []types.Modality{types.ModalityText}, processors.ParseModalities(nil))
}

func TestExtractProcessor_MapsFields(t *testing.T) {
	llm := testutil.NewLLM().On(routeExtract, validExtraction)
	e := processors.NewExtractProcessor(llm, 2, nil)
	job := &types.Job{Doc: strongDoc, Relevance: 0.75}

	require.NoError(t, e.Process(context.Background(), job))
	require.NotNil(t, job.Result)

	r := job.Result
	assert.Equal(t, strongDoc.ID, r.ID)
	assert.Equal(t, strongDoc.Title, r.Title)
	assert.Equal(t, strongDoc.URL, r.URL)
	assert.Equal(t, 4, r.Severity)
	assert.Equal(t, types.AttackPromptInjection, r.AttackType)
	assert.Equal(t, []types.Modality{types.ModalityMultiModal}, r.Modality)
	assert.Equal(t, []string{"GPT-4V"}, r.AffectedModels)
	assert.InDelta(t, 0.75, r.RelevanceScore, 1e-9)
	assert.False(t, r.ProcessedAt.IsZero())
}

func TestExtractProcessor_RetriesInvalidOutput(t *testing.T) {
	llm := testutil.NewLLM().On(routeExtract, "I think this is a jailbreak paper", validExtraction)
	e := processors.NewExtractProcessor(llm, 2, nil)
	job := &types.Job{Doc: strongDoc}

	require.NoError(t, e.Process(context.Background(), job))
	assert.Equal(t, 2, llm.Calls(routeExtract))
}

func TestExtractProcessor_RejectsAfterAttempts(t *testing.T) {
	emptySummary := `{"attack_type":"Jailbreak","modality":["Text"],"severity":"low","summary_tldr":""}`
	llm := testutil.NewLLM().On(routeExtract, emptySummary)
	e := processors.NewExtractProcessor(llm, 3, nil)
	job := &types.Job{Doc: strongDoc}

	err := e.Process(context.Background(), job)
	require.Error(t, err)
	assert.True(t, types.IsRejected(err))
	assert.Equal(t, 3, llm.Calls(routeExtract))
	assert.Nil(t, job.Result)
}

func TestExtractProcessor_EmptyBody(t *testing.T) {
	llm := testutil.NewLLM().On(routeExtract, validExtraction)
	e := processors.NewExtractProcessor(llm, 2, nil)

	err := e.Process(context.Background(), &types.Job{Doc: types.Envelope{ID: "x", Title: "No abstract here"}})
	require.Error(t, err)
	assert.True(t, types.IsRejected(err))
	assert.Zero(t, llm.Calls(routeExtract))
}

func TestExtractProcessor_UnknownSeverityIsLowest(t *testing.T) {
	reply := `{"attack_type":"Backdoor","modality":["Vision"],"severity":"apocalyptic","summary_tldr":"Triggers planted in training images."}`
	llm := testutil.NewLLM().On(routeExtract, reply)
	e := processors.NewExtractProcessor(llm, 1, nil)
	job := &types.Job{Doc: strongDoc}

	require.NoError(t, e.Process(context.Background(), job))
	assert.Equal(t, 1, job.Result.Severity)
	assert.Equal(t, []string{}, job.Result.AffectedModels)
}
