package processors_test

import (
	"context"
	"errors"
	"testing"

	"radar/internal/processors"
	"radar/internal/testutil"
	"radar/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const digestReply = `{"headline":"Agents under injection","summary_markdown":"### New Attack Research (1 paper)\n- Image-borne prompt injection","highlighted_threat_ids":["2401.00001"]}`

func curatedResults() []*types.StructuredResult {
	return []*types.StructuredResult{{
		ID:          "2401.00001",
		Title:       "Prompt injection via images",
		AttackType:  types.AttackPromptInjection,
		Severity:    4,
		SummaryTLDR: "Hidden instructions in images hijack agents.",
	}}
}

func TestCurateProcessor_EmptyBatch(t *testing.T) {
	llm := testutil.NewLLM()
	c := processors.NewCurateProcessor(llm, 2, nil)

	digest, err := c.Curate(context.Background(), nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, digest.ID)
	assert.NotEmpty(t, digest.Headline)
	assert.Empty(t, digest.ResultIDs)
}

func TestCurateProcessor_Approved(t *testing.T) {
	llm := testutil.NewLLM().
		On(routeCurate, digestReply).
		On(routeCritique, approve)
	c := processors.NewCurateProcessor(llm, 2, nil)

	digest, err := c.Curate(context.Background(), curatedResults(), "yesterday was quiet")
	require.NoError(t, err)
	assert.Equal(t, "Agents under injection", digest.Headline)
	assert.Equal(t, []string{"2401.00001"}, digest.Highlighted)
	assert.Equal(t, []string{"2401.00001"}, digest.ResultIDs)
	assert.Empty(t, digest.Caveat)
	assert.Equal(t, 1, llm.Calls(routeCurate))
}

func TestCurateProcessor_RevisionsBounded(t *testing.T) {
	llm := testutil.NewLLM().
		On(routeCurate, digestReply).
		On(routeCritique, reject)
	c := processors.NewCurateProcessor(llm, 2, nil)

	digest, err := c.Curate(context.Background(), curatedResults(), "")
	require.NoError(t, err)
	assert.Contains(t, digest.Caveat, "severity overstated")
	assert.Equal(t, 3, llm.Calls(routeCurate))
	assert.Equal(t, 3, llm.Calls(routeCritique))
}

func TestCurateProcessor_CriticDownKeepsDraft(t *testing.T) {
	llm := testutil.NewLLM().
		On(routeCurate, digestReply).
		OnError(routeCritique, errors.New("timeout"))
	c := processors.NewCurateProcessor(llm, 2, nil)

	digest, err := c.Curate(context.Background(), curatedResults(), "")
	require.NoError(t, err)
	assert.Equal(t, "Agents under injection", digest.Headline)
	assert.NotEmpty(t, digest.Caveat)
}

func TestCurateProcessor_DraftFailure(t *testing.T) {
	llm := testutil.NewLLM().On(routeCurate, "no json at all")
	c := processors.NewCurateProcessor(llm, 2, nil)

	_, err := c.Curate(context.Background(), curatedResults(), "")
	assert.Error(t, err)
}
