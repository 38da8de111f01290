package processors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"radar/internal/processors"
	"radar/internal/testutil"
	"radar/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	routeFilter   = "research assistant"
	routeExtract  = "security analyst"
	routeCritique = "fact-checker"
	routeCurate   = "technical editor"
)

var (
	strongDoc = types.Envelope{
		ID:    "2401.00001",
		Title: "Jailbreak attacks against GPT-4",
		Body:  "We study prompt injection on a transformer and show gradient based attacks.",
		URL:   "https://arxiv.org/abs/2401.00001",
	}
	borderlineDoc = types.Envelope{
		ID:    "2401.00002",
		Title: "Backdoor and trojan triggers in a neural network",
		Body:  "",
		URL:   "https://arxiv.org/abs/2401.00002",
	}
	offTopicDoc = types.Envelope{
		ID:    "2401.00003",
		Title: "A new buffer overflow exploit in FPGA firmware",
	}
)

func TestPreFilter(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		abstract   string
		wantKilled bool
		wantScore  int
		wantAccept bool
	}{
		{
			name:       "strong signals with generative boost",
			title:      strongDoc.Title,
			abstract:   strongDoc.Body,
			wantScore:  75,
			wantAccept: true,
		},
		{
			name:       "kill list without ML context",
			title:      offTopicDoc.Title,
			wantKilled: true,
		},
		{
			name:      "kill list outweighed by ML anchors",
			title:     "SQL injection detection with deep learning and a neural network classifier",
			wantScore: 10,
		},
		{
			name:      "ambiguous terms need an anchor",
			title:     "Robust watermarking of audio files",
			wantScore: 0,
		},
		{
			name:      "anchored ambiguous terms",
			title:     borderlineDoc.Title,
			wantScore: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := processors.PreFilter(tt.title, tt.abstract)
			assert.Equal(t, tt.wantKilled, got.Killed)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantAccept, got.Accept)
			assert.NotEmpty(t, got.Reasons)
			assert.LessOrEqual(t, got.Confidence, 0.99)
		})
	}
}

func TestFilterProcessor(t *testing.T) {
	tests := []struct {
		name          string
		doc           types.Envelope
		llm           *testutil.LLM
		wantRejected  bool
		wantRelevance float64
		wantLLMCalls  int
	}{
		{
			name:         "killed without model call",
			doc:          offTopicDoc,
			llm:          testutil.NewLLM().On(routeFilter, `{"is_relevant":true,"confidence_score":1}`),
			wantRejected: true,
		},
		{
			name:          "auto accept without model call",
			doc:           strongDoc,
			llm:           testutil.NewLLM().On(routeFilter, `{"is_relevant":false,"confidence_score":1}`),
			wantRelevance: 0.75,
		},
		{
			name:          "borderline accepted by model",
			doc:           borderlineDoc,
			llm:           testutil.NewLLM().On(routeFilter, "```json\n{\"reasoning\":\"backdoors in nets\",\"confidence_score\":0.8,\"is_relevant\":true}\n```"),
			wantRelevance: 0.8,
			wantLLMCalls:  1,
		},
		{
			name:         "borderline rejected by model",
			doc:          borderlineDoc,
			llm:          testutil.NewLLM().On(routeFilter, `{"reasoning":"hardware","confidence_score":0.9,"is_relevant":false}`),
			wantRejected: true,
			wantLLMCalls: 1,
		},
		{
			name:         "model failure falls back to pre-filter",
			doc:          borderlineDoc,
			llm:          testutil.NewLLM().OnError(routeFilter, errors.New("connection refused")),
			wantRejected: true,
			wantLLMCalls: 1,
		},
		{
			name:         "low confidence rejected",
			doc:          borderlineDoc,
			llm:          testutil.NewLLM().On(routeFilter, `{"confidence_score":0.1,"is_relevant":true}`),
			wantRejected: true,
			wantLLMCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := processors.NewFilterProcessor(tt.llm, processors.FilterConfig{MinConfidence: 0.3}, nil)
			job := &types.Job{Doc: tt.doc}

			err := f.Process(context.Background(), job)
			if tt.wantRejected {
				require.Error(t, err)
				assert.True(t, types.IsRejected(err))
			} else {
				require.NoError(t, err)
				assert.InDelta(t, tt.wantRelevance, job.Relevance, 1e-9)
			}
			assert.Equal(t, tt.wantLLMCalls, tt.llm.Calls(routeFilter))
		})
	}
}

func TestFilterProcessor_TimeoutIsNotFallback(t *testing.T) {
	llm := testutil.NewLLM().OnBlock(routeFilter)
	f := processors.NewFilterProcessor(llm, processors.FilterConfig{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.Process(ctx, &types.Job{Doc: borderlineDoc})
	require.Error(t, err)
	assert.False(t, types.IsRejected(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
