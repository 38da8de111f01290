package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"radar/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResult() *types.StructuredResult {
	return &types.StructuredResult{
		ID:             "2401.00001",
		Title:          "Universal jailbreaks via suffix search",
		URL:            "https://arxiv.org/abs/2401.00001",
		RelevanceScore: 0.8,
		AttackType:     types.AttackJailbreak,
		Modality:       []types.Modality{types.ModalityText},
		Severity:       4,
		SummaryTLDR:    "Gradient search finds transferable suffixes.",
		ProcessedAt:    time.Now(),
	}
}

func TestEnvelope_UnmarshalAliases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBody string
		wantDate string
	}{
		{
			name:     "canonical names",
			input:    `{"id":"a","title":"t","body":"abstract","published_at":"2024-01-01"}`,
			wantBody: "abstract",
			wantDate: "2024-01-01",
		},
		{
			name:     "producer names",
			input:    `{"id":"a","title":"t","content":"abstract","published_date":"2024-01-01"}`,
			wantBody: "abstract",
			wantDate: "2024-01-01",
		},
		{
			name:     "canonical wins",
			input:    `{"id":"a","title":"t","body":"new","content":"old"}`,
			wantBody: "new",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env types.Envelope
			require.NoError(t, json.Unmarshal([]byte(tt.input), &env))
			assert.Equal(t, "a", env.ID)
			assert.Equal(t, tt.wantBody, env.Body)
			assert.Equal(t, tt.wantDate, env.PublishedAt)
		})
	}
}

func TestEnvelope_Validate(t *testing.T) {
	assert.NoError(t, types.Envelope{ID: "1", Title: "x"}.Validate())
	assert.Error(t, types.Envelope{Title: "x"}.Validate())
	assert.Error(t, types.Envelope{ID: "1", Title: "   "}.Validate())
}

func TestStructuredResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *types.StructuredResult)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *types.StructuredResult) {}},
		{name: "short title", mutate: func(r *types.StructuredResult) { r.Title = "abc" }, wantErr: true},
		{name: "long title", mutate: func(r *types.StructuredResult) { r.Title = strings.Repeat("a", 501) }, wantErr: true},
		{name: "bad url", mutate: func(r *types.StructuredResult) { r.URL = "ftp://x" }, wantErr: true},
		{name: "relevance above one", mutate: func(r *types.StructuredResult) { r.RelevanceScore = 1.2 }, wantErr: true},
		{name: "unknown attack type", mutate: func(r *types.StructuredResult) { r.AttackType = "Phishing" }, wantErr: true},
		{name: "no modality", mutate: func(r *types.StructuredResult) { r.Modality = nil }, wantErr: true},
		{name: "unknown modality", mutate: func(r *types.StructuredResult) { r.Modality = []types.Modality{"Smell"} }, wantErr: true},
		{name: "severity zero", mutate: func(r *types.StructuredResult) { r.Severity = 0 }, wantErr: true},
		{name: "severity six", mutate: func(r *types.StructuredResult) { r.Severity = 6 }, wantErr: true},
		{name: "summary too long", mutate: func(r *types.StructuredResult) { r.SummaryTLDR = strings.Repeat("é", 281) }, wantErr: true},
		{name: "summary at limit", mutate: func(r *types.StructuredResult) { r.SummaryTLDR = strings.Repeat("é", 280) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResult()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerdict(t *testing.T) {
	assert.True(t, types.Accepted(validResult()).IsAccepted())
	assert.False(t, types.Rejected(types.NewRejectionError("filter", "1", "off topic")).IsAccepted())
}

func TestErrorHelpers(t *testing.T) {
	rej := types.NewRejectionError("extract", "doc-1", "invalid output").WithDetail("attempts", 2)
	wrapped := fmt.Errorf("stage failed: %w", rej)

	assert.True(t, types.IsRejected(wrapped))
	assert.False(t, types.IsPoison(wrapped))
	assert.Equal(t, 2, rej.Details["attempts"])

	cause := errors.New("bad json")
	poison := types.NewPoisonError("1-0", "undecodable payload", cause)
	assert.True(t, types.IsPoison(poison))
	assert.ErrorIs(t, poison, cause)
}
