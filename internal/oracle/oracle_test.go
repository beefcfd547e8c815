package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/survey-eval/internal/dataset"
	"github.com/giantswarm/survey-eval/internal/llm"
	"github.com/giantswarm/survey-eval/internal/sampler"
	"github.com/giantswarm/survey-eval/internal/testutil"
)

func TestParseAffirmative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes", true},
		{"Yes", true},
		{"YES.", true},
		{"  yes \n", true},
		{"\"yes\"", true},
		{"no", false},
		{"No.", false},
		{"Yes, it is a disease", false},
		{"yes no", false},
		{"y", false},
		{"true", false},
		{"", false},
		{"I'm not sure", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAffirmative(tt.input))
		})
	}
}

func TestClassify(t *testing.T) {
	client := &testutil.MockLLMClient{
		Responses: map[string]string{
			"Answer: Gout":       "Yes",
			"Answer: Pyridoxine": "No",
		},
	}
	o := New(client, Config{Model: "judge-model"})

	ok, err := o.Classify(context.Background(), dataset.Pair{Answer: "Gout"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.Classify(context.Background(), dataset.Pair{Answer: "Pyridoxine"})
	require.NoError(t, err)
	assert.False(t, ok)

	req := client.LastRequest()
	assert.Equal(t, "judge-model", req.Model)
	assert.Equal(t, DiseaseEntityPrompt, req.SystemMessage)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
}

func TestClassifyCustomPrompt(t *testing.T) {
	client := &testutil.MockLLMClient{DefaultResponse: "yes"}
	o := New(client, Config{SystemPrompt: "custom"})

	_, err := o.Classify(context.Background(), dataset.Pair{Answer: "x"})
	require.NoError(t, err)
	assert.Equal(t, "custom", client.LastRequest().SystemMessage)
}

func TestClassifyPropagatesError(t *testing.T) {
	client := &testutil.MockLLMClient{Err: assert.AnError}
	o := New(client, Config{})

	_, err := o.Classify(context.Background(), dataset.Pair{Answer: "Gout"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClassifyDrivesSampler(t *testing.T) {
	ds, err := dataset.Load("medqa-usmle-sample", "")
	require.NoError(t, err)

	nonDiseases := map[string]bool{
		"Pyridoxine":          true,
		"Lumbar puncture":     true,
		"Prothrombin time":    true,
		"Phenoxybenzamine":    true,
		"Sweat chloride test": true,
	}
	client := &testutil.MockLLMClient{
		Handler: func(req llm.ChatRequest) (string, error) {
			for answer := range nonDiseases {
				if req.UserMessage == "Answer: "+answer {
					return "no", nil
				}
			}
			return "yes", nil
		},
	}

	o := New(client, Config{})
	result, err := sampler.Sample(context.Background(), 8, ds.Pairs, 100, o.Classify)
	require.NoError(t, err)

	require.Len(t, result.Accepted, 8)
	for _, p := range result.Accepted {
		assert.False(t, nonDiseases[p.Answer], "accepted non-disease answer %q", p.Answer)
	}
	assert.Equal(t, len(result.Draws), client.Calls())
}
