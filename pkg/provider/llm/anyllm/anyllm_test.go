package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/parleyvoice/parley/pkg/provider/llm"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o-mini", nil); err == nil {
		t.Error("empty provider name must be rejected")
	}
	if _, err := New("openai", "", nil); err == nil {
		t.Error("empty model must be rejected")
	}
	if _, err := New("not-a-provider", "m", nil); err == nil {
		t.Error("unknown provider must be rejected")
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o-mini"}
	WithTemperature(0.7)(p)
	WithMaxTokens(512)(p)

	msgs := []llm.Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "hi"},
	}
	params := p.buildParams(msgs)

	if params.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" || params.Messages[1].Content != "hi" {
		t.Errorf("messages = %+v", params.Messages)
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Error("temperature not applied")
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Error("max tokens not applied")
	}
}

func TestBuildParamsDefaults(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "m"}
	params := p.buildParams([]llm.Message{{Role: "user", Content: "x"}})
	if params.Temperature != nil {
		t.Error("zero temperature must stay unset")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens must stay unset")
	}
	var _ anyllmlib.CompletionParams = params
}
