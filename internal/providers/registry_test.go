package providers

import "testing"

func TestFindByName(t *testing.T) {
	if spec := FindByName("anthropic"); spec == nil || spec.Family != FamilyAnthropic {
		t.Errorf("FindByName(anthropic) = %+v", spec)
	}
	if spec := FindByName("OPENAI"); spec == nil || spec.Name != "openai" {
		t.Errorf("lookup not case-insensitive: %+v", spec)
	}
	if spec := FindByName("unknown"); spec != nil {
		t.Errorf("FindByName(unknown) = %+v, want nil", spec)
	}
}

func TestFindByModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "openai"},
		{"claude-sonnet-4", "anthropic"},
		{"gemini-2.0-flash", "gemini"},
		{"deepseek-chat", "deepseek"},
		{"qwen2.5-coder", "local"},
	}
	for _, tt := range tests {
		spec := FindByModel(tt.model)
		if spec == nil || spec.Name != tt.want {
			t.Errorf("FindByModel(%q) = %+v, want %s", tt.model, spec, tt.want)
		}
	}
	if spec := FindByModel("mystery-model"); spec != nil {
		t.Errorf("FindByModel(mystery-model) = %+v, want nil", spec)
	}
}

func TestContextWindowForModel(t *testing.T) {
	if got := ContextWindowForModel("claude-sonnet-4"); got != 200000 {
		t.Errorf("claude window = %d", got)
	}
	if got := ContextWindowForModel("mystery-model"); got != 128000 {
		t.Errorf("unknown model window = %d, want default", got)
	}
}

func TestSpecLabel(t *testing.T) {
	if got := (Spec{Name: "openai", DisplayName: "OpenAI"}).Label(); got != "OpenAI" {
		t.Errorf("Label = %q", got)
	}
	if got := (Spec{Name: "local"}).Label(); got != "Local" {
		t.Errorf("Label fallback = %q", got)
	}
}
