package tokens

import (
	"strings"
	"testing"

	"github.com/emberhome/ember/internal/schema"
)

func TestEstimateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"shorter than ratio", "ab", 0},
		{"exact multiple", "abcdef", 2},
		{"truncating division", "abcdefg", 2},
		{"ascii sentence", strings.Repeat("x", 300), 100},
		// Runes, not bytes: 20 runes of Polish text estimate the same as
		// 20 ASCII characters.
		{"polish greeting", "Cześć, jak się masz?", 6},
		{"cjk", "你好世界你好", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateText(tt.text); got != tt.want {
				t.Errorf("EstimateText(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateMessage(t *testing.T) {
	m := schema.NewUserMessage(schema.Text("abcdef"))
	if got := EstimateMessage(m); got != 2+MessageOverheadTokens {
		t.Errorf("EstimateMessage = %d, want %d", got, 2+MessageOverheadTokens)
	}

	empty := schema.NewUserMessage(schema.Text(""))
	if got := EstimateMessage(empty); got != MessageOverheadTokens {
		t.Errorf("empty message = %d, want overhead %d", got, MessageOverheadTokens)
	}
}

func TestEstimateMessage_Multimodal(t *testing.T) {
	m := schema.NewUserMessage(schema.Multimodal{
		Text:   "abcdef",
		Images: []schema.Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
	})
	// Only the text part counts; attachments are not estimated.
	if got := EstimateMessage(m); got != 2+MessageOverheadTokens {
		t.Errorf("EstimateMessage = %d, want %d", got, 2+MessageOverheadTokens)
	}
}

func TestEstimateMessages(t *testing.T) {
	msgs := []schema.Message{
		schema.NewSystemMessage("abcdef"),
		schema.NewUserMessage(schema.Text("abcdef")),
	}
	want := 2*(2+MessageOverheadTokens)
	if got := EstimateMessages(msgs); got != want {
		t.Errorf("EstimateMessages = %d, want %d", got, want)
	}
	if got := EstimateMessages(nil); got != 0 {
		t.Errorf("EstimateMessages(nil) = %d, want 0", got)
	}
}

func TestComputeBudget(t *testing.T) {
	b := ComputeBudget(128000, 0, 0)
	if b.OutputReserve != DefaultOutputReserveTokens {
		t.Errorf("OutputReserve = %d, want default %d", b.OutputReserve, DefaultOutputReserveTokens)
	}
	if b.SafetyBuffer != 25600 {
		t.Errorf("SafetyBuffer = %d, want 25600", b.SafetyBuffer)
	}
	want := 128000 - 8192 - 25600 - ToolSchemaReserveTokens
	if b.AvailableForInput != want {
		t.Errorf("AvailableForInput = %d, want %d", b.AvailableForInput, want)
	}
}

func TestComputeBudget_TinyWindowFloorsAtZero(t *testing.T) {
	b := ComputeBudget(1000, 0, 0)
	if b.AvailableForInput != 0 {
		t.Errorf("AvailableForInput = %d, want 0 for a tiny window", b.AvailableForInput)
	}
}

func TestComputeBudget_ExplicitReserve(t *testing.T) {
	b := ComputeBudget(100000, 4096, 0.10)
	want := 100000 - 4096 - 10000 - ToolSchemaReserveTokens
	if b.AvailableForInput != want {
		t.Errorf("AvailableForInput = %d, want %d", b.AvailableForInput, want)
	}
}

func TestEstimateTotal_CountsToolSchemas(t *testing.T) {
	msgs := []schema.Message{schema.NewUserMessage(schema.Text("abcdef"))}
	tools := []map[string]any{
		{"type": "function", "function": map[string]any{"name": "get_state"}},
	}
	withTools := EstimateTotal(msgs, tools)
	withoutTools := EstimateTotal(msgs, nil)
	if withTools <= withoutTools {
		t.Errorf("tool schemas added no cost: with=%d without=%d", withTools, withoutTools)
	}
}
