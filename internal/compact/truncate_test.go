package compact

import (
	"reflect"
	"strings"
	"testing"

	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/tokens"
)

func msg(role, text string) schema.Message {
	return schema.Message{Role: role, Content: schema.Text(text)}
}

func texts(msgs []schema.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text()
	}
	return out
}

func TestTruncate_FitsUnchanged(t *testing.T) {
	msgs := []schema.Message{
		msg(schema.RoleSystem, "sys"),
		msg(schema.RoleUser, "hello"),
		msg(schema.RoleAssistant, "hi"),
	}
	got := Truncate(msgs, 10000)
	if !reflect.DeepEqual(texts(got), texts(msgs)) {
		t.Errorf("got %v, want unchanged", texts(got))
	}
}

func TestTruncate_KeepsSystemAndQueryDropsOldest(t *testing.T) {
	// Each middle message is 30 runes: 30/3 + 4 = 14 tokens. System and the
	// trailing query cost 14 each, leaving 28 of 56 for the middle: two fit.
	body := strings.Repeat("x", 30)
	msgs := []schema.Message{
		msg(schema.RoleSystem, body),
		msg(schema.RoleUser, "old1"+body[:26]),
		msg(schema.RoleAssistant, "old2"+body[:26]),
		msg(schema.RoleUser, "new1"+body[:26]),
		msg(schema.RoleAssistant, "new2"+body[:26]),
		msg(schema.RoleUser, body),
	}
	got := Truncate(msgs, 56)
	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4: %v", len(got), texts(got))
	}
	if got[0].Role != schema.RoleSystem {
		t.Errorf("leading system lost")
	}
	if got[len(got)-1].Role != schema.RoleUser || got[len(got)-1].Text() != body {
		t.Errorf("trailing query lost")
	}
	if !strings.HasPrefix(got[1].Text(), "new1") || !strings.HasPrefix(got[2].Text(), "new2") {
		t.Errorf("kept wrong middle: %v", texts(got))
	}
}

func TestTruncate_StopsAtFirstOverflow(t *testing.T) {
	// A huge message older than a small one must block everything older,
	// even though the small ones would individually fit.
	small := strings.Repeat("s", 30)
	huge := strings.Repeat("h", 3000)
	msgs := []schema.Message{
		msg(schema.RoleUser, small),     // oldest, would fit, but unreachable
		msg(schema.RoleAssistant, huge), // overflows
		msg(schema.RoleUser, small),
		msg(schema.RoleAssistant, small),
	}
	got := Truncate(msgs, 40)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(got), texts(got))
	}
	for _, m := range got {
		if m.Text() != small {
			t.Errorf("huge or skipped-over message kept: %v", texts(got))
		}
	}
}

func TestTruncate_OrphanedToolResultsPopped(t *testing.T) {
	result := schema.NewToolResultMessage("c1", "get_state", strings.Repeat("r", 30))
	msgs := []schema.Message{
		msg(schema.RoleAssistant, strings.Repeat("a", 300)), // requesting turn, too big
		result,
		msg(schema.RoleAssistant, strings.Repeat("b", 30)),
		msg(schema.RoleUser, strings.Repeat("q", 30)),
	}
	// Budget fits the result + the newer assistant + query, but not the
	// requesting assistant message. The orphaned result must go too.
	got := Truncate(msgs, 50)
	for _, m := range got {
		if m.IsToolResult() {
			t.Errorf("orphaned tool result kept: %v", texts(got))
		}
	}
}

func TestTruncate_Idempotent(t *testing.T) {
	msgs := []schema.Message{
		msg(schema.RoleSystem, strings.Repeat("s", 30)),
		msg(schema.RoleUser, strings.Repeat("a", 300)),
		msg(schema.RoleAssistant, strings.Repeat("b", 30)),
		msg(schema.RoleUser, strings.Repeat("q", 30)),
	}
	once := Truncate(msgs, 60)
	twice := Truncate(once, 60)
	if !reflect.DeepEqual(texts(once), texts(twice)) {
		t.Errorf("not idempotent:\nonce:  %v\ntwice: %v", texts(once), texts(twice))
	}
}

func TestTruncate_Empty(t *testing.T) {
	if got := Truncate(nil, 100); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestShrinkToolResults_UnderBudgetUntouched(t *testing.T) {
	e := NewEngine(nil, "")
	msgs := []schema.Message{
		msg(schema.RoleUser, "hi"),
		schema.NewToolResultMessage("c1", "get_state", strings.Repeat("r", 300)),
	}
	got := e.ShrinkToolResults(msgs, 10000)
	if !reflect.DeepEqual(texts(got), texts(msgs)) {
		t.Errorf("modified under budget: %v", texts(got))
	}
}

func TestShrinkToolResults_TruncatesOnlyToolResults(t *testing.T) {
	e := NewEngine(nil, "")
	assistant := strings.Repeat("a", 3000)
	msgs := []schema.Message{
		msg(schema.RoleAssistant, assistant),
		schema.NewToolResultMessage("c1", "dump", strings.Repeat("r", 9000)),
		msg(schema.RoleUser, "next"),
	}
	got := e.ShrinkToolResults(msgs, 2000)

	if got[0].Text() != assistant {
		t.Errorf("assistant content modified")
	}
	if len(got[1].Text()) > 2010 {
		t.Errorf("tool result not shrunk: %d chars", len(got[1].Text()))
	}
	// Input must stay untouched.
	if len(msgs[1].Text()) != 9000 {
		t.Errorf("input mutated: %d chars", len(msgs[1].Text()))
	}
}

func TestShrinkToolResults_HalvesTowardFloor(t *testing.T) {
	e := NewEngine(nil, "")
	msgs := []schema.Message{
		schema.NewToolResultMessage("c1", "dump", strings.Repeat("r", 9000)),
		schema.NewToolResultMessage("c2", "dump", strings.Repeat("r", 9000)),
	}
	// 2000-char results estimate ~670 tokens each; a 500-token budget forces
	// at least one halving step.
	got := e.ShrinkToolResults(msgs, 500)
	for i, m := range got {
		if len(m.Text()) > 1010 {
			t.Errorf("result %d = %d chars, halving never ran", i, len(m.Text()))
		}
	}
}

func TestShrinkToolResults_FallsBackToTruncate(t *testing.T) {
	e := NewEngine(nil, "")
	var msgs []schema.Message
	for i := 0; i < 50; i++ {
		msgs = append(msgs, msg(schema.RoleAssistant, strings.Repeat("a", 600)))
		msgs = append(msgs, schema.NewToolResultMessage("c", "dump", strings.Repeat("r", 600)))
	}
	// Even floored results cannot fit: the assistant messages alone exceed
	// the budget, so the final Truncate fallback must shed messages.
	got := e.ShrinkToolResults(msgs, 400)
	if len(got) >= len(msgs) {
		t.Errorf("fallback did not drop messages: %d", len(got))
	}
	if tokens.EstimateMessages(got) > 400 {
		t.Errorf("still over budget: %d tokens", tokens.EstimateMessages(got))
	}
}
