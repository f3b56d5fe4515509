package compact

import (
	"github.com/emberhome/ember/internal/schema"
	"github.com/emberhome/ember/internal/shared/stringutils"
	"github.com/emberhome/ember/internal/tokens"
)

// In-loop tool-result shrink bounds.
const (
	shrinkStartChars = 2000
	shrinkFloorChars = 200
)

// Truncate is the deterministic fallback: it keeps a leading system message
// and a trailing user query, then walks the middle history newest-first,
// greedily keeping messages while the budget allows, stopping at the first
// overflow. Recency is prioritised over completeness: older messages beyond
// the stop point are dropped, never the newer ones already kept.
//
// After selection the oldest kept messages are popped while they are tool
// results, because an orphaned tool result without its requesting assistant
// message makes the model re-issue the same call.
//
// Truncate is pure and idempotent for a fixed budget.
func Truncate(msgs []schema.Message, available int) []schema.Message {
	if len(msgs) == 0 {
		return msgs
	}

	var system, query *schema.Message
	middle := msgs
	if middle[0].Role == schema.RoleSystem {
		system = &middle[0]
		middle = middle[1:]
	}
	if len(middle) > 0 && middle[len(middle)-1].Role == schema.RoleUser {
		query = &middle[len(middle)-1]
		middle = middle[:len(middle)-1]
	}

	remaining := available
	if system != nil {
		remaining -= tokens.EstimateMessage(*system)
	}
	if query != nil {
		remaining -= tokens.EstimateMessage(*query)
	}

	// Newest-first greedy selection.
	var kept []schema.Message
	for i := len(middle) - 1; i >= 0; i-- {
		cost := tokens.EstimateMessage(middle[i])
		if remaining-cost < 0 {
			break
		}
		remaining -= cost
		kept = append(kept, middle[i])
	}

	// Orphan repair: the oldest kept message must not be a tool result.
	for len(kept) > 0 && kept[len(kept)-1].IsToolResult() {
		kept = kept[:len(kept)-1]
	}

	out := make([]schema.Message, 0, len(kept)+2)
	if system != nil {
		out = append(out, *system)
	}
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	if query != nil {
		out = append(out, *query)
	}
	return out
}

// ShrinkToolResults is the narrow in-loop path: it never discards
// assistant/tool pairs (the model must remember what it already tried) and
// instead progressively truncates tool-result contents, halving the cap from
// 2000 down to a 200-char floor and re-measuring after each pass. If the
// list still exceeds the budget at the floor it falls back to Truncate as an
// absolute last resort.
func (e *Engine) ShrinkToolResults(msgs []schema.Message, available int) []schema.Message {
	if tokens.EstimateMessages(msgs) <= available {
		return msgs
	}

	out := schema.CloneMessages(msgs)
	limit := shrinkStartChars
	for {
		for i := range out {
			if !out[i].IsToolResult() {
				continue
			}
			out[i].Content = schema.Text(stringutils.Truncate(out[i].Text(), limit))
		}
		if tokens.EstimateMessages(out) <= available {
			return out
		}
		if limit <= shrinkFloorChars {
			break
		}
		limit /= 2
		if limit < shrinkFloorChars {
			limit = shrinkFloorChars
		}
	}
	return Truncate(out, available)
}
