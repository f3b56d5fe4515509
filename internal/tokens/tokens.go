// Package tokens implements heuristic token accounting for context budgets.
//
// There is deliberately no tokenizer dependency: estimates must stay
// computable offline and deterministic for testing. The constants are chosen
// conservative for multilingual text, so budgets err toward compacting early
// rather than overflowing the model's context window.
package tokens

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/emberhome/ember/internal/schema"
)

const (
	// CharsPerToken is the characters-per-token ratio of the estimate.
	CharsPerToken = 3

	// MessageOverheadTokens approximates per-message role/separator cost.
	MessageOverheadTokens = 4

	// ToolSchemaReserveTokens is subtracted from every budget as a
	// conservative stand-in for 12-20 loaded tool schemas, so callers do not
	// have to serialise schemas on every estimate.
	ToolSchemaReserveTokens = 5000

	// DefaultOutputReserveTokens is held back for the model's response.
	DefaultOutputReserveTokens = 8192

	// DefaultSafetyMargin is the fraction of the window held back on top of
	// the output reserve.
	DefaultSafetyMargin = 0.20
)

// EstimateText estimates the token count of a string: rune count divided by
// CharsPerToken, 0 for empty text.
func EstimateText(text string) int {
	if text == "" {
		return 0
	}
	return utf8.RuneCountInString(text) / CharsPerToken
}

// EstimateMessage estimates one message: its text content plus the fixed
// per-message overhead.
func EstimateMessage(m schema.Message) int {
	return EstimateText(m.Text()) + MessageOverheadTokens
}

// EstimateMessages sums the per-message estimates of the whole list.
func EstimateMessages(msgs []schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}

// EstimateTotal estimates messages plus the serialised tool schemas. Used
// only where schema cost must be counted explicitly; elsewhere budgets
// subtract ToolSchemaReserveTokens instead.
func EstimateTotal(msgs []schema.Message, tools []map[string]any) int {
	total := EstimateMessages(msgs)
	for _, t := range tools {
		data, err := json.Marshal(t)
		if err != nil {
			continue
		}
		total += EstimateText(string(data))
	}
	return total
}

// Budget is the derived context budget for one provider call.
type Budget struct {
	Total             int
	OutputReserve     int
	SafetyBuffer      int
	AvailableForInput int
}

// ComputeBudget derives a Budget from a context-window size.
// AvailableForInput is floored at 0 so tiny windows degrade gracefully.
func ComputeBudget(window, outputReserve int, safetyMargin float64) Budget {
	if outputReserve <= 0 {
		outputReserve = DefaultOutputReserveTokens
	}
	if safetyMargin <= 0 {
		safetyMargin = DefaultSafetyMargin
	}
	safety := int(float64(window) * safetyMargin)
	available := window - outputReserve - safety - ToolSchemaReserveTokens
	if available < 0 {
		available = 0
	}
	return Budget{
		Total:             window,
		OutputReserve:     outputReserve,
		SafetyBuffer:      safety,
		AvailableForInput: available,
	}
}

// DefaultBudget derives a Budget with the default reserve and margin.
func DefaultBudget(window int) Budget {
	return ComputeBudget(window, DefaultOutputReserveTokens, DefaultSafetyMargin)
}
