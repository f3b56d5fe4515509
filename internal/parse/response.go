// Package parse interprets raw model output: it extracts embedded JSON,
// recognises the tool-call shapes of the three supported provider families,
// and round-trips tool calls through the canonical assistant-message
// encoding. The same logic runs whether the provider streamed the response
// or returned it whole.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/emberhome/ember/internal/shared/stringutils"
)

// ResponseType classifies what a model response carries.
type ResponseType string

const (
	TypeText      ResponseType = "text"
	TypeJSON      ResponseType = "json"
	TypeToolCalls ResponseType = "tool_calls"
)

// Response is the structured view of one raw model response.
// Object is non-nil for TypeJSON and TypeToolCalls. Raw always reflects the
// cleaned (invisible characters stripped) text for audit purposes.
type Response struct {
	Type    ResponseType
	Object  map[string]any
	Content string
	Raw     string
}

var reFence = regexp.MustCompile("(?s)```(?:json)?[ \t]*\n?(.*?)```")

// Parse extracts structured content from raw model text.
//
// Order matters: invisible characters are stripped before any JSON attempt
// (they silently break the parser), fenced code blocks take priority over
// raw JSON elsewhere in the text, then a direct whole-string parse, then a
// first-{ to last-} span. Only JSON objects count as structured content;
// arrays and scalars parse syntactically but carry no protocol meaning here
// and fall through to text.
func Parse(raw string) Response {
	cleaned := stringutils.StripInvisible(raw)

	if obj := extractObject(cleaned); obj != nil {
		return Response{Type: classify(obj), Object: obj, Content: cleaned, Raw: cleaned}
	}
	return Response{Type: TypeText, Content: strings.TrimSpace(cleaned), Raw: cleaned}
}

func extractObject(text string) map[string]any {
	if m := reFence.FindStringSubmatch(text); m != nil {
		if obj := parseObject(m[1]); obj != nil {
			return obj
		}
	}
	if obj := parseObject(text); obj != nil {
		return obj
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return parseObject(text[start : end+1])
	}
	return nil
}

// parseObject parses s as JSON and returns it only when it is an object.
func parseObject(s string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

func classify(obj map[string]any) ResponseType {
	if _, ok := obj["tool_calls"]; ok {
		return TypeToolCalls
	}
	if _, ok := obj["function_call"]; ok {
		return TypeToolCalls
	}
	return TypeJSON
}
