package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"strategist/pkg/errors"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// Keys of the object returned when a reply cannot be parsed.
const (
	KeyError       = "error"
	KeyRawResponse = "raw_response"
)

// payload returns the first fenced code block of text, or the whole trimmed text.
func payload(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ParseObject decodes a JSON object from an LLM reply. Fenced blocks are
// unwrapped and malformed JSON is repaired before giving up.
func ParseObject(text string) (map[string]any, error) {
	body := payload(text)
	if body == "" {
		return nil, errors.Wrap(errors.ErrLLMParse, "empty response")
	}

	var out map[string]any
	if err := unmarshalJSON([]byte(body), &out); err != nil {
		return nil, errors.Wrapf(errors.ErrLLMParse, "%v", err)
	}
	if out == nil {
		return nil, errors.Wrap(errors.ErrLLMParse, "response is not a JSON object")
	}
	return out, nil
}

// ParseFailure builds the object ExtractJSON returns for an unparseable reply.
func ParseFailure(err error, raw string) map[string]any {
	return map[string]any{
		KeyError:       "Failed to parse JSON response: " + err.Error(),
		KeyRawResponse: raw,
	}
}

// IsParseFailure reports whether v is a ParseFailure object.
func IsParseFailure(v map[string]any) bool {
	if v == nil {
		return false
	}
	_, hasErr := v[KeyError]
	_, hasRaw := v[KeyRawResponse]
	return hasErr && hasRaw
}

func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fixed, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
