package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LLM is a text model asked to answer with a single JSON object.
type LLM interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// decodeJSON pulls the first JSON object out of a model reply, tolerating
// code fences and chatter around it.
func decodeJSON(reply string, v interface{}) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), v); err != nil {
		return fmt.Errorf("malformed JSON in reply: %w", err)
	}
	return nil
}

// looseString accepts a JSON string, number or bool.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = looseString(num.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = looseString(strconv.FormatBool(b))
		return nil
	}
	*s = ""
	return nil
}

// looseStrings accepts a JSON list of strings or a single string.
type looseStrings []string

func (s *looseStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
			return nil
		}
		parts := strings.Split(one, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*s = parts
		return nil
	}
	*s = nil
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
