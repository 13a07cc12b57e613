package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Korbielowski/AutoApply/internal/domain"
)

// ParseVerdict reads the first true/yes or false/no word in answer.
// An answer with neither, including an empty one, is false.
func ParseVerdict(answer string) bool {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch w {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return false
}

// ParseIndex returns the first integer in answer if it lies in [0, n).
func ParseIndex(answer string, n int) (int, bool) {
	for _, f := range strings.FieldsFunc(answer, func(r rune) bool { return !unicode.IsDigit(r) }) {
		i, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		if i >= 0 && i < n {
			return i, true
		}
		return 0, false
	}
	return 0, false
}

// ExtractJSON pulls the outermost JSON object out of an answer that may be
// wrapped in a markdown fence or prose.
func ExtractJSON(answer string) []byte {
	s := strings.TrimSpace(answer)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return []byte(s)
	}
	return []byte(s[start : end+1])
}

// DecodeJSON unmarshals the object in answer into v. Failures wrap
// domain.ErrMalformed.
func DecodeJSON(answer string, v any) error {
	dec := json.NewDecoder(bytes.NewReader(ExtractJSON(answer)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}
	return nil
}

// AskBool sends prompt and parses a strict boolean answer. Only transport
// errors are returned; an unreadable answer is false.
func AskBool(ctx context.Context, c Client, prompt string) (bool, error) {
	out, err := c.Complete(ctx, Request{Prompt: prompt})
	if err != nil {
		return false, err
	}
	return ParseVerdict(out), nil
}

// AskJSON sends prompt in typed mode and decodes the answer into v.
func AskJSON(ctx context.Context, c Client, prompt string, schema *Schema, v any) error {
	out, err := c.Complete(ctx, Request{Prompt: prompt, Schema: schema})
	if err != nil {
		return err
	}
	return DecodeJSON(out, v)
}
