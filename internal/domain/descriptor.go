package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("malformed oracle output")

// ElementDescriptor is what the oracle reports about a page element.
// Unknown attributes are nil, never omitted on the wire.
type ElementDescriptor struct {
	ID          *string  `json:"id"`
	Name        *string  `json:"name"`
	ElementType *string  `json:"elementType"`
	AriaLabel   *string  `json:"ariaLabel"`
	Placeholder *string  `json:"placeholder"`
	Role        *string  `json:"role"`
	VisibleText *string  `json:"visibleText"`
	ClassList   []string `json:"classList"`
}

func (d ElementDescriptor) MarshalJSON() ([]byte, error) {
	type plain ElementDescriptor
	p := plain(d)
	if p.ClassList == nil {
		p.ClassList = []string{}
	}
	return json.Marshal(p)
}

// Attributes lists the non-null attributes in resolution order:
// id, role, text, aria-label, name, placeholder, type, then each class.
func (d *ElementDescriptor) Attributes() []Attribute {
	var out []Attribute
	add := func(key string, s Strategy, v *string) {
		if v != nil && *v != "" {
			out = append(out, Attribute{Key: key, Predicate: Predicate{Strategy: s, Value: *v}})
		}
	}
	add("id", StrategyID, d.ID)
	add("role", StrategyRole, d.Role)
	add("visibleText", StrategyText, d.VisibleText)
	add("ariaLabel", StrategyAriaLabel, d.AriaLabel)
	add("name", StrategyName, d.Name)
	add("placeholder", StrategyPlaceholder, d.Placeholder)
	add("elementType", StrategyType, d.ElementType)
	for _, c := range d.ClassList {
		out = append(out, Attribute{Key: "classList", Predicate: Predicate{Strategy: StrategyClass, Value: c}})
	}
	return out
}

func (d *ElementDescriptor) Empty() bool { return len(d.Attributes()) == 0 }

// DecodeDescriptor parses oracle output into a descriptor. Anything that is
// not an object of string/null attributes is ErrMalformed, as is an object
// with every attribute null.
func DecodeDescriptor(data []byte) (*ElementDescriptor, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var d ElementDescriptor
	var err error
	field := func(dst **string, keys ...string) {
		if err != nil {
			return
		}
		*dst, err = stringAttr(raw, keys...)
	}
	field(&d.ID, "id")
	field(&d.Name, "name")
	field(&d.ElementType, "elementType", "type")
	field(&d.AriaLabel, "ariaLabel", "aria-label")
	field(&d.Placeholder, "placeholder")
	field(&d.Role, "role")
	field(&d.VisibleText, "visibleText", "text")
	if err != nil {
		return nil, err
	}
	if d.ID != nil {
		id := strings.TrimPrefix(*d.ID, "#")
		d.ID = &id
	}

	if d.ClassList, err = classAttr(raw["classList"]); err != nil {
		return nil, err
	}
	if d.Empty() {
		return nil, fmt.Errorf("%w: every attribute is null", ErrMalformed)
	}
	return &d, nil
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func nullish(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a":
		return true
	}
	return false
}

func stringAttr(raw map[string]json.RawMessage, keys ...string) (*string, error) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if isNull(v) {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("%w: %s is not a string", ErrMalformed, k)
		}
		s = strings.Join(strings.Fields(s), " ")
		if nullish(s) {
			return nil, nil
		}
		return &s, nil
	}
	return nil, nil
}

func classAttr(v json.RawMessage) ([]string, error) {
	if isNull(v) {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(v, &list); err != nil {
		var joined string
		if err2 := json.Unmarshal(v, &joined); err2 != nil {
			return nil, fmt.Errorf("%w: classList is not a list of strings", ErrMalformed)
		}
		list = strings.Fields(joined)
	}
	out := make([]string, 0, len(list))
	seen := map[string]bool{}
	for _, c := range list {
		for _, tok := range strings.Fields(c) {
			tok = strings.TrimPrefix(tok, ".")
			if tok == "" || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out, nil
}

// Ptr returns a pointer to s.
func Ptr(s string) *string { return &s }
