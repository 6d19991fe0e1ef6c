package dom

import (
	"strings"

	"github.com/vango-dev/cadview/internal/errors"
)

// Selector is a parsed simple selector. Every non-empty part must match.
type Selector struct {
	Tag     string
	IDs     []string
	Classes []string
	Attrs   []AttrCond
}

// AttrCond is a [key] or [key=value] condition.
type AttrCond struct {
	Key      string
	Value    string
	HasValue bool
}

// isDelim reports whether c starts a new selector part.
func isDelim(c byte) bool {
	return c == '.' || c == '#' || c == '['
}

// ParseSelector parses tag, .class, #id, [key] and [key=value] parts.
// Values in [key=value] may be wrapped in single or double quotes.
func ParseSelector(s string) (Selector, error) {
	var sel Selector

	s = strings.TrimSpace(s)
	if s == "" {
		return sel, parseErr("empty selector")
	}

	i := 0
	for i < len(s) && !isDelim(s[i]) {
		i++
	}
	sel.Tag = s[:i]

	for i < len(s) {
		c := s[i]
		switch c {
		case '.', '#':
			j := i + 1
			for j < len(s) && !isDelim(s[j]) {
				j++
			}
			name := s[i+1 : j]
			if name == "" {
				return Selector{}, parseErr("empty name after '%c' at offset %d", c, i)
			}
			if c == '.' {
				sel.Classes = append(sel.Classes, name)
			} else {
				sel.IDs = append(sel.IDs, name)
			}
			i = j

		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return Selector{}, parseErr("unterminated '[' at offset %d", i)
			}
			cond, err := parseAttrCond(s[i+1 : i+end])
			if err != nil {
				return Selector{}, err
			}
			sel.Attrs = append(sel.Attrs, cond)
			i += end + 1

		default:
			return Selector{}, parseErr("unexpected %q at offset %d", c, i)
		}
	}

	return sel, nil
}

func parseAttrCond(body string) (AttrCond, error) {
	key, value, hasValue := strings.Cut(body, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return AttrCond{}, parseErr("empty attribute name in [%s]", body)
	}
	if !hasValue {
		return AttrCond{Key: key}, nil
	}
	return AttrCond{
		Key:      key,
		Value:    strings.Trim(strings.TrimSpace(value), `"'`),
		HasValue: true,
	}, nil
}

func parseErr(format string, args ...any) error {
	return errors.Newf(errors.KindParse, "dom.ParseSelector", format, args...)
}

// Match reports whether n satisfies every part of the selector.
func (s Selector) Match(n *Node) bool {
	if n == nil {
		return false
	}
	if s.Tag != "" && n.Tag != s.Tag {
		return false
	}
	for _, id := range s.IDs {
		if v, ok := n.Attr("id"); !ok || v != id {
			return false
		}
	}
	if len(s.Classes) > 0 {
		v, _ := n.Attr("class")
		have := strings.Fields(v)
		for _, want := range s.Classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, cond := range s.Attrs {
		v, ok := n.Attr(cond.Key)
		if !ok || (cond.HasValue && v != cond.Value) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
