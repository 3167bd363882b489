package book

import (
	"encoding/json"
	"sort"
)

// ValueKind tells which shape a Value holds.
type ValueKind int8

const (
	KindNone ValueKind = iota
	KindScalar
	KindList
	KindLocalized
)

// Value is a metadata field whose cardinality depends on the source format:
// a single string, a list of strings, or a map of language tag to string.
type Value struct {
	kind      ValueKind
	scalar    string
	list      []string
	localized map[string]string
}

// Scalar returns a single-valued Value. An empty string yields the zero Value.
func Scalar(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: s}
}

// List returns a multi-valued Value, skipping empty strings. One remaining
// element collapses to a scalar.
func List(values ...string) Value {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return Value{}
	case 1:
		return Scalar(out[0])
	default:
		return Value{kind: KindList, list: out}
	}
}

// Localized returns a Value keyed by language tag ("" for untagged text).
func Localized(m map[string]string) Value {
	out := make(map[string]string, len(m))
	for lang, v := range m {
		if v != "" {
			out[lang] = v
		}
	}
	if len(out) == 0 {
		return Value{}
	}
	return Value{kind: KindLocalized, localized: out}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsZero() bool { return v.kind == KindNone }

// Langs returns the language tags of a localized value in sorted order.
func (v Value) Langs() []string {
	if v.kind != KindLocalized {
		return nil
	}
	langs := make([]string, 0, len(v.localized))
	for lang := range v.localized {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Lang returns the text for a language tag of a localized value.
func (v Value) Lang(tag string) (string, bool) {
	s, ok := v.localized[tag]
	return s, ok
}

// First returns the primary string. For localized values the untagged ("" or
// "und") entry wins, otherwise the first tag in sorted order.
func (v Value) First() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		return v.list[0]
	case KindLocalized:
		for _, lang := range []string{"", "und"} {
			if s, ok := v.localized[lang]; ok {
				return s
			}
		}
		return v.localized[v.Langs()[0]]
	default:
		return ""
	}
}

// All returns every string held by v.
func (v Value) All() []string {
	switch v.kind {
	case KindScalar:
		return []string{v.scalar}
	case KindList:
		return append([]string(nil), v.list...)
	case KindLocalized:
		langs := v.Langs()
		out := make([]string, len(langs))
		for i, lang := range langs {
			out[i] = v.localized[lang]
		}
		return out
	default:
		return nil
	}
}

// Append adds s, turning a scalar into a list. Localized values are returned
// unchanged.
func (v Value) Append(s string) Value {
	switch v.kind {
	case KindNone:
		return Scalar(s)
	case KindScalar, KindList:
		return List(append(v.All(), s)...)
	default:
		return v
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindList:
		return json.Marshal(v.list)
	case KindLocalized:
		return json.Marshal(v.localized)
	default:
		return []byte("null"), nil
	}
}
