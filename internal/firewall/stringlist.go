package firewall

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList is a parameter given either as a bare string or as a sequence
// of strings. The form as written is kept so that it round-trips into the
// emitted plan unchanged.
type StringList struct {
	values []string
	scalar bool
}

// Scalar returns a StringList holding a single bare string.
func Scalar(s string) StringList {
	return StringList{values: []string{s}, scalar: true}
}

// List returns a StringList in sequence form.
func List(values ...string) StringList {
	return StringList{values: append([]string{}, values...)}
}

// IsScalar reports whether the value was given as a bare string.
func (l StringList) IsScalar() bool { return l.scalar }

// Len returns the number of strings.
func (l StringList) Len() int { return len(l.values) }

// Values returns the strings in order.
func (l StringList) Values() []string {
	return append([]string{}, l.values...)
}

// Prepend returns a sequence with values followed by the strings of l. The
// result is always in sequence form.
func (l StringList) Prepend(values ...string) StringList {
	out := make([]string, 0, len(values)+len(l.values))
	out = append(out, values...)
	out = append(out, l.values...)
	return StringList{values: out}
}

// Ptr returns a pointer to a copy of l.
func (l StringList) Ptr() *StringList {
	return &l
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = StringList{}
			return nil
		}
		*l = Scalar(node.Value)
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*l = List(values...)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (l StringList) MarshalYAML() (any, error) {
	if l.scalar {
		return l.values[0], nil
	}
	return l.Values(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = StringList{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Scalar(s)
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*l = List(values...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l StringList) MarshalJSON() ([]byte, error) {
	if l.scalar {
		return json.Marshal(l.values[0])
	}
	return json.Marshal(l.Values())
}
