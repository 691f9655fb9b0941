package experiment

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is an immutable view of a run's configuration.
//
// Values are normalized when the snapshot is built: integers become int,
// floats become float64, nested mappings become map[string]any and lists
// become []any. Every accessor hands out copies, so nothing reachable from a
// Snapshot can be mutated after it is built.
type Snapshot struct {
	values map[string]any
	keys   []string
}

// BuildSnapshot merges overrides over base and freezes the result.
// Overrides win on top-level key collisions. Nested mappings are not
// deep-merged: an override replaces the whole nested value.
func BuildSnapshot(base, overrides map[string]any) (*Snapshot, error) {
	merged := make(map[string]any, len(base)+len(overrides))

	for _, layer := range []map[string]any{base, overrides} {
		for key, value := range layer {
			if key == "" {
				return nil, fmt.Errorf("%w: option names cannot be empty", ErrConfig)
			}
			normalized, err := normalizeValue(key, value)
			if err != nil {
				return nil, err
			}
			merged[key] = normalized
		}
	}

	return newSnapshot(merged), nil
}

func newSnapshot(values map[string]any) *Snapshot {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Snapshot{values: values, keys: keys}
}

// Get returns the value of the named option. An absent option is always an
// error wrapping ErrMissingOption, never a zero value.
func (s *Snapshot) Get(name string) (any, error) {
	v, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingOption, name)
	}
	return copyValue(v), nil
}

// Has reports whether the option is set.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Int returns an integer option.
func (s *Snapshot) Int(name string) (int, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, typeMismatch(name, "int", v)
	}
	return i, nil
}

// Float returns a numeric option as float64. Integer values are accepted.
func (s *Snapshot) Float(name string) (float64, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, typeMismatch(name, "float", v)
}

// String returns a string option.
func (s *Snapshot) String(name string) (string, error) {
	v, err := s.Get(name)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", typeMismatch(name, "string", v)
	}
	return str, nil
}

// Bool returns a boolean option.
func (s *Snapshot) Bool(name string) (bool, error) {
	v, err := s.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeMismatch(name, "bool", v)
	}
	return b, nil
}

// Sub returns a nested mapping option as its own Snapshot.
func (s *Snapshot) Sub(name string) (*Snapshot, error) {
	v, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeMismatch(name, "mapping", v)
	}
	return newSnapshot(m), nil
}

// Keys returns the option names in lexicographic order.
func (s *Snapshot) Keys() []string {
	return append([]string(nil), s.keys...)
}

func (s *Snapshot) Len() int { return len(s.keys) }

// AsMap returns a deep copy of every option, for logging and serialization.
func (s *Snapshot) AsMap() map[string]any {
	return copyValue(s.values).(map[string]any)
}

// MarshalYAML encodes the snapshot so that decoding it back yields the same
// normalized values: floats always keep a float form and strings that would
// read as another scalar are quoted.
func (s *Snapshot) MarshalYAML() (any, error) {
	return encodeNode(s.values)
}

func typeMismatch(name, want string, got any) error {
	return fmt.Errorf("%w: option %q is %s, not %s", ErrConfig, name, describeType(got), want)
}

func describeType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "a mapping"
	case []any:
		return "a list"
	}
	return fmt.Sprintf("%T", v)
}

// normalizeValue converts v into one of the snapshot's canonical types.
// path names the option for error messages.
func normalizeValue(path string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return x, nil
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		if x > math.MaxInt || x < math.MinInt {
			return nil, fmt.Errorf("%w: option %q: integer %d overflows int", ErrConfig, path, x)
		}
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint:
		if uint64(x) > math.MaxInt {
			return nil, fmt.Errorf("%w: option %q: integer %d overflows int", ErrConfig, path, x)
		}
		return int(x), nil
	case uint64:
		if x > math.MaxInt {
			return nil, fmt.Errorf("%w: option %q: integer %d overflows int", ErrConfig, path, x)
		}
		return int(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return normalizeValue(path, i)
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: option %q: invalid number %q", ErrConfig, path, x.String())
		}
		return f, nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			if k == "" {
				return nil, fmt.Errorf("%w: option %q: nested keys cannot be empty", ErrConfig, path)
			}
			n, err := normalizeValue(path+"."+k, item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := normalizeValue(fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key()
			if key.Kind() == reflect.Interface {
				key = key.Elem()
			}
			if key.Kind() != reflect.String {
				return nil, fmt.Errorf("%w: option %q: mapping keys must be strings, got %v", ErrConfig, path, iter.Key().Interface())
			}
			if key.String() == "" {
				return nil, fmt.Errorf("%w: option %q: nested keys cannot be empty", ErrConfig, path)
			}
			n, err := normalizeValue(path+"."+key.String(), iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[key.String()] = n
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return normalizeValue(path, items)
	}

	// go-toml local dates and times land here.
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}

	return nil, fmt.Errorf("%w: option %q has unsupported type %T", ErrConfig, path, v)
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}

func encodeNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(x)}, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			child, err := encodeNode(x[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				child,
			)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			child, err := encodeNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	}

	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode config value %v: %w", v, err)
	}
	return node, nil
}

// formatFloat renders f so that YAML resolves it back to a float, never an int.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
