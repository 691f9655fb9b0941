package experiment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildSnapshot(t *testing.T) {
	tests := []struct {
		name        string
		base        map[string]any
		overrides   map[string]any
		want        map[string]any
		shouldError bool
		errContains string
	}{
		{
			name: "Scalars are kept",
			base: map[string]any{"c": 10, "gamma": 0.01, "kernel": "rbf", "shrinking": true},
			want: map[string]any{"c": 10, "gamma": 0.01, "kernel": "rbf", "shrinking": true},
		},
		{
			name:      "Overrides win at top level",
			base:      map[string]any{"batch_size": 40, "iterations": 10000},
			overrides: map[string]any{"iterations": 10},
			want:      map[string]any{"batch_size": 40, "iterations": 10},
		},
		{
			name:      "Nested override replaces whole value",
			base:      map[string]any{"optimizer": map[string]any{"lr": 0.01, "decay": 0.999}},
			overrides: map[string]any{"optimizer": map[string]any{"lr": 0.1}},
			want:      map[string]any{"optimizer": map[string]any{"lr": 0.1}},
		},
		{
			name: "Numbers are normalized",
			base: map[string]any{"a": int64(3), "b": uint8(4), "c": float32(0.5), "d": json.Number("7"), "e": json.Number("1.5")},
			want: map[string]any{"a": 3, "b": 4, "c": 0.5, "d": 7, "e": 1.5},
		},
		{
			name: "Typed containers are normalized",
			base: map[string]any{
				"layers":  []int{16, 32},
				"weights": map[string]float64{"x": 1},
				"legacy":  map[any]any{"k": "v"},
			},
			want: map[string]any{
				"layers":  []any{16, 32},
				"weights": map[string]any{"x": 1.0},
				"legacy":  map[string]any{"k": "v"},
			},
		},
		{
			name: "Nil base is an empty snapshot",
			want: map[string]any{},
		},
		{
			name:        "Empty key",
			base:        map[string]any{"": 1},
			shouldError: true,
			errContains: "option names cannot be empty",
		},
		{
			name:        "Non-string nested keys",
			base:        map[string]any{"bad": map[any]any{1: "one"}},
			shouldError: true,
			errContains: "mapping keys must be strings",
		},
		{
			name:        "Unsupported value type",
			base:        map[string]any{"fn": func() {}},
			shouldError: true,
			errContains: "unsupported type",
		},
		{
			name:        "Unsigned overflow",
			base:        map[string]any{"big": uint64(1 << 63)},
			shouldError: true,
			errContains: "overflows int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := BuildSnapshot(tt.base, tt.overrides)
			if tt.shouldError {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrConfig)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.AsMap())
		})
	}
}

func TestSnapshotGet(t *testing.T) {
	config := map[string]any{"c": 10, "gamma": 0.01, "name": "svm", "verbose": false}
	snap, err := BuildSnapshot(config, nil)
	require.NoError(t, err)

	t.Run("Every key resolves to its value", func(t *testing.T) {
		for k, v := range config {
			got, err := snap.Get(k)
			assert.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("Named accessors agree with Get", func(t *testing.T) {
		c, err := snap.Int("c")
		assert.NoError(t, err)
		assert.Equal(t, config["c"], c)

		gamma, err := snap.Float("gamma")
		assert.NoError(t, err)
		assert.Equal(t, config["gamma"], gamma)

		name, err := snap.String("name")
		assert.NoError(t, err)
		assert.Equal(t, config["name"], name)

		verbose, err := snap.Bool("verbose")
		assert.NoError(t, err)
		assert.Equal(t, config["verbose"], verbose)
	})

	t.Run("Float accepts integers", func(t *testing.T) {
		c, err := snap.Float("c")
		assert.NoError(t, err)
		assert.Equal(t, 10.0, c)
	})

	t.Run("Absent option is an error", func(t *testing.T) {
		v, err := snap.Get("kernel")
		assert.Nil(t, v)
		assert.ErrorIs(t, err, ErrMissingOption)
		assert.ErrorIs(t, err, ErrConfig)

		_, err = snap.Int("kernel")
		assert.ErrorIs(t, err, ErrMissingOption)
		_, err = snap.Float("kernel")
		assert.ErrorIs(t, err, ErrMissingOption)
		_, err = snap.String("kernel")
		assert.ErrorIs(t, err, ErrMissingOption)
		_, err = snap.Bool("kernel")
		assert.ErrorIs(t, err, ErrMissingOption)
		assert.False(t, snap.Has("kernel"))
	})

	t.Run("Wrong type is an error", func(t *testing.T) {
		_, err := snap.Int("gamma")
		assert.ErrorIs(t, err, ErrConfig)
		assert.Contains(t, err.Error(), "not int")

		_, err = snap.String("c")
		assert.ErrorIs(t, err, ErrConfig)

		_, err = snap.Sub("name")
		assert.ErrorIs(t, err, ErrConfig)
	})
}

func TestSnapshotIsImmutable(t *testing.T) {
	base := map[string]any{
		"optimizer": map[string]any{"lr": 0.01},
		"layers":    []any{16, 32},
	}
	snap, err := BuildSnapshot(base, nil)
	require.NoError(t, err)

	// Mutating the input after the build does not leak in.
	base["optimizer"].(map[string]any)["lr"] = 1.0
	base["extra"] = true

	// Mutating returned values does not leak in either.
	opt, err := snap.Get("optimizer")
	require.NoError(t, err)
	opt.(map[string]any)["lr"] = 2.0

	all := snap.AsMap()
	all["layers"].([]any)[0] = 99

	sub, err := snap.Sub("optimizer")
	require.NoError(t, err)
	lr, err := sub.Float("lr")
	assert.NoError(t, err)
	assert.Equal(t, 0.01, lr)

	layers, err := snap.Get("layers")
	assert.NoError(t, err)
	assert.Equal(t, []any{16, 32}, layers)
	assert.False(t, snap.Has("extra"))
}

func TestSnapshotKeys(t *testing.T) {
	snap, err := BuildSnapshot(map[string]any{"b": 2, "a": 1}, map[string]any{"c": 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, snap.Keys())
	assert.Equal(t, 3, snap.Len())
}

func TestSnapshotYAMLRoundTrip(t *testing.T) {
	config := map[string]any{
		"batch_size": 40,
		"initial_lr": 0.01,
		"lr_decay":   0.999,
		"whole":      1.0,
		"huge":       1e21,
		"tiny":       1e-7,
		"negative":   -3,
		"name":       "planar",
		"looks_int":  "42",
		"looks_bool": "true",
		"looks_null": "null",
		"empty":      "",
		"multiline":  "first\nsecond",
		"flag":       true,
		"nothing":    nil,
		"layers":     []any{16, 32.5, "x"},
		"optimizer":  map[string]any{"kind": "rmsprop", "lr": 2.0},
		"empty_map":  map[string]any{},
		"started":    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	snap, err := BuildSnapshot(config, nil)
	require.NoError(t, err)

	data, err := yaml.Marshal(snap)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))

	rebuilt, err := BuildSnapshot(decoded, nil)
	require.NoError(t, err)
	assert.Equal(t, snap.AsMap(), rebuilt.AsMap())
	assert.Equal(t, snap.AsMap(), decoded)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1.0", formatFloat(1))
	assert.Equal(t, "0.01", formatFloat(0.01))
	assert.Equal(t, "1e+21", formatFloat(1e21))
	assert.Equal(t, "-2.0", formatFloat(-2))
}
