package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreflowhq/wabroker/internal/payload"
)

func TestFirstString(t *testing.T) {
	m := map[string]any{
		"empty":   "",
		"nil":     nil,
		"number":  42,
		"message": "hello",
	}

	assert.Equal(t, "hello", payload.FirstString(m, "missing", "message"))
	assert.Equal(t, "hello", payload.FirstString(m, "empty", "nil", "message"))
	assert.Equal(t, "42", payload.FirstString(m, "number"))
	assert.Equal(t, "", payload.FirstString(m, "missing", "empty", "nil"))
	assert.Equal(t, "", payload.FirstString(nil, "anything"))
}

func TestFirstInt(t *testing.T) {
	m := map[string]any{
		"zero":   0,
		"float":  float64(1700000000),
		"string": "123",
		"ts":     int64(99),
	}

	assert.Equal(t, int64(1700000000), payload.FirstInt(m, "zero", "float"))
	assert.Equal(t, int64(123), payload.FirstInt(m, "string"))
	assert.Equal(t, int64(99), payload.FirstInt(m, "missing", "ts"))
	assert.Equal(t, int64(0), payload.FirstInt(m, "zero", "missing"))
}

func TestFirstBool(t *testing.T) {
	m := map[string]any{
		"yes":    true,
		"no":     false,
		"string": "true",
	}

	v, ok := payload.FirstBool(m, "yes")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = payload.FirstBool(m, "no")
	assert.True(t, ok)
	assert.False(t, v)

	v, ok = payload.FirstBool(m, "string")
	assert.True(t, ok)
	assert.True(t, v)

	_, ok = payload.FirstBool(m, "missing")
	assert.False(t, ok)
}

func TestFirstMapAndSlice(t *testing.T) {
	m := map[string]any{
		"payload": map[string]any{"text": "hi"},
		"items":   []any{"a", "b"},
		"scalar":  "nope",
	}

	assert.Equal(t, map[string]any{"text": "hi"}, payload.FirstMap(m, "scalar", "payload"))
	assert.Nil(t, payload.FirstMap(m, "scalar", "missing"))

	assert.Equal(t, []any{"a", "b"}, payload.FirstSlice(m, "scalar", "items"))
	assert.Nil(t, payload.FirstSlice(m, "scalar", "missing"))
}
