package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42,"b":"abc-1","c":null}`), &payload))
	assert.Equal(t, ID("42"), payload.A)
	assert.Equal(t, ID("abc-1"), payload.B)
	assert.Equal(t, ID(""), payload.C)
}

func TestIDMarshalKeepsNumericShape(t *testing.T) {
	out, err := json.Marshal(map[string]ID{"n": "7", "s": "x7", "e": ""})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7,"s":"x7","e":null}`, string(out))
}
