package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"bad input"}`, rr.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`))
	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, DecodeJSON(req, &payload))
	assert.Equal(t, "hi", payload.Message)

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.Error(t, DecodeJSON(bad, &payload))
}

func TestSendSSEEvent(t *testing.T) {
	rr := httptest.NewRecorder()
	SetupSSEHeaders(rr)

	require.NoError(t, SendSSEEvent(rr, rr, "state", map[string]string{"state": "recording"}))
	require.NoError(t, SendSSEComment(rr, rr, "ping"))

	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "event: state\ndata: {\"state\":\"recording\"}\n\n")
	assert.Contains(t, body, ": ping\n\n")
	assert.True(t, rr.Flushed)
}
