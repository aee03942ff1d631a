package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/apiclient"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/handlertest"
	chatService "github.com/zhouzirui/elera-assistant/console/internal/service/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
)

func setupRouter() (*chi.Mux, *session.Registry, *handlertest.API) {
	api := handlertest.New()
	sessions := session.NewRegistry(api, zerolog.Nop())
	handler := New(sessions)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, sessions, api
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageAppendsExchange(t *testing.T) {
	r, sessions, api := setupRouter()
	s := sessions.Create()

	rec := postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "  my head hurts "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Reply struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"reply"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply.Role != "assistant" || resp.Reply.Content != api.ReplyText {
		t.Fatalf("unexpected reply %+v", resp.Reply)
	}
	if resp.SessionID != "conv-1" {
		t.Fatalf("expected session conv-1, got %s", resp.SessionID)
	}

	chats := api.Chats()
	if len(chats) != 1 || chats[0].Message != "my head hurts" {
		t.Fatalf("expected trimmed message to be sent, got %+v", chats)
	}

	snap := s.Chat.Snapshot()
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(snap.Messages))
	}
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	r, sessions, api := setupRouter()
	s := sessions.Create()

	rec := postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(api.Chats()) != 0 {
		t.Fatal("empty message must not reach the API")
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	r, _, _ := setupRouter()

	rec := postJSON(r, "/sessions/missing/chat/messages", map[string]string{"message": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSendMessageUpstreamFailure(t *testing.T) {
	r, sessions, api := setupRouter()
	api.Err = &apiclient.APIError{Method: http.MethodPost, Path: "/api/chat/", StatusCode: 500, Message: "boom"}
	s := sessions.Create()

	rec := postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "hello"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	snap := s.Chat.Snapshot()
	if len(snap.Messages) != 2 || snap.Messages[1].Content != chatService.FailureReply {
		t.Fatalf("expected failure reply in transcript, got %+v", snap.Messages)
	}
}

func TestSummaryRequiresConversation(t *testing.T) {
	r, sessions, _ := setupRouter()
	s := sessions.Create()

	rec := postJSON(r, "/sessions/"+s.ID+"/chat/summary", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "hello"})
	rec = postJSON(r, "/sessions/"+s.ID+"/chat/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResetClearsTranscript(t *testing.T) {
	r, sessions, _ := setupRouter()
	s := sessions.Create()
	postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "hello"})

	rec := postJSON(r, "/sessions/"+s.ID+"/chat/reset", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if snap := s.Chat.Snapshot(); len(snap.Messages) != 0 || snap.SessionID != "" {
		t.Fatalf("expected empty conversation, got %+v", snap)
	}
}

func TestSubmitFeedbackNeedsExchange(t *testing.T) {
	r, sessions, api := setupRouter()
	s := sessions.Create()

	rec := postJSON(r, "/sessions/"+s.ID+"/feedback", map[string]any{"rating": 4})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without an exchange, got %d", rec.Code)
	}

	postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "hello"})
	rec = postJSON(r, "/sessions/"+s.ID+"/feedback", map[string]any{"rating": 4, "comment": " helpful "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	subs := api.Submissions()
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
	if subs[0].UserQuery != "hello" || subs[0].ResponseText != api.ReplyText || subs[0].Comment != "helpful" {
		t.Fatalf("unexpected submission %+v", subs[0])
	}
	if !subs[0].CulturallyAppropriate {
		t.Fatal("culturally_appropriate should default to true")
	}
	if form := s.Feedback(); form.Rating != 0 {
		t.Fatalf("expected form reset, got %+v", form)
	}
}

func TestSubmitFeedbackRejectsMissingRating(t *testing.T) {
	r, sessions, _ := setupRouter()
	s := sessions.Create()
	postJSON(r, "/sessions/"+s.ID+"/chat/messages", map[string]string{"message": "hello"})

	rec := postJSON(r, "/sessions/"+s.ID+"/feedback", map[string]any{"comment": "no stars"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if form := s.Feedback(); form.Comment != "no stars" {
		t.Fatalf("expected input to be kept, got %+v", form)
	}
}
