package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/handlertest"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
)

func setup(t *testing.T) (*httptest.Server, *session.Session, *speech.Controller) {
	t.Helper()
	api := handlertest.New()
	sessions := session.NewRegistry(api, zerolog.Nop())
	s := sessions.Create()

	mic := speech.NewStreamMicrophone(speech.DefaultPCMFormat)
	player := speech.NewStreamPlayer(func(ctx context.Context, audio speechmodel.Audio) error { return nil }, time.Second)
	remote := speech.NewRemote(api, s.ID, "Patient", s.Chat.SessionID)
	ctrl := speech.NewController(speech.Devices{
		Microphone:  mic,
		Transcriber: remote,
		Replier:     s.Chat,
		Synthesizer: remote,
		Player:      player,
	}, speech.Options{SkipWelcome: true}, zerolog.Nop())
	s.AttachVoice(ctrl)

	r := chi.NewRouter()
	New(sessions, 20*time.Millisecond).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, s, ctrl
}

func TestEventsRequireVoice(t *testing.T) {
	api := handlertest.New()
	sessions := session.NewRegistry(api, zerolog.Nop())
	s := sessions.Create()
	r := chi.NewRouter()
	New(sessions, 0).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+s.ID+"/voice/events", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/missing/voice/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEventsStreamUntilVoiceCloses(t *testing.T) {
	srv, s, ctrl := setup(t)

	resp, err := http.Get(srv.URL + "/sessions/" + s.ID + "/voice/events")
	if err != nil {
		t.Fatalf("GET err: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	want := []string{"event: open", "event: status", ": heartbeat"}
	waitFor := func(prefix string) {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended before %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}
	for _, prefix := range want {
		waitFor(prefix)
	}

	if err := ctrl.GrantPermission(context.Background()); err != nil {
		t.Fatalf("GrantPermission err: %v", err)
	}
	waitFor("event: state")

	s.DetachVoice(ctrl)
	waitFor("event: end")
}
