package speech

import (
	"sync"
	"time"
)

// EventType names a loop event.
type EventType string

const (
	EventState              EventType = "state"
	EventTranscript         EventType = "transcript"
	EventReply              EventType = "reply"
	EventFeedbackPrompt     EventType = "feedback_prompt"
	EventVoiceLimit         EventType = "voice_limit"
	EventPermissionRequired EventType = "permission_required"
	EventError              EventType = "error"
)

// Event is pushed to subscribers as the loop progresses.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state,omitempty"`
	Text    string    `json:"text,omitempty"`
	Query   string    `json:"query,omitempty"`
	VoiceID string    `json:"voice_id,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
