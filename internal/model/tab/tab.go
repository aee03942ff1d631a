package tab

// Tab is one view of the console shell.
type Tab struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// PerSession is true when the view's state belongs to a browser session
	// rather than to the whole console.
	PerSession bool   `json:"perSession"`
	Path       string `json:"path"`
}

// Seed lists the console views in display order.
func Seed() []Tab {
	return []Tab{
		{
			ID:          "chat",
			Title:       "Chat",
			Description: "Text and voice conversation with the healthcare assistant",
			PerSession:  true,
			Path:        "/sessions/{sessionID}/chat",
		},
		{
			ID:          "analytics",
			Title:       "Analytics",
			Description: "Feedback ratings and cultural scores over time",
			Path:        "/analytics",
		},
		{
			ID:          "expert-review",
			Title:       "Expert Review",
			Description: "Review user feedback and suggest corrections",
			Path:        "/review",
		},
		{
			ID:          "context",
			Title:       "Context",
			Description: "Symptoms, treatments, history and cultural preferences of the conversation",
			PerSession:  true,
			Path:        "/sessions/{sessionID}/context",
		},
		{
			ID:          "pipeline",
			Title:       "Pipeline",
			Description: "Update metrics and export training data",
			Path:        "/pipeline",
		},
	}
}

// Store exposes the tab list to HTTP handlers.
type Store interface {
	List() []Tab
	FindByID(id string) (Tab, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Tab
}

// NewMemoryStore returns a MemoryStore preloaded with items.
func NewMemoryStore(items []Tab) *MemoryStore {
	return &MemoryStore{items: append([]Tab(nil), items...)}
}

// List returns the tabs in display order.
func (s *MemoryStore) List() []Tab {
	return append([]Tab(nil), s.items...)
}

// FindByID looks up a tab by identifier.
func (s *MemoryStore) FindByID(id string) (Tab, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Tab{}, false
}
