package review

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/handlertest"
	feedbackmodel "github.com/zhouzirui/elera-assistant/console/internal/model/feedback"
	reviewService "github.com/zhouzirui/elera-assistant/console/internal/service/review"
)

func setupRouter() (*chi.Mux, *handlertest.API) {
	api := handlertest.New()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	api.Feedback = []feedbackmodel.Item{
		{ID: "f1", Rating: 4, CulturallyAppropriate: true, Comment: "clear answer", CreatedAt: base},
		{ID: "f2", Rating: 1, CulturallyAppropriate: false, Comment: "the diagnosis was wrong", CreatedAt: base.Add(time.Hour)},
		{ID: "f3", Rating: 2, CulturallyAppropriate: true, Comment: "confusing and wrong", CreatedAt: base.Add(2 * time.Hour)},
	}
	handler := New(reviewService.NewService(api, zerolog.Nop()))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, api
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(payload)))
	return rec
}

func TestListSortsFeedback(t *testing.T) {
	r, _ := setupRouter()

	rec := do(r, http.MethodGet, "/review/feedback?sort=date_desc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Sort string `json:"sort"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sort != "date_desc" || len(resp.Items) != 3 || resp.Items[0].ID != "f3" {
		t.Fatalf("unexpected list %+v", resp)
	}

	if rec := do(r, http.MethodGet, "/review/feedback?sort=random", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}
}

func TestSubmitRequiresSelection(t *testing.T) {
	r, api := setupRouter()

	rec := do(r, http.MethodPost, "/review", map[string]any{"reviewer_name": "Dr. Ada"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without selection, got %d", rec.Code)
	}
	if len(api.Reviews()) != 0 {
		t.Fatal("review must not be sent without a selection")
	}
}

func TestSelectAndSubmitReview(t *testing.T) {
	r, api := setupRouter()
	do(r, http.MethodGet, "/review/feedback", nil)

	if rec := do(r, http.MethodPost, "/review/feedback/missing/select", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/review/feedback/f2/select", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if rec := do(r, http.MethodPost, "/review", map[string]any{"reviewer_name": " "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank reviewer, got %d", rec.Code)
	}

	rec := do(r, http.MethodPost, "/review", map[string]any{"reviewer_name": "Dr. Ada", "medical_accuracy": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	reviews := api.Reviews()
	if len(reviews) != 1 {
		t.Fatalf("expected one review, got %d", len(reviews))
	}
	if reviews[0].Feedback != "f2" || reviews[0].MedicalAccuracy != 2 || reviews[0].CulturalRelevance != reviewService.DefaultScore {
		t.Fatalf("unexpected review %+v", reviews[0])
	}

	snap := do(r, http.MethodGet, "/review", nil)
	var view struct {
		Selected *struct{} `json:"selected"`
		Form     struct {
			ReviewerName string `json:"reviewer_name"`
		} `json:"form"`
	}
	if err := json.Unmarshal(snap.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Selected != nil || view.Form.ReviewerName != "Dr. Ada" {
		t.Fatalf("expected cleared selection and kept reviewer, got %+v", view)
	}
}
