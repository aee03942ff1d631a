package pipeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/handlertest"
	pipelinemodel "github.com/zhouzirui/elera-assistant/console/internal/model/pipeline"
	pipelineService "github.com/zhouzirui/elera-assistant/console/internal/service/pipeline"
)

func setupRouter() (*chi.Mux, *handlertest.API) {
	api := handlertest.New()
	handler := New(pipelineService.NewService(api, zerolog.Nop()))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, api
}

func run(r http.Handler, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pipeline/run", bytes.NewReader(payload)))
	return rec
}

func TestStatsAddsDisplayLabels(t *testing.T) {
	r, _ := setupRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pipeline", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Datasets []struct {
			Filename  string `json:"filename"`
			SizeLabel string `json:"size_label"`
		} `json:"datasets"`
		Metrics []struct {
			Type  string `json:"type"`
			Label string `json:"label"`
		} `json:"latest_metrics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Datasets) != 1 || resp.Datasets[0].SizeLabel != "2 KB" {
		t.Fatalf("unexpected datasets %+v", resp.Datasets)
	}
	if len(resp.Metrics) != 1 || resp.Metrics[0].Label != "Average Rating" {
		t.Fatalf("unexpected metrics %+v", resp.Metrics)
	}
}

func TestRunTrainingDefaultsMinRating(t *testing.T) {
	r, api := setupRouter()

	rec := run(r, map[string]any{"operation": "generate_training"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	runs := api.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	if runs[0].Operation != pipelinemodel.OpGenerateTraining || runs[0].MinRating != pipelineService.DefaultMinRating {
		t.Fatalf("unexpected run request %+v", runs[0])
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	r, api := setupRouter()

	cases := []map[string]any{
		{"operation": "drop_tables"},
		{"operation": "generate_training", "min_rating": 9},
		{"operation": "update_metrics", "from_date": "yesterday"},
	}
	for _, body := range cases {
		if rec := run(r, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, rec.Code)
		}
	}
	if len(api.Runs()) != 0 {
		t.Fatal("invalid runs must not reach the API")
	}
}
