package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/client"
	"github.com/qs3c/prodscope_tracker/internal/model"
)

func TestAPIFetcher_RoutesByJobType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/analyses/job-1":
			w.Write([]byte(`{"analysis": "deep dive"}`))
		case "/api/recommendations":
			assert.Equal(t, "competing_product", r.URL.Query().Get("type"))
			w.Write([]byte(`{"items": [1, 2]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := client.New(&config.UpstreamConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	f := NewAPIFetcher(api)

	t.Run("analysis job fetches analysis", func(t *testing.T) {
		job := &model.Job{
			ID:         "job-1",
			Parameters: model.JobParameters{Type: model.JobTypeAnalysis},
		}
		raw, err := f.Fetch(context.Background(), job)
		require.NoError(t, err)
		assert.JSONEq(t, `{"analysis": "deep dive"}`, string(raw))
	})

	t.Run("recommendations job fetches typed list", func(t *testing.T) {
		job := &model.Job{
			ID: "job-2",
			Parameters: model.JobParameters{
				Type:               model.JobTypeRecommendations,
				RecommendationType: model.RecCompetingProduct,
			},
		}
		raw, err := f.Fetch(context.Background(), job)
		require.NoError(t, err)
		assert.JSONEq(t, `{"items": [1, 2]}`, string(raw))
	})

	t.Run("legacy topic search falls back to analysis endpoint", func(t *testing.T) {
		job := &model.Job{
			ID:         "job-1",
			Parameters: model.JobParameters{Type: model.JobTypeTopicSearch},
		}
		raw, err := f.Fetch(context.Background(), job)
		require.NoError(t, err)
		assert.JSONEq(t, `{"analysis": "deep dive"}`, string(raw))
	})
}
