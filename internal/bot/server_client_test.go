package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerClient(t *testing.T) {
	var lastBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/collector/collect":
			lastBody = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&lastBody)
			if lastBody["chat_target"] == "busy" {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"run_id":"run-1"}`))
		case r.URL.Path == "/api/v1/collector/runs/run-1":
			_, _ = w.Write([]byte(`{"run_id":"run-1","status":"completed","outcome":{"message":"ok","chat_id":10,"status":"collected"}}`))
		case r.URL.Path == "/api/v1/collector/chats/10/participants":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "50", r.URL.Query().Get("page_size"))
			_, _ = w.Write([]byte(`{"pagination":{"current_page":2,"page_size":50,"total_items":51,"total_pages":2},"data":[{"id":5,"username":"eve","participant_type":"member"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := NewServerClient(ts.URL, time.Second)
	ctx := context.Background()

	t.Run("numeric target is sent as number", func(t *testing.T) {
		resp, err := c.StartRun(ctx, "tok", "-1001234", 10)
		require.NoError(t, err)
		assert.Equal(t, "run-1", resp.RunID)
		assert.Equal(t, float64(-1001234), lastBody["chat_target"])
		assert.Equal(t, true, lastBody["async"])
		assert.Equal(t, float64(10), lastBody["limit"])
	})

	t.Run("handle target is sent as string", func(t *testing.T) {
		_, err := c.StartRun(ctx, "tok", "@golang", 0)
		require.NoError(t, err)
		assert.Equal(t, "@golang", lastBody["chat_target"])
		_, hasLimit := lastBody["limit"]
		assert.False(t, hasLimit)
	})

	t.Run("conflict and unauthorized map to sentinel errors", func(t *testing.T) {
		_, err := c.StartRun(ctx, "tok", "busy", 0)
		assert.ErrorIs(t, err, ErrBusy)

		_, err = c.GetRunStatus(ctx, "bad", "run-1")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("run status", func(t *testing.T) {
		status, err := c.GetRunStatus(ctx, "tok", "run-1")
		require.NoError(t, err)
		assert.Equal(t, "completed", status.Status)
		require.NotNil(t, status.Outcome)
		require.NotNil(t, status.Outcome.ChatID)
		assert.Equal(t, int64(10), *status.Outcome.ChatID)
	})

	t.Run("participants page", func(t *testing.T) {
		page, err := c.GetParticipants(ctx, "tok", 10, 2, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Pagination.TotalPages)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "eve", page.Data[0].Username)
	})

	t.Run("unexpected status", func(t *testing.T) {
		_, err := c.GetRunStatus(ctx, "tok", "missing")
		assert.Error(t, err)
	})
}
