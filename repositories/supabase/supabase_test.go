package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/voice-agent/config"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.SupabaseConfig{URL: server.URL, ServiceRoleKey: "service-key"}, zap.NewNop())
}

func TestProfileRepository_GetUserProfile(t *testing.T) {
	t.Run("returns the stored role", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/rest/v1/user_profiles", r.URL.Path)
			assert.Equal(t, "eq.user-1", r.URL.Query().Get("id"))
			assert.Equal(t, "id,role", r.URL.Query().Get("select"))
			assert.Equal(t, "service-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[{"id":"user-1","role":"admin"}]`))
		})

		profile, err := NewProfileRepository(client, "").GetUserProfile(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", profile.ID)
		assert.Equal(t, models.RoleAdmin, profile.Role)
	})

	t.Run("no rows is ErrNotFound", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})

		_, err := NewProfileRepository(client, "").GetUserProfile(context.Background(), "ghost")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("API error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"down"}`))
		})

		_, err := NewProfileRepository(client, "").GetUserProfile(context.Background(), "user-1")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	})
}

func TestInteractionRepository_Insert(t *testing.T) {
	rec := models.NewInteractionRecord("user-1", "which equipment is checked out?", "Two excavators.",
		&models.QueryResult{Output: "excavator-1, excavator-2"}, models.EntryPathVoice)

	t.Run("posts the row", func(t *testing.T) {
		var got map[string]interface{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/rest/v1/voice_agent_logs", r.URL.Path)
			assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		})

		require.NoError(t, NewInteractionRepository(client, "").Insert(context.Background(), rec))
		assert.Equal(t, "user-1", got["user_id"])
		assert.Equal(t, "which equipment is checked out?", got["query"])
		assert.Equal(t, "Two excavators.", got["response"])
		assert.Equal(t, "excavator-1, excavator-2", got["sql_result"])
		assert.NotEmpty(t, got["created_at"])
	})

	t.Run("rejected insert", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		err := NewInteractionRepository(client, "custom_logs").Insert(context.Background(), rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})
}
