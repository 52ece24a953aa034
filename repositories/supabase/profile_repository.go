package supabase

import (
	"context"
	"net/http"
	"net/url"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"go.uber.org/zap"
)

// ProfileRepository reads user profiles. Implements repositories.IdentityStore.
type ProfileRepository struct {
	client *Client
	table  string
}

// NewProfileRepository creates a new identity store over the given table
func NewProfileRepository(client *Client, table string) repositories.IdentityStore {
	if table == "" {
		table = models.UserProfile{}.TableName()
	}
	return &ProfileRepository{client: client, table: table}
}

// GetUserProfile fetches exactly one profile row. No caching: every call hits the store.
func (r *ProfileRepository) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := url.Values{}
	query.Set("id", "eq."+userID)
	query.Set("select", "id,role")
	query.Set("limit", "1")

	var profiles []models.UserProfile
	if err := r.client.do(ctx, http.MethodGet, r.table, query, nil, &profiles); err != nil {
		return nil, err
	}

	if len(profiles) == 0 {
		r.client.logger.Debug("user profile not found", zap.String("user_id", userID))
		return nil, repositories.ErrNotFound
	}

	return &profiles[0], nil
}
