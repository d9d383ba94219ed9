package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/loandesk/loandesk/internal/apperr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Refresher exchanges the refresh cookie for a new access token.
// Concurrent callers are collapsed into a single network round trip
// through a singleflight group; the in-flight slot clears when the
// call settles, so the next trigger starts a fresh exchange.
type Refresher struct {
	baseURL string
	client  *http.Client
	store   *Store
	group   singleflight.Group
	logger  *logrus.Logger
}

// NewRefresher takes a plain http.Client carrying the shared cookie
// jar. It must not be wrapped in Transport: the refresh call itself is
// never retried.
func NewRefresher(baseURL string, client *http.Client, store *Store, logger *logrus.Logger) *Refresher {
	return &Refresher{
		baseURL: baseURL,
		client:  client,
		store:   store,
		logger:  logger,
	}
}

// EnsureRefreshed returns a fresh access token, joining any refresh
// already in flight instead of issuing another call. On failure the
// store is cleared and apperr.ErrSessionExpired is returned; callers
// must treat that as "re-authentication required", not retry.
func (r *Refresher) EnsureRefreshed(ctx context.Context) (string, error) {
	result, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (r *Refresher) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.store.Clear()
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		r.logger.WithField("status", resp.StatusCode).Debug("Refresh rejected")
		r.store.Clear()
		return "", apperr.ErrSessionExpired
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		r.store.Clear()
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}

	r.store.SetAccessToken(body.AccessToken)
	return body.AccessToken, nil
}
