package session

import (
	"io"
	"net/http"
)

// Transport attaches the current access token as a bearer credential
// and, on an authorization failure, performs exactly one
// refresh-and-retry for the original request. The retry goes straight
// to the base round tripper, so a second 401 passes through unchanged
// and a persistently failing refresh can never loop.
type Transport struct {
	Base      http.RoundTripper
	Store     *Store
	Refresher *Refresher
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if token := t.Store.AccessToken(); token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base().RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A consumed body that cannot be replayed rules out a retry.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	token, refreshErr := t.Refresher.EnsureRefreshed(req.Context())
	if refreshErr != nil {
		// Session is gone; surface the original failure.
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.base().RoundTrip(retry)
}
