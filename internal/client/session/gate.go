package session

import "context"

// Gate covers the returning-user case: no access token is in memory
// yet, but the cookie jar may still hold a valid refresh cookie. Open
// runs once per client lifetime; mid-session expiry is the
// transport's job.
type Gate struct {
	store     *Store
	refresher *Refresher
}

func NewGate(store *Store, refresher *Refresher) *Gate {
	return &Gate{
		store:     store,
		refresher: refresher,
	}
}

// Open attempts exactly one refresh and reports whether the session is
// authenticated. The store leaves the loading state when the attempt
// settles, success or failure.
func (g *Gate) Open(ctx context.Context) bool {
	defer g.store.SetLoading(false)

	if _, err := g.refresher.EnsureRefreshed(ctx); err != nil {
		return false
	}
	return g.store.IsAuthenticated()
}
