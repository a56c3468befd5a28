package stubapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type tokenEntry struct {
	Username string
	Expires  time.Time
}

// tokenStore issues and validates opaque access/refresh tokens in memory.
// Expired entries are swept on every issue.
type tokenStore struct {
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu      sync.Mutex
	access  map[string]tokenEntry
	refresh map[string]tokenEntry
}

func newTokenStore(accessTTL, refreshTTL time.Duration) *tokenStore {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &tokenStore{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		access:     make(map[string]tokenEntry),
		refresh:    make(map[string]tokenEntry),
	}
}

// issuePair mints a fresh access/refresh pair for username.
func (ts *tokenStore) issuePair(username string) (access, refresh string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.sweepLocked(time.Now())

	access = uuid.New().String()
	refresh = uuid.New().String()
	now := time.Now()
	ts.access[access] = tokenEntry{Username: username, Expires: now.Add(ts.accessTTL)}
	ts.refresh[refresh] = tokenEntry{Username: username, Expires: now.Add(ts.refreshTTL)}
	return access, refresh
}

// userForAccess resolves a live access token to its username.
func (ts *tokenStore) userForAccess(token string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.access[token]
	if !ok || time.Now().After(entry.Expires) {
		return "", false
	}
	return entry.Username, true
}

// redeemRefresh validates a refresh token and mints a new access token for
// its user. The refresh token itself stays valid until logout or expiry.
func (ts *tokenStore) redeemRefresh(token string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.refresh[token]
	if !ok || time.Now().After(entry.Expires) {
		return "", false
	}

	ts.sweepLocked(time.Now())

	access := uuid.New().String()
	ts.access[access] = tokenEntry{Username: entry.Username, Expires: time.Now().Add(ts.accessTTL)}
	return access, true
}

// revoke blacklists a refresh token and drops every access token issued to
// the same user.
func (ts *tokenStore) revoke(refreshToken string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.refresh[refreshToken]
	if !ok {
		return
	}
	delete(ts.refresh, refreshToken)
	for token, e := range ts.access {
		if e.Username == entry.Username {
			delete(ts.access, token)
		}
	}
}

// expireAccess invalidates every access token for username, leaving refresh
// tokens alone. Used by tests and the dev CLI to force the refresh path.
func (ts *tokenStore) expireAccess(username string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for token, e := range ts.access {
		if e.Username == username {
			delete(ts.access, token)
		}
	}
}

func (ts *tokenStore) sweepLocked(now time.Time) {
	for token, entry := range ts.access {
		if now.After(entry.Expires) {
			delete(ts.access, token)
		}
	}
	for token, entry := range ts.refresh {
		if now.After(entry.Expires) {
			delete(ts.refresh, token)
		}
	}
}
