package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"faydo/pkg/events"
	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/apiclient"
	"faydo/services/portal/internal/credstore"
)

// Manager owns the session. It is the only writer of the credential store and
// the only publisher on SubjectChanged; everything else reads snapshots.
//
// Mutating operations (Startup, Login, Register*, Logout, RefreshProfile) are
// serialized. RefreshAccessToken runs outside that serialization so any number
// of callers can ask for a fresh token concurrently; a singleflight group
// collapses them into one exchange per refresh token.
type Manager struct {
	api    API
	store  *credstore.Store
	hub    *events.Hub
	logger *log.Logger

	refreshGroup singleflight.Group

	opMu sync.Mutex

	mu            sync.Mutex
	state         State
	user          *account.User
	tokens        apiclient.Tokens
	lastValidated time.Time
	loading       bool
	epoch         uint64
	started       bool
}

// NewManager wires the manager to its remote API, credential store and event
// hub. The session starts uninitialized; call Startup once to restore it.
func NewManager(api API, store *credstore.Store, hub *events.Hub, logger *log.Logger) (*Manager, error) {
	if api == nil {
		return nil, errors.New("api is required")
	}
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if hub == nil {
		return nil, errors.New("event hub is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Manager{
		api:    api,
		store:  store,
		hub:    hub,
		logger: logger,
		state:  StateUninitialized,
	}, nil
}

// Snapshot returns the current session projection.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to run on every session change. Handlers run on the
// publishing goroutine; close the returned subscription to stop.
func (m *Manager) Subscribe(fn func(Snapshot)) (io.Closer, error) {
	return hubSubscribe(m.hub, fn)
}

// Startup restores the session from the credential store: load the bundle,
// validate the access token, refresh once on rejection and retry once. A
// network failure at any point restores the stored snapshot optimistically
// and keeps the credentials; only a confirmed rejection tears the session
// down. Startup runs at most once per process.
func (m *Manager) Startup(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.state = StateLoading
	epoch := m.epoch
	m.mu.Unlock()
	m.publish()

	bundle, err := m.store.Load()
	if err != nil {
		m.logger.Printf("level=warn msg=\"credential load failed\" error=%q", err)
	}
	if bundle == nil {
		startupsTotal.WithLabelValues("anonymous").Inc()
		m.becomeAnonymous(epoch)
		return nil
	}

	user, err := m.api.Profile(ctx, bundle.AccessToken)
	switch {
	case err == nil:
		startupsTotal.WithLabelValues("authenticated").Inc()
		m.establish(epoch, user, apiclient.Tokens{Access: bundle.AccessToken, Refresh: bundle.RefreshToken})
		return nil
	case apiclient.IsNetwork(err):
		startupsTotal.WithLabelValues("offline").Inc()
		m.restoreOffline(epoch, bundle)
		return nil
	}

	// The access token was rejected. One refresh, one retry.
	access, err := m.exchangeRefresh(ctx, bundle.RefreshToken)
	if err != nil {
		if errors.Is(err, apiclient.ErrRefreshRejected) {
			startupsTotal.WithLabelValues("anonymous").Inc()
			m.teardown(epoch)
			return nil
		}
		// Transient failure talking to the token endpoint. Same
		// treatment as being offline: keep the credentials.
		startupsTotal.WithLabelValues("offline").Inc()
		m.restoreOffline(epoch, bundle)
		return nil
	}

	user, err = m.api.Profile(ctx, access)
	switch {
	case err == nil:
		startupsTotal.WithLabelValues("authenticated").Inc()
		m.establish(epoch, user, apiclient.Tokens{Access: access, Refresh: bundle.RefreshToken})
	case apiclient.IsNetwork(err):
		startupsTotal.WithLabelValues("offline").Inc()
		bundle.AccessToken = access
		m.restoreOffline(epoch, bundle)
	default:
		// Rejected even with a token the server just issued.
		startupsTotal.WithLabelValues("anonymous").Inc()
		m.teardown(epoch)
	}
	return nil
}

// Login authenticates with username and password and establishes the session.
func (m *Manager) Login(ctx context.Context, username, password string) (*account.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password", ErrMissingField)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	epoch := m.beginOperation()
	user, tokens, err := m.api.Login(ctx, username, password)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		m.endOperation()
		return nil, err
	}

	loginsTotal.WithLabelValues("success").Inc()
	m.establish(epoch, user, tokens)
	return user, nil
}

// RegisterCustomer creates a customer account and establishes the session.
// The password confirmation is checked locally before any network call.
func (m *Manager) RegisterCustomer(ctx context.Context, reg apiclient.CustomerRegistration) (*account.User, error) {
	if reg.Password == "" {
		return nil, fmt.Errorf("%w: password", ErrMissingField)
	}
	if reg.Password != reg.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	epoch := m.beginOperation()
	user, tokens, err := m.api.RegisterCustomer(ctx, reg)
	if err != nil {
		m.endOperation()
		return nil, err
	}

	m.establish(epoch, user, tokens)
	return user, nil
}

// RegisterBusiness creates a business account and establishes the session.
func (m *Manager) RegisterBusiness(ctx context.Context, reg apiclient.BusinessRegistration) (*account.User, error) {
	if reg.Password == "" {
		return nil, fmt.Errorf("%w: password", ErrMissingField)
	}
	if reg.Password != reg.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	epoch := m.beginOperation()
	user, tokens, err := m.api.RegisterBusiness(ctx, reg)
	if err != nil {
		m.endOperation()
		return nil, err
	}

	m.establish(epoch, user, tokens)
	return user, nil
}

// Logout tears the session down. Local state and stored credentials go first,
// then the server is asked to blacklist the refresh token; a failing remote
// call is logged and otherwise ignored. Logging out while logged out is a
// no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	tokens := m.tokens
	m.epoch++
	m.state = StateAnonymous
	m.user = nil
	m.tokens = apiclient.Tokens{}
	m.lastValidated = time.Time{}
	m.loading = false
	m.mu.Unlock()
	m.publish()

	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	if tokens.Refresh != "" {
		if err := m.api.Logout(ctx, tokens.Access, tokens.Refresh); err != nil {
			m.logger.Printf("level=warn msg=\"remote logout failed\" error=%q", err)
		}
	}
	return nil
}

// RefreshAccessToken exchanges the refresh token for a new access token and
// adopts it into the session. Concurrent callers share one exchange. A
// rejected refresh token tears the session down; transient failures leave it
// untouched. When the session changed identity while the exchange was in
// flight the result is discarded and ErrNotAuthenticated is returned.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	refresh := m.tokens.Refresh
	epoch := m.epoch
	m.mu.Unlock()
	if refresh == "" {
		return "", ErrNotAuthenticated
	}

	access, err := m.exchangeRefresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, apiclient.ErrRefreshRejected) {
			refreshesTotal.WithLabelValues("rejected").Inc()
			m.teardown(epoch)
		} else {
			refreshesTotal.WithLabelValues("transient").Inc()
		}
		return "", err
	}

	if !m.adoptAccessToken(epoch, refresh, access) {
		// The session moved on (logout or a new login) while the
		// exchange was in flight. The token belongs to the old episode.
		refreshesTotal.WithLabelValues("stale").Inc()
		return "", ErrNotAuthenticated
	}
	refreshesTotal.WithLabelValues("success").Inc()
	return access, nil
}

// RefreshProfile re-fetches the profile with the current access token,
// refreshing once if the token has gone stale. A network failure leaves the
// session as it was.
func (m *Manager) RefreshProfile(ctx context.Context) (*account.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	tokens := m.tokens
	epoch := m.epoch
	m.mu.Unlock()

	user, err := m.api.Profile(ctx, tokens.Access)
	if err == nil {
		m.establish(epoch, user, tokens)
		return user, nil
	}
	if apiclient.IsNetwork(err) {
		return nil, err
	}

	access, rerr := m.exchangeRefresh(ctx, tokens.Refresh)
	if rerr != nil {
		if errors.Is(rerr, apiclient.ErrRefreshRejected) {
			m.teardown(epoch)
		}
		return nil, rerr
	}
	tokens.Access = access

	user, err = m.api.Profile(ctx, access)
	if err != nil {
		if apiclient.IsNetwork(err) {
			m.adoptAccessToken(epoch, tokens.Refresh, access)
			return nil, err
		}
		m.teardown(epoch)
		return nil, err
	}

	m.establish(epoch, user, tokens)
	return user, nil
}

// exchangeRefresh performs the token exchange, collapsing concurrent calls
// for the same refresh token into a single request.
func (m *Manager) exchangeRefresh(ctx context.Context, refreshToken string) (string, error) {
	v, err, _ := m.refreshGroup.Do(refreshToken, func() (any, error) {
		access, err := m.api.Refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		return access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// beginOperation marks the session as loading and returns the epoch the
// operation belongs to.
func (m *Manager) beginOperation() uint64 {
	m.mu.Lock()
	m.loading = true
	epoch := m.epoch
	m.mu.Unlock()
	m.publish()
	return epoch
}

func (m *Manager) endOperation() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	m.publish()
}

// establish installs an authenticated session and persists the bundle. The
// result is dropped when the epoch moved on, for example when a logout
// happened while the network call was in flight. Establishing advances the
// epoch: a newly installed identity is a new episode, and anything still in
// flight for the previous one must not touch it.
func (m *Manager) establish(epoch uint64, user *account.User, tokens apiclient.Tokens) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.epoch++
	m.state = StateAuthenticated
	m.user = user
	m.tokens = tokens
	m.lastValidated = time.Now()
	m.loading = false
	m.mu.Unlock()

	if err := m.store.Save(credstore.Bundle{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		User:         user,
	}); err != nil {
		m.logger.Printf("level=warn msg=\"credential save failed\" error=%q", err)
	}
	m.publish()
}

// restoreOffline installs the stored snapshot without server confirmation.
// Credentials stay on disk; lastValidated stays zero so callers can tell the
// session was never confirmed this run.
func (m *Manager) restoreOffline(epoch uint64, bundle *credstore.Bundle) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.state = StateAuthenticated
	m.user = bundle.User
	m.tokens = apiclient.Tokens{Access: bundle.AccessToken, Refresh: bundle.RefreshToken}
	m.loading = false
	m.mu.Unlock()

	m.logger.Printf("level=info msg=\"session restored without validation\" user=%q", bundle.User.Username)
	m.publish()
}

// becomeAnonymous ends the loading phase with no session. The store is left
// alone; there was nothing to clear.
func (m *Manager) becomeAnonymous(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.state = StateAnonymous
	m.user = nil
	m.tokens = apiclient.Tokens{}
	m.loading = false
	m.mu.Unlock()
	m.publish()
}

// teardown drops the session and clears stored credentials after the server
// confirmed the tokens are no good.
func (m *Manager) teardown(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.epoch++
	m.state = StateAnonymous
	m.user = nil
	m.tokens = apiclient.Tokens{}
	m.lastValidated = time.Time{}
	m.loading = false
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Printf("level=warn msg=\"credential clear failed\" error=%q", err)
	}
	m.publish()
}

// adoptAccessToken swaps in a freshly issued access token and re-persists the
// bundle. It reports whether the token was adopted: the session must still be
// in the same episode and still hold the refresh token that produced the
// access token, otherwise the result belongs to an identity that is gone.
func (m *Manager) adoptAccessToken(epoch uint64, refreshUsed, access string) bool {
	m.mu.Lock()
	if m.epoch != epoch || m.state != StateAuthenticated || m.tokens.Refresh != refreshUsed {
		m.mu.Unlock()
		return false
	}
	m.tokens.Access = access
	user := m.user
	tokens := m.tokens
	m.mu.Unlock()

	if err := m.store.Save(credstore.Bundle{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		User:         user,
	}); err != nil {
		m.logger.Printf("level=warn msg=\"credential save failed\" error=%q", err)
	}
	m.publish()
	return true
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		User:            m.user,
		Loading:         m.loading || m.state == StateLoading || m.state == StateUninitialized,
		LastValidatedAt: m.lastValidated,
	}
}

func (m *Manager) publish() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.hub.Publish(SubjectChanged, snap)
}
