package session

import (
	"context"
	"errors"
	"io"
	"time"

	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/apiclient"

	"faydo/pkg/events"
)

// SubjectChanged is the hub subject every session snapshot is published on.
const SubjectChanged = "session.changed"

// State is the lifecycle position of the session.
type State string

const (
	// StateUninitialized is the state before Startup has run.
	StateUninitialized State = "uninitialized"
	// StateLoading means a validate/refresh/login/register is in flight.
	StateLoading State = "loading"
	// StateAuthenticated means a user is established.
	StateAuthenticated State = "authenticated"
	// StateAnonymous means no user; terminal until a login succeeds.
	StateAnonymous State = "anonymous"
)

// Snapshot is the read-only projection of the session handed to subscribers
// and to the access gate.
type Snapshot struct {
	State           State
	User            *account.User
	Loading         bool
	LastValidatedAt time.Time
}

// Authenticated reports whether the snapshot carries an established user.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// API is the remote surface the manager depends on.
type API interface {
	Login(ctx context.Context, username, password string) (*account.User, apiclient.Tokens, error)
	RegisterCustomer(ctx context.Context, reg apiclient.CustomerRegistration) (*account.User, apiclient.Tokens, error)
	RegisterBusiness(ctx context.Context, reg apiclient.BusinessRegistration) (*account.User, apiclient.Tokens, error)
	Profile(ctx context.Context, accessToken string) (*account.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Errors surfaced by manager operations.
var (
	// ErrPasswordMismatch is returned before any network call when a
	// registration's password confirmation does not match.
	ErrPasswordMismatch = errors.New("password confirmation does not match")

	// ErrMissingField is returned when a required local field is empty.
	ErrMissingField = errors.New("required field missing")

	// ErrNotAuthenticated is returned by operations that need an
	// established session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyStarted is returned when Startup runs twice.
	ErrAlreadyStarted = errors.New("session startup already ran")
)

// Subscription adapts a hub subscription so callers receive typed snapshots.
type subscription struct {
	closer io.Closer
}

func (s *subscription) Close() error { return s.closer.Close() }

var _ io.Closer = (*subscription)(nil)

// hubSubscribe registers fn for session snapshots on the hub.
func hubSubscribe(hub *events.Hub, fn func(Snapshot)) (io.Closer, error) {
	closer, err := hub.Subscribe(SubjectChanged, func(_ string, payload any) {
		if snap, ok := payload.(Snapshot); ok {
			fn(snap)
		}
	})
	if err != nil {
		return nil, err
	}
	return &subscription{closer: closer}, nil
}
