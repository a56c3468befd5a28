package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"faydo/pkg/events"
	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/apiclient"
	"faydo/services/portal/internal/credstore"
)

type fakeAPI struct {
	loginFn            func(username, password string) (*account.User, apiclient.Tokens, error)
	registerCustomerFn func(reg apiclient.CustomerRegistration) (*account.User, apiclient.Tokens, error)
	registerBusinessFn func(reg apiclient.BusinessRegistration) (*account.User, apiclient.Tokens, error)
	profileFn          func(access string) (*account.User, error)
	refreshFn          func(refresh string) (string, error)
	logoutFn           func(access, refresh string) error

	loginCalls   atomic.Int32
	profileCalls atomic.Int32
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (*account.User, apiclient.Tokens, error) {
	f.loginCalls.Add(1)
	if f.loginFn == nil {
		return nil, apiclient.Tokens{}, errors.New("unexpected Login call")
	}
	return f.loginFn(username, password)
}

func (f *fakeAPI) RegisterCustomer(_ context.Context, reg apiclient.CustomerRegistration) (*account.User, apiclient.Tokens, error) {
	if f.registerCustomerFn == nil {
		return nil, apiclient.Tokens{}, errors.New("unexpected RegisterCustomer call")
	}
	return f.registerCustomerFn(reg)
}

func (f *fakeAPI) RegisterBusiness(_ context.Context, reg apiclient.BusinessRegistration) (*account.User, apiclient.Tokens, error) {
	if f.registerBusinessFn == nil {
		return nil, apiclient.Tokens{}, errors.New("unexpected RegisterBusiness call")
	}
	return f.registerBusinessFn(reg)
}

func (f *fakeAPI) Profile(_ context.Context, access string) (*account.User, error) {
	f.profileCalls.Add(1)
	if f.profileFn == nil {
		return nil, errors.New("unexpected Profile call")
	}
	return f.profileFn(access)
}

func (f *fakeAPI) Refresh(_ context.Context, refresh string) (string, error) {
	f.refreshCalls.Add(1)
	if f.refreshFn == nil {
		return "", errors.New("unexpected Refresh call")
	}
	return f.refreshFn(refresh)
}

func (f *fakeAPI) Logout(_ context.Context, access, refresh string) error {
	f.logoutCalls.Add(1)
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(access, refresh)
}

func testUser() *account.User {
	return &account.User{
		ID:              7,
		Username:        "maryam",
		Role:            account.RoleCustomer,
		DisplayName:     "Maryam Saei",
		ProfileComplete: true,
	}
}

func newManager(t *testing.T, api API) (*Manager, *credstore.Store) {
	t.Helper()

	store, err := credstore.New(filepath.Join(t.TempDir(), "credentials.json"), "")
	if err != nil {
		t.Fatalf("credstore.New() error = %v", err)
	}

	manager, err := NewManager(api, store, events.NewHub(), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return manager, store
}

func seedBundle(t *testing.T, store *credstore.Store) {
	t.Helper()
	if err := store.Save(credstore.Bundle{
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		User:         testUser(),
	}); err != nil {
		t.Fatalf("seed bundle: %v", err)
	}
}

func networkErr() error {
	return &apiclient.NetworkError{Op: "GET /accounts/auth/profile/", Err: errors.New("connection refused")}
}

func TestSnapshotBeforeStartupIsLoading(t *testing.T) {
	manager, _ := newManager(t, &fakeAPI{})

	snap := manager.Snapshot()
	if snap.State != StateUninitialized {
		t.Fatalf("State = %q, want uninitialized", snap.State)
	}
	if !snap.Loading {
		t.Fatal("Loading = false before Startup")
	}
	if snap.Authenticated() {
		t.Fatal("Authenticated() = true before Startup")
	}
}

func TestStartupWithoutBundle(t *testing.T) {
	api := &fakeAPI{}
	manager, _ := newManager(t, api)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	snap := manager.Snapshot()
	if snap.State != StateAnonymous || snap.Loading {
		t.Fatalf("snapshot = %+v, want settled anonymous", snap)
	}
	if api.profileCalls.Load() != 0 {
		t.Fatal("Profile called with no stored credentials")
	}
}

func TestStartupValidBundle(t *testing.T) {
	api := &fakeAPI{
		profileFn: func(access string) (*account.User, error) {
			if access != "stored-access" {
				t.Errorf("Profile called with %q", access)
			}
			return testUser(), nil
		},
	}
	manager, store := newManager(t, api)
	seedBundle(t, store)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	snap := manager.Snapshot()
	if !snap.Authenticated() || snap.User.Username != "maryam" {
		t.Fatalf("snapshot = %+v, want authenticated maryam", snap)
	}
	if snap.LastValidatedAt.IsZero() {
		t.Fatal("LastValidatedAt not set after a validated restore")
	}
	if api.profileCalls.Load() != 1 || api.refreshCalls.Load() != 0 {
		t.Fatalf("remote calls = %d validate, %d refresh; want 1, 0",
			api.profileCalls.Load(), api.refreshCalls.Load())
	}
}

func TestStartupExpiredAccessRefreshesAndRetries(t *testing.T) {
	api := &fakeAPI{
		profileFn: func(access string) (*account.User, error) {
			if access == "stored-access" {
				return nil, apiclient.ErrUnauthorized
			}
			return testUser(), nil
		},
		refreshFn: func(refresh string) (string, error) {
			if refresh != "stored-refresh" {
				t.Errorf("Refresh called with %q", refresh)
			}
			return "fresh-access", nil
		},
	}
	manager, store := newManager(t, api)
	seedBundle(t, store)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	if snap := manager.Snapshot(); !snap.Authenticated() {
		t.Fatalf("snapshot = %+v, want authenticated", snap)
	}

	bundle, err := store.Load()
	if err != nil || bundle == nil {
		t.Fatalf("Load() = %+v, %v", bundle, err)
	}
	if bundle.AccessToken != "fresh-access" || bundle.RefreshToken != "stored-refresh" {
		t.Fatalf("persisted tokens = %q/%q", bundle.AccessToken, bundle.RefreshToken)
	}
	if api.profileCalls.Load() != 2 || api.refreshCalls.Load() != 1 {
		t.Fatalf("remote calls = %d validate, %d refresh; want 2, 1",
			api.profileCalls.Load(), api.refreshCalls.Load())
	}
}

func TestStartupRefreshRejectedTearsDown(t *testing.T) {
	api := &fakeAPI{
		profileFn: func(string) (*account.User, error) { return nil, apiclient.ErrUnauthorized },
		refreshFn: func(string) (string, error) { return "", apiclient.ErrRefreshRejected },
	}
	manager, store := newManager(t, api)
	seedBundle(t, store)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	if snap := manager.Snapshot(); snap.State != StateAnonymous {
		t.Fatalf("snapshot = %+v, want anonymous", snap)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("credentials survived a rejected refresh token")
	}
}

func TestStartupRetryStillRejectedTearsDown(t *testing.T) {
	api := &fakeAPI{
		profileFn: func(string) (*account.User, error) { return nil, apiclient.ErrUnauthorized },
		refreshFn: func(string) (string, error) { return "fresh-access", nil },
	}
	manager, store := newManager(t, api)
	seedBundle(t, store)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	if snap := manager.Snapshot(); snap.State != StateAnonymous {
		t.Fatalf("snapshot = %+v, want anonymous", snap)
	}
	if got := api.profileCalls.Load(); got != 2 {
		t.Fatalf("Profile calls = %d, want exactly one retry", got)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("credentials survived a rejected retry")
	}
}

func TestStartupOfflineRestoresOptimistically(t *testing.T) {
	api := &fakeAPI{
		profileFn: func(string) (*account.User, error) { return nil, networkErr() },
	}
	manager, store := newManager(t, api)
	seedBundle(t, store)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	snap := manager.Snapshot()
	if !snap.Authenticated() || snap.User.Username != "maryam" {
		t.Fatalf("snapshot = %+v, want restored maryam", snap)
	}
	if !snap.LastValidatedAt.IsZero() {
		t.Fatal("LastValidatedAt set without server confirmation")
	}
	if bundle, _ := store.Load(); bundle == nil {
		t.Fatal("credentials cleared on a network failure")
	}
}

func TestStartupRefreshNetworkFailureKeepsCredentials(t *testing.T) {
	api := &fakeAPI{
		profileFn: func(string) (*account.User, error) { return nil, apiclient.ErrUnauthorized },
		refreshFn: func(string) (string, error) { return "", networkErr() },
	}
	manager, store := newManager(t, api)
	seedBundle(t, store)

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	if snap := manager.Snapshot(); !snap.Authenticated() {
		t.Fatalf("snapshot = %+v, want optimistic restore", snap)
	}
	if bundle, _ := store.Load(); bundle == nil {
		t.Fatal("credentials cleared on a transient refresh failure")
	}
}

func TestStartupRunsOnce(t *testing.T) {
	manager, _ := newManager(t, &fakeAPI{})

	if err := manager.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}
	if err := manager.Startup(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Startup() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestLoginEstablishesAndPersists(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(username, password string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
	}
	manager, store := newManager(t, api)

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	sub, err := manager.Subscribe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	user, err := manager.Login(context.Background(), "maryam", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Username != "maryam" {
		t.Fatalf("Login() user = %+v", user)
	}

	bundle, err := store.Load()
	if err != nil || bundle == nil {
		t.Fatalf("Load() = %+v, %v", bundle, err)
	}
	if bundle.AccessToken != "a1" || bundle.RefreshToken != "r1" {
		t.Fatalf("persisted tokens = %q/%q", bundle.AccessToken, bundle.RefreshToken)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snaps) == 0 {
		t.Fatal("no snapshots published during login")
	}
	last := snaps[len(snaps)-1]
	if !last.Authenticated() || last.Loading {
		t.Fatalf("final snapshot = %+v, want settled authenticated", last)
	}
}

func TestLoginFailureLeavesSessionAlone(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return nil, apiclient.Tokens{}, apiclient.ErrInvalidCredentials
		},
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "wrong"); !errors.Is(err, apiclient.ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}

	if snap := manager.Snapshot(); snap.Authenticated() || snap.Loading {
		t.Fatalf("snapshot = %+v after failed login", snap)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("failed login persisted credentials")
	}
}

func TestLoginRejectsEmptyFields(t *testing.T) {
	api := &fakeAPI{}
	manager, _ := newManager(t, api)

	if _, err := manager.Login(context.Background(), "", "secret"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Login() error = %v, want ErrMissingField", err)
	}
	if api.loginCalls.Load() != 0 {
		t.Fatal("Login hit the network with empty fields")
	}
}

func TestRegisterPasswordMismatchFailsBeforeNetwork(t *testing.T) {
	api := &fakeAPI{}
	manager, _ := newManager(t, api)

	reg := apiclient.CustomerRegistration{
		Username:        "maryam",
		Password:        "secret",
		PasswordConfirm: "secert",
	}
	if _, err := manager.RegisterCustomer(context.Background(), reg); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("RegisterCustomer() error = %v, want ErrPasswordMismatch", err)
	}

	breg := apiclient.BusinessRegistration{
		Username:        "golestan",
		Password:        "secret",
		PasswordConfirm: "",
	}
	if _, err := manager.RegisterBusiness(context.Background(), breg); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("RegisterBusiness() error = %v, want ErrPasswordMismatch", err)
	}
}

func TestRegisterCustomerEstablishesSession(t *testing.T) {
	api := &fakeAPI{
		registerCustomerFn: func(reg apiclient.CustomerRegistration) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
	}
	manager, store := newManager(t, api)

	reg := apiclient.CustomerRegistration{
		Username:        "maryam",
		Password:        "secret",
		PasswordConfirm: "secret",
	}
	if _, err := manager.RegisterCustomer(context.Background(), reg); err != nil {
		t.Fatalf("RegisterCustomer() error = %v", err)
	}

	if snap := manager.Snapshot(); !snap.Authenticated() {
		t.Fatalf("snapshot = %+v, want authenticated", snap)
	}
	if bundle, _ := store.Load(); bundle == nil {
		t.Fatal("registration did not persist credentials")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("second Logout() error = %v", err)
	}

	if snap := manager.Snapshot(); snap.State != StateAnonymous {
		t.Fatalf("snapshot = %+v, want anonymous", snap)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("credentials survived logout")
	}
	if got := api.logoutCalls.Load(); got != 1 {
		t.Fatalf("remote logout calls = %d, want 1", got)
	}
}

func TestLogoutSucceedsWhenRemoteFails(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
		logoutFn: func(string, string) error { return networkErr() },
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v with failing remote", err)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("credentials survived logout with failing remote")
	}
}

func TestRefreshAccessTokenDeduplicatesConcurrentCallers(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
		refreshFn: func(string) (string, error) {
			<-release
			return "a2", nil
		},
	}
	manager, _ := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	const callers = 10
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			access, err := manager.RefreshAccessToken(context.Background())
			if err != nil {
				t.Errorf("RefreshAccessToken() error = %v", err)
				return
			}
			results <- access
		}()
	}

	// Give the callers time to pile onto the in-flight exchange.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for access := range results {
		if access != "a2" {
			t.Fatalf("RefreshAccessToken() = %q, want a2", access)
		}
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("Refresh calls = %d, want 1 for %d concurrent callers", got, callers)
	}
	if snap := manager.Snapshot(); !snap.Authenticated() {
		t.Fatalf("snapshot = %+v after refresh", snap)
	}
}

func TestRefreshRejectedTearsDownSession(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
		refreshFn: func(string) (string, error) { return "", apiclient.ErrRefreshRejected },
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := manager.RefreshAccessToken(context.Background()); !errors.Is(err, apiclient.ErrRefreshRejected) {
		t.Fatalf("RefreshAccessToken() error = %v, want ErrRefreshRejected", err)
	}

	if snap := manager.Snapshot(); snap.State != StateAnonymous {
		t.Fatalf("snapshot = %+v, want anonymous after rejected refresh", snap)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("credentials survived a rejected refresh")
	}
}

func TestRefreshNetworkFailureKeepsSession(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
		refreshFn: func(string) (string, error) { return "", networkErr() },
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := manager.RefreshAccessToken(context.Background()); !apiclient.IsNetwork(err) {
		t.Fatalf("RefreshAccessToken() error = %v, want network error", err)
	}

	if snap := manager.Snapshot(); !snap.Authenticated() {
		t.Fatalf("snapshot = %+v, want session kept on transient failure", snap)
	}
	if bundle, _ := store.Load(); bundle == nil {
		t.Fatal("credentials cleared on a transient refresh failure")
	}
}

func TestRefreshWhileAnonymous(t *testing.T) {
	manager, _ := newManager(t, &fakeAPI{})

	if _, err := manager.RefreshAccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("RefreshAccessToken() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestLogoutDuringRefreshDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
		refreshFn: func(string) (string, error) {
			<-release
			return "a2", nil
		},
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = manager.RefreshAccessToken(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	close(release)
	<-done

	if snap := manager.Snapshot(); snap.State != StateAnonymous {
		t.Fatalf("snapshot = %+v, stale refresh resurrected the session", snap)
	}
	if bundle, _ := store.Load(); bundle != nil {
		t.Fatal("stale refresh re-persisted credentials after logout")
	}
}

func TestLoginDuringRefreshKeepsNewIdentityTokens(t *testing.T) {
	release := make(chan struct{})
	other := testUser()
	other.ID = 8
	other.Username = "sina"
	api := &fakeAPI{
		loginFn: func(username, _ string) (*account.User, apiclient.Tokens, error) {
			if username == "maryam" {
				return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
			}
			return other, apiclient.Tokens{Access: "b1", Refresh: "rb1"}, nil
		},
		refreshFn: func(string) (string, error) {
			<-release
			return "a2", nil
		},
	}
	manager, store := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := manager.RefreshAccessToken(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := manager.Login(context.Background(), "sina", "secret"); err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("RefreshAccessToken() error = %v, want ErrNotAuthenticated for a stale result", err)
	}

	snap := manager.Snapshot()
	if snap.User == nil || snap.User.Username != "sina" {
		t.Fatalf("snapshot user = %+v, want sina", snap.User)
	}

	bundle, err := store.Load()
	if err != nil || bundle == nil {
		t.Fatalf("Load() = %+v, %v", bundle, err)
	}
	if bundle.AccessToken != "b1" || bundle.RefreshToken != "rb1" {
		t.Fatalf("persisted tokens = %q/%q, stale refresh leaked into the new session",
			bundle.AccessToken, bundle.RefreshToken)
	}
	if bundle.User.Username != "sina" {
		t.Fatalf("persisted user = %+v", bundle.User)
	}
}

func TestRefreshProfileUpdatesUser(t *testing.T) {
	updated := testUser()
	updated.DisplayName = "Maryam S."
	api := &fakeAPI{
		loginFn: func(string, string) (*account.User, apiclient.Tokens, error) {
			return testUser(), apiclient.Tokens{Access: "a1", Refresh: "r1"}, nil
		},
		profileFn: func(access string) (*account.User, error) {
			if access != "a1" {
				t.Errorf("Profile called with %q", access)
			}
			return updated, nil
		},
	}
	manager, _ := newManager(t, api)

	if _, err := manager.Login(context.Background(), "maryam", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := manager.RefreshProfile(context.Background())
	if err != nil {
		t.Fatalf("RefreshProfile() error = %v", err)
	}
	if user.DisplayName != "Maryam S." {
		t.Fatalf("RefreshProfile() user = %+v", user)
	}
	if snap := manager.Snapshot(); snap.User.DisplayName != "Maryam S." {
		t.Fatalf("snapshot user = %+v", snap.User)
	}
}

func TestRefreshProfileRequiresSession(t *testing.T) {
	manager, _ := newManager(t, &fakeAPI{})

	if _, err := manager.RefreshProfile(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("RefreshProfile() error = %v, want ErrNotAuthenticated", err)
	}
}
