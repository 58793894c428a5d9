// Package session owns the auth token and the login/logout lifecycle.
// Manager is the single owner of the token: it loads it from the secret
// store at startup, persists it on successful login, and clears it on
// logout or whenever the server invalidates it with a 401.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/leiithegreyt/driverlog/internal/domain"
	"github.com/leiithegreyt/driverlog/internal/gateway"
)

// minPasswordLen is the local precondition on password length; shorter
// passwords fail before any network call.
const minPasswordLen = 6

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// AuthAPI is the slice of the repository the session manager depends on.
type AuthAPI interface {
	LoginDriver(ctx context.Context, email, password string) (gateway.Credentials, error)
	GetDriverProfile(ctx context.Context) (domain.DriverProfile, error)
	Logout(ctx context.Context) error
}

// Manager owns the current auth token. It implements transport.TokenSource,
// so the HTTP client pulls the token from here and reports 401s back via
// Invalidate. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	store    SecretStore
	api      AuthAPI
	token    string
	authLost []func()
	log      *slog.Logger
}

// NewManager constructs a Manager over the given secret store and restores
// any previously persisted token. The backend API is attached separately
// with Bind because the transport that carries it needs the manager first.
func NewManager(store SecretStore, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{store: store, log: log}
	tok, ok, err := store.Get(TokenKey)
	if err != nil {
		return nil, fmt.Errorf("session.NewManager: restore token: %w", err)
	}
	if ok {
		m.token = tok
	}
	return m, nil
}

// Bind attaches the backend API. Call once during wiring, before Login.
func (m *Manager) Bind(api AuthAPI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.api = api
}

// Token implements transport.TokenSource.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

// CurrentToken returns the live token, if any.
func (m *Manager) CurrentToken() (string, bool) { return m.Token() }

// OnAuthLost registers a callback fired whenever the server invalidates the
// token (never on explicit logout). Each invalidation event fires each
// callback exactly once.
func (m *Manager) OnAuthLost(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authLost = append(m.authLost, fn)
}

// Invalidate implements transport.TokenSource: it is called for every 401
// response. The first call of an event clears the token (memory and store)
// and fires the auth-lost callbacks; callers holding no token are a no-op,
// which is what makes concurrent 401s fire the notification only once.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	if m.token == "" {
		m.mu.Unlock()
		return
	}
	m.token = ""
	callbacks := make([]func(), len(m.authLost))
	copy(callbacks, m.authLost)
	m.mu.Unlock()

	if err := m.store.Delete(TokenKey); err != nil {
		m.log.Warn("failed to clear stored token", "error", err)
	}
	m.log.Info("auth lost, session cleared")
	for _, fn := range callbacks {
		fn()
	}
}

// Login validates credentials locally, authenticates with the backend, then
// fetches /me and routes on role and approval status. Only an approved,
// active driver ends up authenticated; every other outcome returns a typed
// *domain.AuthError and leaves the manager logged out.
//
// On success the token is persisted in the secret store.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.DriverProfile, error) {
	if !emailPattern.MatchString(email) {
		return domain.DriverProfile{}, fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return domain.DriverProfile{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}

	m.mu.Lock()
	api := m.api
	m.mu.Unlock()
	if api == nil {
		return domain.DriverProfile{}, fmt.Errorf("session.Manager.Login: no backend API bound")
	}

	creds, err := api.LoginDriver(ctx, email, password)
	if err != nil {
		return domain.DriverProfile{}, fmt.Errorf("session.Manager.Login: %w", err)
	}

	// Hold the token in memory so the /me call is authenticated, but do not
	// persist until the profile routing says the account may use the app.
	m.setToken(creds.AccessToken)

	profile, err := api.GetDriverProfile(ctx)
	if err != nil {
		m.clearToken()
		return domain.DriverProfile{}, fmt.Errorf("session.Manager.Login: %w", err)
	}

	if authErr := routeProfile(profile); authErr != nil {
		m.clearToken()
		return domain.DriverProfile{}, fmt.Errorf("session.Manager.Login: %w", authErr)
	}

	if err := m.store.Set(TokenKey, creds.AccessToken); err != nil {
		m.log.Warn("failed to persist token", "error", err)
	}
	m.log.Info("driver authenticated", "driver_id", profile.ID.Int)
	return profile, nil
}

// Logout clears the session. The server-side logout is best effort; the
// local token is cleared regardless, and auth-lost callbacks do not fire.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	api := m.api
	m.mu.Unlock()

	if api != nil {
		if err := api.Logout(ctx); err != nil {
			m.log.Debug("server-side logout failed", "error", err)
		}
	}
	m.clearToken()
	m.log.Info("logged out")
}

// routeProfile maps the /me record onto the auth outcome. nil means the
// account is an approved, active driver.
func routeProfile(p domain.DriverProfile) *domain.AuthError {
	if p.Role != "driver" {
		return &domain.AuthError{Kind: domain.NotDriver, Profile: &p}
	}
	if !bool(p.IsActive) {
		return &domain.AuthError{Kind: domain.InactiveAccount, Profile: &p}
	}
	switch p.ApprovalStatus {
	case domain.ApprovalApproved:
		return nil
	case domain.ApprovalDeclined:
		return &domain.AuthError{Kind: domain.Declined, Profile: &p}
	default:
		return &domain.AuthError{Kind: domain.PendingApproval, Profile: &p}
	}
}

func (m *Manager) setToken(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = tok
}

// clearToken drops the token without firing auth-lost callbacks.
func (m *Manager) clearToken() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	if err := m.store.Delete(TokenKey); err != nil {
		m.log.Warn("failed to clear stored token", "error", err)
	}
}
