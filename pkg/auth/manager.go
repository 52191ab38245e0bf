package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/mbertram/relais/pkg/observability"
)

// RefreshBuffer is the safety margin before token expiry. A token whose
// expiry falls within the buffer (inclusive) is refreshed before use.
const RefreshBuffer = 5 * time.Minute

// ErrAuthenticationRequired is returned when no credential has been loaded.
var ErrAuthenticationRequired = errors.New("authentication required: run relais-login first")

// RefreshError reports a failed refresh-token exchange. The stored
// credential is left untouched; a later call retries the refresh.
type RefreshError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh failed (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Manager owns the process-wide credential: one shared record visible
// to all requests. A published *Credential is never mutated; updates
// swap in a fresh copy under the lock, so a snapshotted pointer stays
// safe to read without further locking. Refresh is coalesced through
// singleflight so concurrent callers observing an expiring token
// trigger at most one exchange against the identity provider.
type Manager struct {
	store Store
	cfg   *oauth2.Config
	http  *http.Client
	now   func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	cred *Credential
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTokenURL overrides the identity provider's token endpoint (tests).
func WithTokenURL(url string) ManagerOption {
	return func(m *Manager) { m.cfg.Endpoint.TokenURL = url }
}

// WithHTTPClient sets the HTTP client used for token exchanges.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.http = c }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager backed by the given store. The
// credential is not loaded until Load or SetCredential is called.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		cfg:   OAuthConfig(""),
		http:  http.DefaultClient,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the stored credential into memory. A missing or unusable
// store record leaves the manager unauthenticated without error.
func (m *Manager) Load() error {
	cred, err := m.store.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	return nil
}

// SetCredential installs a fresh record (post-login) and persists it.
func (m *Manager) SetCredential(cred *Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("credential requires a refresh token")
	}
	if err := m.store.Save(cred); err != nil {
		return err
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	return nil
}

// Logout clears the in-memory credential and the store.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
	return m.store.Clear()
}

// Credential returns a snapshot of the current record, or nil.
func (m *Manager) Credential() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return nil
	}
	snapshot := *m.cred
	return &snapshot
}

// ProjectID returns the project bound to the credential, if any.
func (m *Manager) ProjectID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return ""
	}
	return m.cred.ProjectID
}

// SetProjectID updates the resolved project on the record and persists it.
func (m *Manager) SetProjectID(id string) error {
	m.mu.Lock()
	if m.cred == nil {
		m.mu.Unlock()
		return ErrAuthenticationRequired
	}
	next := *m.cred
	next.ProjectID = id
	m.cred = &next
	m.mu.Unlock()
	return m.store.Save(&next)
}

// EnsureValid returns an access token that is good for at least the
// refresh buffer, performing a refresh-token exchange when needed.
func (m *Manager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.RLock()
	cred := m.cred
	m.mu.RUnlock()

	if !cred.Valid() {
		return "", ErrAuthenticationRequired
	}
	if m.fresh(cred) {
		return cred.AccessToken, nil
	}

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fresh reports whether the access token outlives now plus the buffer.
// Expiry exactly on the buffer boundary counts as stale.
func (m *Manager) fresh(cred *Credential) bool {
	return cred.AccessToken != "" &&
		!cred.ExpiresAt.IsZero() &&
		cred.ExpiresAt.After(m.now().Add(RefreshBuffer))
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	cred := m.cred
	m.mu.RUnlock()

	if !cred.Valid() {
		return "", ErrAuthenticationRequired
	}
	// Another caller may have refreshed while we waited on the flight.
	if m.fresh(cred) {
		return cred.AccessToken, nil
	}

	slog.Debug("refreshing access token", "expires_at", cred.ExpiresAt)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.http)
	tok, err := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		observability.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &RefreshError{StatusCode: re.Response.StatusCode, Body: string(re.Body), Err: err}
		}
		return "", &RefreshError{Err: err}
	}
	observability.TokenRefreshesTotal.WithLabelValues("success").Inc()

	m.mu.Lock()
	// Logout may have cleared the record while the exchange was in flight.
	if m.cred == nil {
		m.mu.Unlock()
		return "", ErrAuthenticationRequired
	}
	next := *m.cred
	next.AccessToken = tok.AccessToken
	next.ExpiresAt = tokenExpiry(tok)
	// Adopt a rotated refresh token when the provider offers one; the old
	// one may be invalidated server-side.
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	m.cred = &next
	m.mu.Unlock()

	if err := m.store.Save(&next); err != nil {
		slog.Warn("failed to persist refreshed credential", "error", err)
	}

	slog.Debug("access token refreshed", "expires_at", next.ExpiresAt)
	return next.AccessToken, nil
}
