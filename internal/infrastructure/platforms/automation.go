package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// ErrAutomationConfigMissingBaseURL indicates an unset automation service URL
var ErrAutomationConfigMissingBaseURL = errors.New("automation: base URL is required")

// defaultSessionTTL bounds cached sessions when the automation service does
// not report an expiry.
const defaultSessionTTL = 30 * time.Minute

// Session is a logged-in upstream session produced by the automation service:
// an opaque token plus the cookies the marketplace set during login.
type Session struct {
	Token     string
	Cookies   []SessionCookie
	ExpiresAt time.Time
}

// SessionCookie is one cookie captured from the automated login.
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Apply sets the session's cookies on an outgoing request.
func (s *Session) Apply(req *http.Request) {
	for _, c := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}

// AutomationClient talks to the browser automation service that performs
// interactive logins for marketplaces without a token API. The liveness probe
// is cheap and runs before every login so a dead automation service fails in
// probe-timeout time instead of login-timeout time.
type AutomationClient struct {
	baseURL     string
	probeClient *http.Client
	loginClient *http.Client
	logger      *zap.Logger
}

// NewAutomationClient creates an automation client from configuration.
func NewAutomationClient(cfg config.AutomationConfig, logger *zap.Logger) (*AutomationClient, error) {
	if cfg.BaseURL == "" {
		return nil, ErrAutomationConfigMissingBaseURL
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	loginTimeout := cfg.LoginTimeout
	if loginTimeout <= 0 {
		loginTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutomationClient{
		baseURL:     cfg.BaseURL,
		probeClient: &http.Client{Timeout: probeTimeout},
		loginClient: &http.Client{Timeout: loginTimeout},
		logger:      logger,
	}, nil
}

// Probe checks the automation service's liveness endpoint. Any failure maps
// to ErrAutomationUnavailable.
func (c *AutomationClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("automation: failed to create probe request: %w", err)
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", marketplace.ErrAutomationUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: probe returned HTTP %d", marketplace.ErrAutomationUnavailable, resp.StatusCode)
	}
	return nil
}

type automationLoginRequest struct {
	Site     string `json:"site"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type automationLoginResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	SessionToken string          `json:"sessionToken"`
	Cookies      []SessionCookie `json:"cookies"`
	ExpiresAt    *time.Time      `json:"expiresAt"`
}

// Login performs an interactive login for the given site through the
// automation service. It probes liveness first and fails fast with
// ErrAutomationUnavailable; a completed login that the upstream rejected maps
// to ErrAuthenticationRequired.
func (c *AutomationClient) Login(ctx context.Context, site marketplace.Platform, username, password string) (*Session, error) {
	if err := c.Probe(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(automationLoginRequest{
		Site:     site.String(),
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("automation: failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/login", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("automation: failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.loginClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %v", marketplace.ErrAutomationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: login returned HTTP %d", marketplace.ErrAutomationUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s: automation login rejected with HTTP %d", marketplace.ErrAuthenticationRequired, site, resp.StatusCode)
	}

	var loginResp automationLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("%w: %s: automation login response: %v", marketplace.ErrMalformedResponse, site, err)
	}
	if !loginResp.Success {
		return nil, fmt.Errorf("%w: %s: %s", marketplace.ErrAuthenticationRequired, site, loginResp.Message)
	}

	expiresAt := time.Now().Add(defaultSessionTTL)
	if loginResp.ExpiresAt != nil {
		expiresAt = *loginResp.ExpiresAt
	}

	c.logger.Debug("automation login completed",
		zap.String("site", site.String()),
		zap.Time("expires_at", expiresAt),
	)

	return &Session{
		Token:     loginResp.SessionToken,
		Cookies:   loginResp.Cookies,
		ExpiresAt: expiresAt,
	}, nil
}

// sessionCache holds the per-user sessions an automation-backed adapter has
// already established, so repeated searches reuse the login until it expires.
type sessionCache struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func newSessionCache() *sessionCache {
	return &sessionCache{sessions: make(map[uuid.UUID]*Session)}
}

// get returns a live cached session, or nil when absent or expired.
func (c *sessionCache) get(userID uuid.UUID) *Session {
	c.mu.RLock()
	session, ok := c.sessions[userID]
	c.mu.RUnlock()
	if !ok || session.Expired(time.Now()) {
		return nil
	}
	return session
}

func (c *sessionCache) put(userID uuid.UUID, session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[userID] = session
}

// invalidate drops a session the upstream has stopped accepting.
func (c *sessionCache) invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, userID)
}
