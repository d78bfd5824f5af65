package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName  = "showcase_session"
	defaultCookiePath  = "/"
	defaultIdleTimeout = 30 * time.Minute
	ephemeralKeyLength = 32
)

// ErrInvalidConfig indicates the manager was initialised with invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Data is the payload carried in the session cookie. Uploads never leave the server; the cookie
// only identifies which in-memory store belongs to the browser.
type Data struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Config controls cookie encoding and idle expiry.
type Config struct {
	CookieName   string
	CookiePath   string
	CookieSecure bool
	HashKey      []byte
	BlockKey     []byte
	IdleTimeout  time.Duration
	Now          func() time.Time
}

// Manager issues and decodes signed session cookies.
type Manager struct {
	cfg       Config
	codec     *securecookie.SecureCookie
	now       func() time.Time
	ephemeral bool
}

// NewManager constructs a Manager. Without a hash key a random one is generated, so cookies do
// not survive a restart; Ephemeral reports when that happened.
func NewManager(cfg Config) (*Manager, error) {
	ephemeral := false
	if len(cfg.HashKey) == 0 {
		cfg.HashKey = securecookie.GenerateRandomKey(ephemeralKeyLength)
		if cfg.HashKey == nil {
			return nil, fmt.Errorf("%w: could not generate hash key", ErrInvalidConfig)
		}
		ephemeral = true
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(0)

	return &Manager{cfg: cfg, codec: codec, now: nowFn, ephemeral: ephemeral}, nil
}

// Ephemeral reports whether the manager signs with a generated key.
func (m *Manager) Ephemeral() bool { return m.ephemeral }

// CookieName returns the cookie the manager reads and writes.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Load returns the request's session. A missing, tampered or idle-expired cookie yields a fresh
// session and fresh=true.
func (m *Manager) Load(r *http.Request) (data Data, fresh bool) {
	now := m.now().UTC()
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.newData(now), true
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil || stored.ID == "" {
		return m.newData(now), true
	}
	if now.Sub(stored.LastActive) > m.cfg.IdleTimeout {
		return m.newData(now), true
	}
	return stored, false
}

// Save touches the session and writes it back as a cookie.
func (m *Manager) Save(w http.ResponseWriter, data Data) error {
	data.LastActive = m.now().UTC()
	encoded, err := m.codec.Encode(m.cfg.CookieName, data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) newData(now time.Time) Data {
	return Data{ID: uuid.NewString(), CreatedAt: now, LastActive: now}
}
