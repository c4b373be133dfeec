package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
	"github.com/vytor/chessduel/internal/models"
)

// ErrInvalidSession covers every reason a token is rejected.
var ErrInvalidSession = stderrors.New("invalid session")

// maxClockSkew bounds how far in the future an issued-at time may be.
const maxClockSkew = time.Minute

var payloadEncoding = base64.RawURLEncoding.Strict()

// Roster is the fixed identity set the services authenticate against.
type Roster interface {
	Authenticate(username, password string) (models.Identity, error)
	Lookup(id string) (models.Identity, bool)
	Opponent(id string) (models.Identity, error)
	Identities() []models.Identity
}

// SessionConfig configures token signing and the session cookie.
type SessionConfig struct {
	Secret     []byte
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// SessionService issues and verifies stateless signed session tokens.
type SessionService interface {
	Authenticate(ctx context.Context, username, password string) (models.Identity, error)
	Issue(identity models.Identity) (string, error)
	Verify(ctx context.Context, token string) (models.Identity, error)
	Cookie(token string) *http.Cookie
	Revoke() *http.Cookie
	CookieName() string
}

type sessionService struct {
	cfg    SessionConfig
	roster Roster
	now    func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(cfg SessionConfig, roster Roster) SessionService {
	return &sessionService{cfg: cfg, roster: roster, now: time.Now}
}

func (s *sessionService) Authenticate(ctx context.Context, username, password string) (models.Identity, error) {
	log := logger.FromContext(ctx).WithPrefix("session_service")

	identity, err := s.roster.Authenticate(username, password)
	if err != nil {
		log.Warn("sign-in rejected")
		return models.Identity{}, errors.NewUnauthorizedError(err)
	}
	log.Info("signed in: identity=%s", identity.ID)
	return identity, nil
}

// Issue returns base64url(payload) + "." + hex(HMAC-SHA256(secret, base64url(payload))).
func (s *sessionService) Issue(identity models.Identity) (string, error) {
	raw, err := json.Marshal(models.SessionClaims{IdentityID: identity.ID, IssuedAt: s.now().Unix()})
	if err != nil {
		return "", err
	}
	payload := payloadEncoding.EncodeToString(raw)
	return payload + "." + s.sign(payload), nil
}

// Verify checks the signature, expiry and subject of token. Every failure returns the same
// error, and the identity lookup runs whether or not the signature matched.
func (s *sessionService) Verify(ctx context.Context, token string) (models.Identity, error) {
	payload, sig, found := strings.Cut(token, ".")

	expected := s.sign(payload)
	macOK := found && hmac.Equal([]byte(sig), []byte(expected))

	claims, decodeErr := decodeClaims(payload)
	identity, known := s.roster.Lookup(claims.IdentityID)

	now := s.now()
	issued := time.Unix(claims.IssuedAt, 0)
	fresh := !issued.After(now.Add(maxClockSkew)) && now.Before(issued.Add(s.cfg.MaxAge))

	if !macOK || decodeErr != nil || !known || !fresh {
		logger.FromContext(ctx).WithPrefix("session_service").Debug("session token rejected")
		return models.Identity{}, errors.NewUnauthorizedError(ErrInvalidSession)
	}
	return identity, nil
}

func (s *sessionService) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Revoke returns an already-expired cookie that overwrites the client's token. There is no
// server state to clear.
func (s *sessionService) Revoke() *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *sessionService) CookieName() string {
	return s.cfg.CookieName
}

func (s *sessionService) sign(payload string) string {
	mac := hmac.New(sha256.New, s.cfg.Secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeClaims(payload string) (models.SessionClaims, error) {
	var claims models.SessionClaims
	raw, err := payloadEncoding.DecodeString(payload)
	if err != nil {
		return claims, err
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return models.SessionClaims{}, err
	}
	if claims.IdentityID == "" || claims.IssuedAt <= 0 {
		return claims, ErrInvalidSession
	}
	return claims, nil
}
