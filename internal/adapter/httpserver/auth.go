package httpserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
)

// Argon2Params defines parameters for Argon2id password hashing
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params returns the hashing parameters used for operator
// credentials.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 2,
		SaltLen:     16,
		KeyLen:      32,
	}
}

// HashPassword creates an Argon2id hash of the password
func HashPassword(password string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)

	// Format: argon2id$iterations$memory$parallelism$salt$hash (base64 encoded)
	encoded := fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// VerifyPassword verifies a password against its Argon2id hash
func VerifyPassword(password, encodedHash string) bool {
	// Expected format: argon2id$iterations$memory$parallelism$salt$hash (base64 raw std for salt/hash)
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// Clamp parallelism to uint8 range to avoid overflow
	var par uint8
	if par64 > math.MaxUint8 {
		par = math.MaxUint8
	} else {
		par = uint8(par64)
	}
	actualHash := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(actualHash, expectedHash) == 1
}

// identityKey is an unexported context key type for the verified identity.
type identityKey struct{}

// IdentityFrom returns the verified identity stored by the Authenticator.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	v := ctx.Value(identityKey{})
	if v == nil {
		return domain.Identity{}, false
	}
	ident, ok := v.(domain.Identity)
	return ident, ok
}

// Authenticator resolves request credentials against the auth collaborator
// and guards the operator surface with argon2id-verified basic auth.
type Authenticator struct {
	Auth domain.AuthService
	Cfg  config.Config
}

// NewAuthenticator creates an authenticator over the auth collaborator.
func NewAuthenticator(cfg config.Config, auth domain.AuthService) *Authenticator {
	return &Authenticator{Auth: auth, Cfg: cfg}
}

// TokenFromRequest extracts the bearer token from the Authorization header or
// falls back to the session cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// RequireUser verifies the request token and injects the identity into the
// context. Verification is fail-closed: an unreachable auth service is a 503,
// never a pass-through.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r, a.Cfg.SessionCookieName)
		if token == "" {
			writeError(w, r, fmt.Errorf("%w: missing credentials", domain.ErrUnauthorized), nil)
			return
		}
		ident, err := a.Auth.VerifyToken(r.Context(), token)
		if err != nil {
			if isDependencyDown(err) {
				LoggerFrom(r).Warn("token verification unavailable", "error", err)
				writeError(w, r, err, nil)
				return
			}
			writeError(w, r, fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized), nil)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly guards operator routes with basic auth against the configured
// argon2id hash. Without a configured hash the guard is a dev-mode
// pass-through, mirroring the internal-token posture.
func (a *Authenticator) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Cfg.AdminGuardEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !a.checkAdmin(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="operator"`)
			writeError(w, r, fmt.Errorf("%w: operator credentials required", domain.ErrUnauthorized), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) checkAdmin(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Cfg.AdminUsername)) == 1
	passOK := VerifyPassword(pass, a.Cfg.AdminPasswordHash)
	return userOK && passOK
}

// SetSessionCookie stores the auth token as an http-only session cookie.
func (a *Authenticator) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.Cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   !a.Cfg.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 24 hours
	})
}

// ClearSessionCookie removes the session cookie.
func (a *Authenticator) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.Cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !a.Cfg.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// isDependencyDown reports whether the error is an availability failure
// rather than a verdict about the credentials.
func isDependencyDown(err error) bool {
	return errors.Is(err, domain.ErrCircuitOpen) ||
		errors.Is(err, domain.ErrTransport) ||
		errors.Is(err, domain.ErrUpstreamTimeout)
}

// parseUint32 parses a decimal string into uint32; returns error on failure
func parseUint32(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse")
	}
	if x > math.MaxUint32 {
		return 0, fmt.Errorf("parse")
	}
	return uint32(x), nil
}
