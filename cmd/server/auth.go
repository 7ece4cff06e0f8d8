package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

const sessionCookieName = "signworks_session"

var errUnauthorized = errors.New("unauthorized")

type authService struct {
	store         store.Store
	sessionSecret []byte
	ttl           time.Duration
	secureCookie  bool
	now           func() time.Time
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// newAuthService signs sessions with secret. An empty secret gets a random one,
// so sessions do not survive a restart.
func newAuthService(s store.Store, secret string, ttl time.Duration, secureCookie bool) *authService {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &authService{store: s, sessionSecret: key, ttl: ttl, secureCookie: secureCookie, now: time.Now}
}

func (a *authService) validateCredentials(r *http.Request, email, password string) (model.User, bool, error) {
	user, err := a.store.GetUserByEmail(r.Context(), strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("query user credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, false, nil
	}
	return user, true, nil
}

func (a *authService) createToken(user model.User) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return token.SignedString(a.sessionSecret)
}

func (a *authService) parseToken(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return a.sessionSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errUnauthorized
	}
	return claims, nil
}

// tokenFrom reads the session from the Authorization header, then the cookie.
func tokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (a *authService) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFrom(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errUnauthorized.Error()})
			return
		}
		claims, err := s.auth.parseToken(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errUnauthorized.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(audit.WithUser(r.Context(), claims.Subject)))
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	user, ok, err := s.auth.validateCredentials(r, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.log.WithField("email", req.Email).Warn("failed login attempt")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	token, err := s.auth.createToken(user)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("sign session token: %w", err))
		return
	}
	s.auth.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
