// Package auth signs shoppers and merchants in through GitHub or any OIDC
// issuer and hands the storefront a session JWT.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"customizer/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	stateCookie = "customizer_oauth_state"
	stateTTL    = 10 * time.Minute
	sessionTTL  = 7 * 24 * time.Hour
)

// AppClaims are the session token claims.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
	Merchant  bool   `json:"merchant,omitempty"`
}

// settings is the state InitAuth reads from the environment.
type settings struct {
	provider  provider
	secret    []byte
	merchants map[string]bool
	// redirect is where the storefront receives the token.
	redirect string
}

var current = settings{redirect: "/"}

// InitAuth selects the login provider, OIDC first, then GitHub, and loads
// the signing secret and merchant list.
func InitAuth() {
	s := settings{
		secret:    []byte(os.Getenv("JWT_SECRET")),
		merchants: map[string]bool{},
		redirect:  os.Getenv("AUTH_REDIRECT_URL"),
	}
	if s.redirect == "" {
		s.redirect = "/"
	}
	if len(s.secret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	for _, sub := range strings.Split(os.Getenv("MERCHANT_SUBJECTS"), ",") {
		if sub = strings.TrimSpace(sub); sub != "" {
			s.merchants[sub] = true
		}
	}

	p, err := providerFromEnv()
	switch {
	case err != nil:
		logrus.WithError(err).Error("Failed to initialize authentication provider")
	case p == nil:
		logrus.Warn("No authentication provider configured.")
	default:
		logrus.WithField("provider", p.name()).Info("Authentication provider initialized")
	}
	s.provider = p
	current = s
}

func notConfigured(w http.ResponseWriter) {
	http.Error(w, "Authentication not configured", http.StatusInternalServerError)
}

// HandleLogin sets a one-time state cookie and redirects to the provider.
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	p := current.provider
	if p == nil {
		notConfigured(w)
		return
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "Failed to generate login state", http.StatusInternalServerError)
		return
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		Expires:  time.Now().Add(stateTTL),
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.authURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback checks the state, resolves the user with the provider and
// redirects to the storefront with a token. Failures redirect with an
// error code instead.
func HandleCallback(w http.ResponseWriter, r *http.Request) {
	p := current.provider
	if p == nil {
		notConfigured(w)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(r.FormValue("state"))) != 1 {
		failLogin(w, r, "state", errors.New("login state mismatch"))
		return
	}
	code := r.FormValue("code")
	if code == "" {
		failLogin(w, r, "code", errors.New("no code in callback"))
		return
	}

	user, err := p.user(r.Context(), code)
	if err != nil {
		failLogin(w, r, "provider", err)
		return
	}
	token, err := CreateJWT(user)
	if err != nil {
		failLogin(w, r, "token", err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"provider": p.name(),
		"subject":  user.Subject,
	}).Info("User signed in")
	http.Redirect(w, r, withQuery(current.redirect, "token", token), http.StatusTemporaryRedirect)
}

func failLogin(w http.ResponseWriter, r *http.Request, reason string, err error) {
	logrus.WithFields(logrus.Fields{
		"error":  err,
		"reason": reason,
	}).Warn("Login failed")
	http.Redirect(w, r, withQuery(current.redirect, "error", reason), http.StatusTemporaryRedirect)
}

func withQuery(target, key, value string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + key + "=" + url.QueryEscape(value)
}

// CreateJWT issues a session token for the user.
func CreateJWT(user *core.User) (string, error) {
	if len(current.secret) == 0 {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
		Merchant:  current.merchants[user.Subject],
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(current.secret)
}

// ParseJWT verifies an HS256 session token.
func ParseJWT(tokenString string) (*AppClaims, error) {
	claims := &AppClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return current.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
