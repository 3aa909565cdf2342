package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"customizer/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestJWTRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "round-trip")
	t.Setenv("MERCHANT_SUBJECTS", "github_7")
	InitAuth()

	tok, err := CreateJWT(&core.User{Subject: "github_7", Login: "octo", Name: "Octo Cat"})
	require.NoError(t, err)

	claims, err := ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "github_7", claims.Subject)
	assert.Equal(t, "octo", claims.Login)
	assert.True(t, claims.Merchant)

	tok, err = CreateJWT(&core.User{Subject: "github_8"})
	require.NoError(t, err)
	claims, err = ParseJWT(tok)
	require.NoError(t, err)
	assert.False(t, claims.Merchant)
}

func TestParseJWTRejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "right")
	InitAuth()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	s, err := expired.SignedString([]byte("right"))
	require.NoError(t, err)
	_, err = ParseJWT(s)
	assert.Error(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u"},
	})
	s, err = forged.SignedString([]byte("wrong"))
	require.NoError(t, err)
	_, err = ParseJWT(s)
	assert.Error(t, err)
}

func TestCreateJWTWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	InitAuth()
	_, err := CreateJWT(&core.User{Subject: "u"})
	assert.Error(t, err)
}

func TestLoginWithoutProvider(t *testing.T) {
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("GITHUB_CLIENT_ID", "")
	InitAuth()

	rec := httptest.NewRecorder()
	HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"login":"octo","name":"Octo Cat","avatar_url":"https://avatars.example/7"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("GITHUB_CLIENT_ID", "")
	t.Setenv("JWT_SECRET", "callback-secret")
	t.Setenv("MERCHANT_SUBJECTS", "github_7")
	t.Setenv("AUTH_REDIRECT_URL", "https://shop.example/customize")
	InitAuth()
	current.provider = &githubProvider{
		config: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
		},
		userURL: srv.URL + "/user",
	}
	t.Cleanup(func() { current.provider = nil })
	return srv
}

func callback(query, state string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	}
	rec := httptest.NewRecorder()
	HandleCallback(rec, req)
	return rec
}

func TestLoginSetsState(t *testing.T) {
	srv := fakeGitHub(t)

	rec := httptest.NewRecorder()
	HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, stateCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), srv.URL+"/authorize"), loc.String())
	assert.Equal(t, cookies[0].Value, loc.Query().Get("state"))
}

func TestCallbackIssuesToken(t *testing.T) {
	fakeGitHub(t)

	rec := callback("code=good-code&state=s1", "s1")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "shop.example", loc.Host)
	assert.Equal(t, "/customize", loc.Path)

	claims, err := ParseJWT(loc.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "github_7", claims.Subject)
	assert.Equal(t, "octo", claims.Login)
	assert.Equal(t, "Octo Cat", claims.Name)
	assert.True(t, claims.Merchant)
}

func TestCallbackFailures(t *testing.T) {
	fakeGitHub(t)

	tests := []struct {
		name   string
		query  string
		cookie string
		reason string
	}{
		{"no state cookie", "code=good-code&state=s1", "", "state"},
		{"state mismatch", "code=good-code&state=s1", "s2", "state"},
		{"no code", "state=s1", "s1", "code"},
		{"rejected code", "code=stale&state=s1", "s1", "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := callback(tt.query, tt.cookie)
			require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, "https://shop.example/customize?error="+tt.reason, rec.Header().Get("Location"))
		})
	}
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "/?token=a.b", withQuery("/", "token", "a.b"))
	assert.Equal(t, "/done?x=1&error=state", withQuery("/done?x=1", "error", "state"))
}
