package httpsession

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordo-backend/pkg/config"
)

func testConfig() config.VendorsConfig {
	return config.VendorsConfig{HTTPTimeout: 5 * time.Second, RetryCount: 0, UserAgent: "ordo-test"}
}

func newVendorServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("username") != "dr-smith" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "ordo-test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if c, err := r.Cookie("sid"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<html><body>cart for " + r.URL.Query().Get("office") + "</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.VendorsConfig{})
	require.Error(t, err)

	cfg := testConfig()
	cfg.ProxyURL = "://bad"
	_, err = New(cfg)
	require.Error(t, err)
}

func TestClientKeepsLoginCookies(t *testing.T) {
	srv := newVendorServer(t)
	session, err := New(testConfig())
	require.NoError(t, err)
	defer session.Close()

	client, err := session.NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := client.PostForm(context.Background(), "/login", map[string]string{"username": "dr-smith", "password": "pw"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	body, err := client.GetHTML(context.Background(), "/cart", map[string]string{"office": "north"})
	require.NoError(t, err)
	require.Contains(t, body, "cart for north")

	cookies, err := client.Cookies(srv.URL)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
}

func TestClientsDoNotShareCookies(t *testing.T) {
	srv := newVendorServer(t)
	session, err := New(testConfig())
	require.NoError(t, err)

	first, err := session.NewClient(srv.URL)
	require.NoError(t, err)
	second, err := session.NewClient(srv.URL)
	require.NoError(t, err)

	_, err = first.PostForm(context.Background(), "/login", map[string]string{"username": "dr-smith"})
	require.NoError(t, err)

	_, err = second.GetHTML(context.Background(), "/cart", nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected status error, got %v", err)
	require.Equal(t, http.StatusForbidden, statusErr.Status)
}
