package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/config"
	"github.com/sakif/agromarket/internal/mail"
	"github.com/sakif/agromarket/internal/server"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password"
)

// mailbox records every message instead of delivering it.
type mailbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *mailbox) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var confirmationPath = regexp.MustCompile(`/auth/confirmation/\S+`)

// lastLink returns the confirmation path from the newest message to addr.
func (m *mailbox) lastLink(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			path := confirmationPath.FindString(m.sent[i].Body)
			require.NotEmpty(t, path, "no link in mail to %s", addr)
			return path
		}
	}
	t.Fatalf("no mail sent to %s", addr)
	return ""
}

// newUserinfoServer stands in for Google: "good-token" belongs to Szilvia.
func newUserinfoServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"email":"szilvia@example.com","name":"Szilvia","picture":"https://example.com/s.png"}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type app struct {
	url  string
	mail *mailbox
}

func newApp(t *testing.T) *app {
	t.Helper()
	google := newUserinfoServer(t)

	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.SessionSecret = strings.Repeat("k", 32)
	cfg.VerifySecret = "verification-secret-for-tests"
	cfg.GoogleUserinfoURL = google.URL
	cfg.AdminEmail = adminEmail
	cfg.AdminPassword = adminPassword

	box := &mailbox{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.New(cfg, logger,
		server.WithMailer(box),
		server.WithPasswordService(auth.NewPasswordServiceForTest(4)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &app{url: ts.URL, mail: box}
}

// client is one browser: it keeps its own cookie jar.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (a *app) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: a.url, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, data
}

// sessionID is the current value of the session cookie.
func (c *client) sessionID() string {
	u, _ := url.Parse(c.base)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "connect.sid" {
			return ck.Value
		}
	}
	return ""
}

func (c *client) login(email, password string) {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, resp.StatusCode, string(body))
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type message struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Warning string `json:"warning"`
}

type record struct {
	ID string `json:"_id"`
}

// seedCatalog creates one category and one product as admin.
func seedCatalog(t *testing.T, admin *client) (categoryID, productID string) {
	t.Helper()
	resp, body := admin.do(http.MethodPost, "/categories", map[string]string{"category_name": "Gyümölcs", "main_category": "Növényi"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	categoryID = decode[record](t, body).ID

	resp, body = admin.do(http.MethodPost, "/products", map[string]string{"category_id": categoryID, "product_name": "Szilva"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	return categoryID, decode[record](t, body).ID
}

func createOffer(t *testing.T, c *client, productID, info string, price float64) string {
	t.Helper()
	resp, body := c.do(http.MethodPost, "/offers", map[string]any{
		"product_id": productID,
		"unit":       "kg",
		"unit_price": price,
		"quantity":   10,
		"info":       info,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.NotEmpty(t, resp.Header.Get("x-total-count"))
	return decode[record](t, body).ID
}

func TestRegisterConfirmLogin(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	resp, body := c.do(http.MethodPost, "/auth/register", map[string]string{"email": "Peter@Example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, decode[message](t, body).Message, "peter@example.com")

	t.Run("duplicate e-mail is rejected", func(t *testing.T) {
		resp, body := c.do(http.MethodPost, "/auth/register", map[string]string{"email": "peter@example.com", "password": "other"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, http.StatusBadRequest, decode[message](t, body).Status)
	})

	t.Run("unverified login is refused", func(t *testing.T) {
		resp, body := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "peter@example.com", "password": "secret1"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Your Email has not been verified. Please click on resend!", decode[message](t, body).Message)
	})

	link := a.mail.lastLink(t, "peter@example.com")
	resp, body = c.do(http.MethodGet, link, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Your account has been successfully verified! Please log in.", decode[message](t, body).Message)

	resp, body = c.do(http.MethodGet, link, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User has been already verified. Please Login!", decode[message](t, body).Message)

	t.Run("wrong password", func(t *testing.T) {
		resp, body := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "peter@example.com", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Wrong credentials provided", decode[message](t, body).Message)
	})

	resp, body = c.do(http.MethodPost, "/auth/login", map[string]string{"email": "peter@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.NotContains(t, string(body), "password")
	user := decode[struct {
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}](t, body)
	assert.Equal(t, "peter", user.Name)
	assert.Equal(t, []string{"user"}, user.Roles)
}

func TestLoginRegeneratesSession(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	c.login(adminEmail, adminPassword)
	first := c.sessionID()
	require.NotEmpty(t, first)

	c.login(adminEmail, adminPassword)
	second := c.sessionID()
	assert.NotEqual(t, first, second)

	// The replaced session is gone server-side, not just forgotten by the client.
	stale := a.client(t)
	u, _ := url.Parse(a.url)
	stale.http.Jar.SetCookies(u, []*http.Cookie{{Name: "connect.sid", Value: first, Path: "/"}})
	resp, _ := stale.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticationRequired(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	resp, body := c.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Session id missing or session has expired, please log in!", decode[message](t, body).Message)

	c.login(adminEmail, adminPassword)
	resp, _ = c.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRolesAreEnforced(t *testing.T) {
	a := newApp(t)

	g := a.client(t)
	resp, body := g.do(http.MethodPost, "/auth/google", map[string]string{"atoken": "good-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = g.do(http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You don't have the necessary role(s) to perform this operation!", decode[message](t, body).Message)

	resp, _ = g.do(http.MethodPost, "/offers", map[string]any{"unit": "kg"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGoogleRejectsUnknownToken(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	resp, _ := c.do(http.MethodPost, "/auth/google", map[string]string{"atoken": "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAutoLoginIsIdempotent(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	resp, body := c.do(http.MethodPost, "/auth/google", map[string]string{"atoken": "good-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = c.do(http.MethodPost, "/auth/closeapp", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "closeapp logs the session out")

	for i := 0; i < 2; i++ {
		resp, body := c.do(http.MethodPost, "/auth/autologin", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Contains(t, string(body), "szilvia@example.com")
	}

	resp, _ = c.do(http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAutoLoginWithoutSession(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	resp, body := c.do(http.MethodPost, "/auth/autologin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Please log in!", decode[message](t, body).Message)
}

// deletedGoogleUser signs a buyer in with Google and has the admin delete
// the account while the buyer's session is still live.
func deletedGoogleUser(t *testing.T, a *app) (admin, buyer *client) {
	t.Helper()
	admin = a.client(t)
	admin.login(adminEmail, adminPassword)

	buyer = a.client(t)
	resp, body := buyer.do(http.MethodPost, "/auth/google", map[string]string{"atoken": "good-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	userID := decode[record](t, body).ID

	resp, body = admin.do(http.MethodDelete, "/users/"+userID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
	return admin, buyer
}

func TestAutoLoginDropsSessionOfDeletedUser(t *testing.T) {
	a := newApp(t)
	_, buyer := deletedGoogleUser(t, a)

	resp, _ := buyer.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "the session is still logged in")

	resp, body := buyer.do(http.MethodPost, "/auth/autologin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Please log in!", decode[message](t, body).Message)

	resp, _ = buyer.do(http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeletedUserCannotWrite(t *testing.T) {
	a := newApp(t)
	admin, buyer := deletedGoogleUser(t, a)
	_, productID := seedCatalog(t, admin)
	offerID := createOffer(t, admin, productID, "szilva", 120)

	resp, body := buyer.do(http.MethodPost, "/orders", map[string]any{
		"details": []map[string]any{{"offer_id": offerID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, _ = admin.do(http.MethodGet, "/orders", nil)
	assert.Equal(t, "0", resp.Header.Get("x-total-count"))
}

func TestOfferRules(t *testing.T) {
	a := newApp(t)
	admin := a.client(t)
	admin.login(adminEmail, adminPassword)
	categoryID, productID := seedCatalog(t, admin)
	offerID := createOffer(t, admin, productID, "friss szilva", 300)

	t.Run("immutable unit_price", func(t *testing.T) {
		resp, body := admin.do(http.MethodPatch, "/offers/"+offerID, map[string]any{"unit_price": 5})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, decode[message](t, body).Message, "unit_price")
	})

	t.Run("mutable quantity", func(t *testing.T) {
		resp, body := admin.do(http.MethodPatch, "/offers/"+offerID, map[string]any{"quantity": 4.6})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, 5, decode[struct {
			Quantity int `json:"quantity"`
		}](t, body).Quantity)
	})

	t.Run("referenced category cannot be deleted", func(t *testing.T) {
		resp, body := admin.do(http.MethodDelete, "/categories/"+categoryID, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "Can't DELETE from categories collection, because has reference in other collection(s).", decode[message](t, body).Message)
	})

	t.Run("out of range amounts", func(t *testing.T) {
		resp, _ := admin.do(http.MethodPost, "/offers", map[string]any{
			"product_id": productID, "unit": "kg", "unit_price": 1e20, "quantity": 1,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = admin.do(http.MethodPost, "/orders", map[string]any{"details": []map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "an order needs at least one line")
	})

	t.Run("malformed id", func(t *testing.T) {
		resp, _ := admin.do(http.MethodGet, "/offers/not-an-id", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete then get", func(t *testing.T) {
		resp, _ := admin.do(http.MethodDelete, "/offers/"+offerID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "0", resp.Header.Get("x-total-count"))

		resp, _ = admin.do(http.MethodGet, "/offers/"+offerID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestOfferPagination(t *testing.T) {
	a := newApp(t)
	admin := a.client(t)
	admin.login(adminEmail, adminPassword)
	_, productID := seedCatalog(t, admin)

	createOffer(t, admin, productID, "szilva 1", 100)
	createOffer(t, admin, productID, "szilva 2", 200)
	createOffer(t, admin, productID, "szilva 3", 300)
	createOffer(t, admin, productID, "alma", 50)

	anon := a.client(t)

	tests := []struct {
		name      string
		path      string
		wantTotal string
		wantLen   int
	}{
		{"filtered page", "/offers/0/2/-unit_price/szilva", "4", 2},
		{"everything", "/offers/0/10/unit_price/*", "4", 4},
		{"empty window", "/offers/0/0/unit_price/*", "4", 0},
		{"active prefix", "/offers/active/0/10/unit_price/alma", "1", 1},
		{"active suffix", "/offers/2/10/unit_price/*/active", "4", 2},
	}
	// Every offer's product is "Szilva", so the product name matches too.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := anon.do(http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			assert.Equal(t, tt.wantTotal, resp.Header.Get("x-total-count"))
			assert.Len(t, decode[[]json.RawMessage](t, body), tt.wantLen)
		})
	}

	t.Run("descending order", func(t *testing.T) {
		_, body := anon.do(http.MethodGet, "/offers/0/2/-unit_price/szilva", nil)
		page := decode[[]struct {
			UnitPrice int `json:"unit_price"`
		}](t, body)
		require.Len(t, page, 2)
		assert.Equal(t, 300, page[0].UnitPrice)
		assert.Equal(t, 200, page[1].UnitPrice)
	})

	t.Run("filter by info only", func(t *testing.T) {
		resp, _ := anon.do(http.MethodGet, "/offers/0/10/info/"+url.PathEscape("^szilva [12]$"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("x-total-count"))
	})

	t.Run("escaped percent stays literal", func(t *testing.T) {
		createOffer(t, admin, productID, "kód %41", 70)
		// %2541 decodes once to the regex "%41", not to "A".
		resp, _ := anon.do(http.MethodGet, "/offers/0/10/info/%2541", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("x-total-count"))
	})

	t.Run("bad offset", func(t *testing.T) {
		resp, _ := anon.do(http.MethodGet, "/offers/x/2/info/*", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad regex", func(t *testing.T) {
		resp, _ := anon.do(http.MethodGet, "/offers/0/2/info/"+url.PathEscape("(unclosed"), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestOrdersAndCart(t *testing.T) {
	a := newApp(t)
	admin := a.client(t)
	admin.login(adminEmail, adminPassword)
	_, productID := seedCatalog(t, admin)
	offerID := createOffer(t, admin, productID, "szilva", 120)

	buyer := a.client(t)
	resp, body := buyer.do(http.MethodPost, "/auth/google", map[string]string{"atoken": "good-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	t.Run("cart accumulates", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp, body := buyer.do(http.MethodPost, "/cart", map[string]any{"offer_id": offerID, "quantity": 2})
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		}
		resp, body := buyer.do(http.MethodGet, "/cart", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("x-total-count"))
		assert.Contains(t, string(body), `"quantity":4`)

		resp, _ = buyer.do(http.MethodDelete, "/cart", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	resp, body = buyer.do(http.MethodPost, "/orders", map[string]any{
		"details": []map[string]any{{"offer_id": offerID, "quantity": 3, "stars": 5}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	orderID := decode[record](t, body).ID

	t.Run("order pins the offer", func(t *testing.T) {
		resp, _ := admin.do(http.MethodDelete, "/offers/"+offerID, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("owner and admin see the order", func(t *testing.T) {
		resp, _ := buyer.do(http.MethodGet, "/orders/"+orderID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = admin.do(http.MethodGet, "/orders", nil)
		assert.Equal(t, "1", resp.Header.Get("x-total-count"))
	})

	t.Run("user_id is immutable", func(t *testing.T) {
		resp, _ := buyer.do(http.MethodPatch, "/orders/"+orderID, map[string]any{"user_id": "9m4e2mr0ui3e8a215n4g"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	resp, _ = buyer.do(http.MethodDelete, "/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("x-total-count"))

	resp, _ = admin.do(http.MethodDelete, "/offers/"+offerID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpsEndpoints(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	resp, body := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, body = c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/docs/")

	resp, body = c.do(http.MethodGet, "/docs/doc.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/offers/{offset}/{limit}/{sortingfield}/{filter}")

	resp, body = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "agromarket_http_requests_total")
}
