package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func resolveIdentity(t *testing.T, req *http.Request) (identity, source string) {
	t.Helper()

	w := httptest.NewRecorder()
	r := gin.New()
	r.Use(Identity())
	r.Any("/", func(c *gin.Context) {
		identity = IdentityFrom(c)
		source = c.GetString("identity_source")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(w, req)

	return identity, source
}

func TestIdentity_HeaderWinsOverEverything(t *testing.T) {
	body := strings.NewReader(`{"user_id":"from-body"}`)
	req := httptest.NewRequest(http.MethodPost, "/?user_id=from-query", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdentityHeader, "from-header")
	req.RemoteAddr = "203.0.113.7:1234"

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "from-header", identity)
	assert.Equal(t, "header", source)
}

func TestIdentity_QueryBeatsBodyAndIP(t *testing.T) {
	body := strings.NewReader(`{"user_id":"from-body"}`)
	req := httptest.NewRequest(http.MethodPost, "/?user_id=from-query", body)
	req.Header.Set("Content-Type", "application/json")

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "from-query", identity)
	assert.Equal(t, "query", source)
}

func TestIdentity_BodyBeatsIP(t *testing.T) {
	body := strings.NewReader(`{"user_id":"from-body","meal":"lunch"}`)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", "application/json")

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "from-body", identity)
	assert.Equal(t, "body", source)
}

func TestIdentity_FallsBackToClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "203.0.113.7", identity)
	assert.Equal(t, "ip", source)
}

func TestIdentity_WhitespaceHeaderIsIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?user_id=q", nil)
	req.Header.Set(IdentityHeader, "   ")

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "q", identity)
	assert.Equal(t, "query", source)
}

func TestIdentity_BodyRemainsReadableByHandler(t *testing.T) {
	payload := `{"user_id":"u1","calories":1800}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r := gin.New()
	r.Use(Identity())

	var seen string
	r.POST("/", func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		seen = string(raw)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(w, req)

	assert.Equal(t, payload, seen, "identity sniffing must not consume the body")
}

func TestIdentity_MalformedJSONBodyFallsThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.9:5555"

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "198.51.100.9", identity)
	assert.Equal(t, "ip", source)
}

func TestIdentity_NonJSONBodyIsNotSniffed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("user_id=sneaky"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "198.51.100.9:5555"

	identity, source := resolveIdentity(t, req)
	assert.Equal(t, "198.51.100.9", identity)
	assert.Equal(t, "ip", source)
}
