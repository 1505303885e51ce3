package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// IdentityHeader carries the caller's explicit identity.
	IdentityHeader = "X-User-ID"
	// IdentityQueryParam and IdentityBodyField are the fallback carriers.
	IdentityQueryParam = "user_id"
	IdentityBodyField  = "user_id"

	identityKey       = "identity"
	identitySourceKey = "identity_source"
)

// Identity resolves the quota identity for the request, first non-empty wins:
// header, then query parameter, then JSON body field, then client IP.
//
// The precedence is fixed on purpose: it decides which counters a request is
// charged against. A client that sometimes sends an explicit identity and
// sometimes relies on its IP is metered as two identities; that fragmentation
// is a documented limitation, not something this middleware papers over.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, source := extractIdentity(c)
		c.Set(identityKey, identity)
		c.Set(identitySourceKey, source)
		c.Next()
	}
}

func extractIdentity(c *gin.Context) (identity, source string) {
	if v := strings.TrimSpace(c.GetHeader(IdentityHeader)); v != "" {
		return v, "header"
	}
	if v := strings.TrimSpace(c.Query(IdentityQueryParam)); v != "" {
		return v, "query"
	}
	if v := identityFromBody(c); v != "" {
		return v, "body"
	}
	return c.ClientIP(), "ip"
}

// identityFromBody sniffs a JSON request body for the identity field and puts
// the bytes back so handlers can still bind it.
func identityFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	if !strings.Contains(c.ContentType(), "application/json") {
		return ""
	}

	raw, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	var v string
	if err := json.Unmarshal(body[IdentityBodyField], &v); err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// IdentityFrom returns the identity resolved for this request. Empty only if
// the Identity middleware did not run.
func IdentityFrom(c *gin.Context) string {
	return c.GetString(identityKey)
}
