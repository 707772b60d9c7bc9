package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bioscout-islamabad/bioscout/internal/utils"
)

// Context keys set by ClientIdentity.
const (
	KeyClientID      = "clientID"
	KeyAuthenticated = "authenticated"
)

// HeaderClientID names the namespace of an anonymous browser.
const HeaderClientID = "X-Client-ID"

// AnonymousClient is the namespace used when no identity is presented.
const AnonymousClient = "anonymous"

// AnonymousPrefix marks namespaces taken from X-Client-ID. Session ids are
// bare UUIDs and never contain ':'.
const AnonymousPrefix = "anon:"

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ClientIdentity resolves the preference namespace of every request: the
// client id of a valid bearer token, else AnonymousPrefix plus the
// X-Client-ID header, else "anonymous". Header namespaces can never equal a
// session id. An invalid token is treated as no token.
func ClientIdentity(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, ok := bearerToken(c); ok && tokens != nil {
			if claims, err := tokens.ParseToken(tok); err == nil {
				c.Set(KeyClientID, claims.ClientID)
				c.Set(KeyAuthenticated, true)
				c.Next()
				return
			}
		}

		id := AnonymousClient
		if h := strings.TrimSpace(c.GetHeader(HeaderClientID)); clientIDPattern.MatchString(h) {
			id = AnonymousPrefix + h
		}
		c.Set(KeyClientID, id)
		c.Set(KeyAuthenticated, false)
		c.Next()
	}
}

// AuthRequired rejects requests without a valid session token. It must run
// after ClientIdentity.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(KeyAuthenticated) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in first"})
			return
		}
		c.Next()
	}
}

// ClientID returns the namespace resolved by ClientIdentity.
func ClientID(c *gin.Context) string {
	if id := c.GetString(KeyClientID); id != "" {
		return id
	}
	return AnonymousClient
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
