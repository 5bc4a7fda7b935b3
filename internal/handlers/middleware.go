package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID        = "userId"
	accessTokenQuery = "access_token"

	errAuthMissing = "missing Authorization header"
	errAuthFormat  = "invalid Authorization header format"
	errAuthToken   = "invalid or expired token"
)

// requireUser rejects requests without a valid bearer token. With
// allowQuery the token may also come from ?access_token=, for websocket
// clients that cannot set headers.
func (h *Handler) requireUser(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c, allowQuery)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		userID, err := h.services.ParseToken(token)
		if err != nil {
			if h.log != nil {
				h.log.Debugw("auth_token_rejected", "err", err, "path", c.FullPath())
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthToken})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// bearerToken returns the token or a non-empty rejection message. The
// header wins over the query parameter.
func bearerToken(c *gin.Context, allowQuery bool) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if tok := strings.TrimSpace(c.Query(accessTokenQuery)); allowQuery && tok != "" {
			return tok, ""
		}
		return "", errAuthMissing
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errAuthFormat
	}
	return token, ""
}

// withUser prefixes log fields with the caller's ID when the request
// passed requireUser.
func withUser(c *gin.Context, kv []interface{}) []interface{} {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return kv
	}
	return append([]interface{}{"user_id", id}, kv...)
}
