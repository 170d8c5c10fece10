package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"programhub/internal/apperr"
)

const principalKey = "principal"

// ActiveCheck reports whether the user behind a token may still act.
type ActiveCheck func(ctx context.Context, userID string) (bool, error)

// Authenticate enforces bearer JWT tokens signed with HS256. A nil check skips
// the per-request account lookup.
func Authenticate(signingKey, issuer string, check ActiveCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := principalFromHeader(c, signingKey, issuer)
		if err == nil && p == nil {
			err = apperr.Unauthorized("Unauthorized request: missing bearer token.")
		}
		if err == nil {
			err = ensureActive(c, check, p.ID)
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(principalKey, *p)
		c.Next()
	}
}

// OptionalAuthenticate lets anonymous requests through. A token, when sent,
// must be valid and belong to an active account.
func OptionalAuthenticate(signingKey, issuer string, check ActiveCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := principalFromHeader(c, signingKey, issuer)
		if err == nil && p != nil {
			err = ensureActive(c, check, p.ID)
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if p != nil {
			c.Set(principalKey, *p)
		}
		c.Next()
	}
}

func ensureActive(c *gin.Context, check ActiveCheck, userID string) error {
	if check == nil {
		return nil
	}
	ok, err := check(c.Request.Context(), userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unauthorized("Account is deactivated.")
	}
	return nil
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.Role.In(roles...) {
			_ = c.Error(apperr.Forbidden("Forbidden: You do not have permission to perform this action."))
			c.Abort()
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func principalFromHeader(c *gin.Context, signingKey, issuer string) (*Principal, error) {
	authz := c.GetHeader("Authorization")
	if authz == "" {
		return nil, nil
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return nil, apperr.Unauthorized("Unauthorized request: malformed bearer token.")
	}
	tokenStr := strings.TrimSpace(authz[len("bearer "):])
	claims, err := Parse(tokenStr, signingKey, issuer)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired access token.")
	}
	p := claims.Principal()
	return &p, nil
}
