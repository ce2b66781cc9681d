package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodlog/services"
	"github.com/cppla/moodlog/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextClaimsKey stores the parsed token claims.
	ContextClaimsKey = "claims"
)

// Auth verifies bearer tokens and attaches the session to the request context.
type Auth struct {
	Secret    string
	Blacklist *utils.TokenBlacklist
	// DefaultLocation applies when a token names an unknown timezone.
	DefaultLocation *time.Location
}

type authFailure struct {
	code    int
	message string
}

func (a *Auth) authenticate(ctx *gin.Context) (*utils.Claims, *authFailure) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, &authFailure{40101, "authorization header missing"}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, &authFailure{40102, "invalid authorization header format"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, &authFailure{40103, "empty bearer token"}
	}

	claims, err := utils.ParseToken(a.Secret, tokenString)
	if err != nil {
		return nil, &authFailure{40105, "invalid token"}
	}

	if a.Blacklist != nil && a.Blacklist.Revoked(ctx.Request.Context(), claims.ID) {
		return nil, &authFailure{40104, "token revoked"}
	}
	return claims, nil
}

func (a *Auth) attach(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextClaimsKey, claims)

	sess := services.Session{UserID: claims.UserID}
	if claims.Timezone != "" {
		sess.Location = utils.LoadLocation(claims.Timezone, a.DefaultLocation)
	}
	ctx.Request = ctx.Request.WithContext(services.WithSession(ctx.Request.Context(), sess))
}

// Required ensures the request is authenticated via JWT.
func (a *Auth) Required() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, fail := a.authenticate(ctx)
		if fail != nil {
			utils.Error(ctx, http.StatusUnauthorized, fail.code, fail.message)
			ctx.Abort()
			return
		}
		a.attach(ctx, claims)
		ctx.Next()
	}
}

// Optional attaches a session when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, fail := a.authenticate(ctx); fail == nil {
			a.attach(ctx, claims)
		}
		ctx.Next()
	}
}

// ClaimsFrom returns the claims stored by the auth middleware.
func ClaimsFrom(ctx *gin.Context) (*utils.Claims, bool) {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}
