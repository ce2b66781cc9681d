package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/moodlog/middleware"
	"github.com/cppla/moodlog/models"
	"github.com/cppla/moodlog/repository"
	"github.com/cppla/moodlog/utils"
)

// AuthController handles local account registration, login and logout.
type AuthController struct {
	users     *repository.UserRepository
	secret    string
	tokenTTL  time.Duration
	blacklist *utils.TokenBlacklist
	guard     *utils.LoginGuard
}

func NewAuthController(users *repository.UserRepository, secret string, tokenTTL time.Duration, blacklist *utils.TokenBlacklist, guard *utils.LoginGuard) *AuthController {
	return &AuthController{users: users, secret: secret, tokenTTL: tokenTTL, blacklist: blacklist, guard: guard}
}

// Register creates a free-tier account and returns a token for it.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
		Timezone string `json:"timezone"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if l := len(req.Username); l < 3 || l > 32 || !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40003, "username must be 3-32 letters, digits, '-' or '_'")
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40004, "unknown timezone")
			return
		}
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		utils.Error(ctx, http.StatusBadRequest, 40005, "password must be at least 8 characters")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Timezone:     req.Timezone,
	}
	if err := a.users.Create(ctx.Request.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			utils.Error(ctx, http.StatusConflict, utils.CodeConflict, "username already exists")
			return
		}
		utils.Logger.Error("create user failed", zap.String("username", user.Username), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(a.secret, user.ID, user.Username, user.Timezone, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Created(ctx, gin.H{"token": token, "user": userResponse(user)})
}

// Login exchanges username and password for a token.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid request payload")
		return
	}

	ip := ctx.ClientIP()
	if a.guard != nil && a.guard.Banned(ctx.Request.Context(), ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42920, "too many failed logins, try again later")
		return
	}

	user, err := a.users.FindByUsername(ctx.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			utils.Logger.Error("find user failed", zap.Error(err))
		}
		if a.guard != nil {
			a.guard.RecordFailure(ctx.Request.Context(), ip)
		}
		utils.Error(ctx, http.StatusUnauthorized, 40109, "invalid username or password")
		return
	}
	if a.guard != nil {
		a.guard.Reset(ctx.Request.Context(), ip)
	}

	token, err := utils.GenerateToken(a.secret, user.ID, user.Username, user.Timezone, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  userResponse(*user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	claims, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "unauthorized")
		return
	}

	expiresAt := time.Now().Add(a.tokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	a.blacklist.Revoke(ctx.Request.Context(), claims.ID, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	userID := ctx.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	user, err := a.users.FindByID(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, userResponse(*user))
}

func validUsername(s string) bool {
	for _, r := range s {
		switch {
		case r == '-' || r == '_':
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":                user.ID,
		"username":          user.Username,
		"email":             user.Email,
		"first_name":        user.FirstName,
		"last_name":         user.LastName,
		"display_name":      user.DisplayName(),
		"subscription_tier": user.SubscriptionTier,
		"timezone":          user.Timezone,
		"created_at":        user.CreatedAt,
	}
}
