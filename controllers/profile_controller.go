package controllers

import (
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/moodlog/middleware"
	"github.com/cppla/moodlog/repository"
	"github.com/cppla/moodlog/utils"
)

const maxNameLength = 64

// ProfileController reads and edits the name and timezone of the authenticated user.
type ProfileController struct {
	users    *repository.UserRepository
	secret   string
	tokenTTL time.Duration
}

func NewProfileController(users *repository.UserRepository, secret string, tokenTTL time.Duration) *ProfileController {
	return &ProfileController{users: users, secret: secret, tokenTTL: tokenTTL}
}

// Get returns the profile of the authenticated user.
func (p *ProfileController) Get(ctx *gin.Context) {
	user, err := p.users.FindByID(ctx.Request.Context(), ctx.GetString(middleware.ContextUserIDKey))
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, userResponse(*user))
}

// Update changes first name, last name and timezone. Omitted fields are kept.
// The timezone travels in the token, so a changed timezone comes back with a new token.
func (p *ProfileController) Update(ctx *gin.Context) {
	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Timezone  *string `json:"timezone"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid request payload")
		return
	}

	first, ok1 := cleanName(req.FirstName)
	last, ok2 := cleanName(req.LastName)
	if !ok1 || !ok2 {
		utils.Error(ctx, http.StatusBadRequest, 40006, "names must be at most 64 characters")
		return
	}
	update := repository.ProfileUpdate{FirstName: first, LastName: last, Timezone: req.Timezone}
	if req.Timezone != nil && *req.Timezone != "" {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40004, "unknown timezone")
			return
		}
	}

	userID := ctx.GetString(middleware.ContextUserIDKey)
	user, err := p.users.UpdateProfile(ctx.Request.Context(), userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Logger.Error("update profile failed", zap.String("user_id", userID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to update profile")
		return
	}

	resp := gin.H{"user": userResponse(*user)}
	if req.Timezone != nil {
		token, err := utils.GenerateToken(p.secret, user.ID, user.Username, user.Timezone, p.tokenTTL)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
			return
		}
		resp["token"] = token
	}
	utils.Success(ctx, resp)
}

// cleanName strips markup from name and reports false when it is too long.
func cleanName(name *string) (*string, bool) {
	if name == nil {
		return nil, true
	}
	clean := utils.SanitizeText(*name)
	if utf8.RuneCountInString(clean) > maxNameLength {
		return nil, false
	}
	return &clean, true
}
