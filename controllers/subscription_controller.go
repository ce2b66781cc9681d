package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodlog/middleware"
	"github.com/cppla/moodlog/models"
	"github.com/cppla/moodlog/repository"
	"github.com/cppla/moodlog/utils"
)

// SubscriptionController switches a user between the free and premium tiers.
// Billing happens elsewhere; this only records the outcome.
type SubscriptionController struct {
	users *repository.UserRepository
}

func NewSubscriptionController(users *repository.UserRepository) *SubscriptionController {
	return &SubscriptionController{users: users}
}

// Update sets the tier of the authenticated user.
func (s *SubscriptionController) Update(ctx *gin.Context) {
	var req struct {
		Tier models.Tier `json:"tier" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || !req.Tier.Valid() {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "tier must be free or premium")
		return
	}

	userID := ctx.GetString(middleware.ContextUserIDKey)
	if err := s.users.SetTier(ctx.Request.Context(), userID, req.Tier); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to update subscription")
		return
	}
	utils.Success(ctx, gin.H{"subscription_tier": req.Tier})
}
