package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodlog/services"
	"github.com/cppla/moodlog/utils"
)

// MoodController exposes the mood gateway. Reads always succeed; without a
// session they answer with the sample dataset.
type MoodController struct {
	moods *services.MoodService
}

func NewMoodController(moods *services.MoodService) *MoodController {
	return &MoodController{moods: moods}
}

// Save records today's mood of the session user.
func (m *MoodController) Save(ctx *gin.Context) {
	var req struct {
		Rating  *int   `json:"rating" binding:"required"`
		Details string `json:"details"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid request payload")
		return
	}

	entry, err := m.moods.SaveMoodEntry(ctx.Request.Context(), *req.Rating, req.Details)
	switch {
	case errors.Is(err, services.ErrInvalidRating):
		utils.Error(ctx, http.StatusBadRequest, utils.CodeInvalidRating, err.Error())
	case errors.Is(err, services.ErrNoSession):
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeNoSession, "login required to save moods")
	case errors.Is(err, services.ErrWriteFailed):
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeNotPersisted, "mood entry kept locally, backend unavailable")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeInternal, "failed to save mood entry")
	default:
		utils.Created(ctx, entry)
	}
}

// Today returns today's entry or null.
func (m *MoodController) Today(ctx *gin.Context) {
	utils.Success(ctx, m.moods.GetTodayMoodEntry(ctx.Request.Context()))
}

// TodayDetailed returns today's premium submissions.
func (m *MoodController) TodayDetailed(ctx *gin.Context) {
	utils.Success(ctx, m.moods.GetTodayDetailedMoodEntries(ctx.Request.Context()))
}

// Recent returns the entries of the last ?days= days (default 7).
func (m *MoodController) Recent(ctx *gin.Context) {
	utils.Success(ctx, m.moods.GetRecentMoodEntries(ctx.Request.Context(), daysParam(ctx)))
}

func (m *MoodController) Streak(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"streak": m.moods.GetMoodStreak(ctx.Request.Context())})
}

func (m *MoodController) WeeklyAverage(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"average": m.moods.GetWeeklyAverageMood(ctx.Request.Context())})
}

// Week returns Sunday through today.
func (m *MoodController) Week(ctx *gin.Context) {
	utils.Success(ctx, m.moods.GetCurrentWeekMoodEntries(ctx.Request.Context()))
}

func (m *MoodController) Average(ctx *gin.Context) {
	days := daysParam(ctx)
	utils.Success(ctx, gin.H{"days": days, "average": m.moods.GetAverageMood(ctx.Request.Context(), days)})
}

func (m *MoodController) Latest(ctx *gin.Context) {
	utils.Success(ctx, m.moods.GetMostRecentMoodEntry(ctx.Request.Context()))
}

// Pending returns the last submission that could not be saved.
func (m *MoodController) Pending(ctx *gin.Context) {
	entry, ok := m.moods.PendingMoodEntry(ctx.Request.Context())
	if !ok {
		utils.Success(ctx, gin.H{"pending": false})
		return
	}
	utils.Success(ctx, gin.H{"pending": true, "entry": entry})
}

func daysParam(ctx *gin.Context) int {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", ""))
	if err != nil || days <= 0 {
		return services.DefaultRecentDays
	}
	if days > 366 {
		return 366
	}
	return days
}
