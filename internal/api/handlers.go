package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/cache"
	"github.com/gramwatch/gramwatch/internal/models"
)

const (
	ownerHeader     = "X-Owner-ID"
	insightCacheTTL = 5 * time.Minute
	insightDays     = 30
)

// submitJobRequest is the body of POST /api/accounts/:id/jobs
type submitJobRequest struct {
	Type             string `json:"type" binding:"required"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	VerificationCode string `json:"verification_code"`
	AllowManual      bool   `json:"allow_manual"`
}

var submittableTypes = map[string]bool{
	models.JobTypeLogin:         true,
	models.JobTypeReconnect:     true,
	models.JobTypeSyncProfile:   true,
	models.JobTypeSyncFollowers: true,
	models.JobTypeSyncMedia:     true,
	models.JobTypeDeriveMetrics: true,
}

// loadOwnedAccount resolves the :id path parameter and enforces that the
// caller owns the account. Writes the error response itself and returns
// nil when the request must not proceed.
func (r *Router) loadOwnedAccount(c *gin.Context) *models.TrackedAccount {
	ownerID := c.GetHeader(ownerHeader)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing owner identity"})
		return nil
	}

	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return nil
	}

	account, err := r.accounts.GetByID(c.Request.Context(), accountID)
	if err != nil {
		r.logger.Error("Failed to load account", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return nil
	}
	if account.OwnerID != ownerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "account belongs to another owner"})
		return nil
	}
	return account
}

// submitJob enqueues one job for an owned account
func (r *Router) submitJob(c *gin.Context) {
	account := r.loadOwnedAccount(c)
	if account == nil {
		return
	}

	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !submittableTypes[req.Type] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown job type %q", req.Type)})
		return
	}

	job := &models.Job{
		ID:              uuid.NewString(),
		TargetAccountID: account.ID,
		OwnerID:         account.OwnerID,
		Type:            req.Type,
		Status:          models.JobStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if req.Type == models.JobTypeLogin || req.Type == models.JobTypeReconnect {
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login jobs require username and password"})
			return
		}
		job.Metadata.Login = &models.LoginParams{
			Username:         req.Username,
			Password:         req.Password,
			VerificationCode: req.VerificationCode,
			AllowManual:      req.AllowManual,
		}
	}

	if err := r.jobs.Create(c.Request.Context(), job); err != nil {
		r.logger.Error("Failed to enqueue job", zap.String("job_type", req.Type), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// jobView is the external representation of a job; credentials in the
// metadata are never echoed back
type jobView struct {
	ID              string     `json:"id"`
	TargetAccountID int64      `json:"target_account_id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	ProcessedItems  int        `json:"processed_items"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// getJob returns the status of a submitted job
func (r *Router) getJob(c *gin.Context) {
	ownerID := c.GetHeader(ownerHeader)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing owner identity"})
		return
	}

	job, err := r.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.logger.Error("Failed to load job", zap.String("job_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.OwnerID != ownerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "job belongs to another owner"})
		return
	}

	c.JSON(http.StatusOK, jobView{
		ID:              job.ID,
		TargetAccountID: job.TargetAccountID,
		Type:            job.Type,
		Status:          job.Status,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		ProcessedItems:  job.ProcessedItems,
		ErrorMessage:    job.ErrorMessage,
	})
}

// getInsights returns the recent daily insights, served from cache when
// fresh
func (r *Router) getInsights(c *gin.Context) {
	account := r.loadOwnedAccount(c)
	if account == nil {
		return
	}
	ctx := c.Request.Context()

	cacheKey := fmt.Sprintf("insights:daily:%d", account.ID)
	var cached []*models.DailyInsight
	if err := r.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"insights": cached, "cached": true})
		return
	} else if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Insight cache read failed", zap.Error(err))
	}

	insights, err := r.insights.ListDaily(ctx, account.ID, insightDays)
	if err != nil {
		r.logger.Error("Failed to load insights", zap.Int64("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := r.cache.SetJSON(ctx, cacheKey, insights, insightCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Insight cache write failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights, "cached": false})
}

// getHashtagStats returns the per-hashtag aggregates, served from cache
// when fresh
func (r *Router) getHashtagStats(c *gin.Context) {
	account := r.loadOwnedAccount(c)
	if account == nil {
		return
	}
	ctx := c.Request.Context()

	cacheKey := fmt.Sprintf("insights:hashtags:%d", account.ID)
	var cached []*models.HashtagStat
	if err := r.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"hashtags": cached, "cached": true})
		return
	} else if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Hashtag cache read failed", zap.Error(err))
	}

	stats, err := r.insights.ListHashtagStats(ctx, account.ID)
	if err != nil {
		r.logger.Error("Failed to load hashtag stats", zap.Int64("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := r.cache.SetJSON(ctx, cacheKey, stats, insightCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.Warn("Hashtag cache write failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"hashtags": stats, "cached": false})
}
