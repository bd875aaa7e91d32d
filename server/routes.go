package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"video-branding-worker/dto"
	"video-branding-worker/repository"
)

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

// addJobRoutes exposes read-only job status for polling clients.
func addJobRoutes(r *gin.Engine, repo repository.JobRepository, journal repository.FailureJournal) {
	jobs := r.Group("/jobs")
	jobs.GET("/:id", func(c *gin.Context) {
		id, ok := parseJobId(c)
		if !ok {
			return
		}
		job, err := repo.FindJobById(c.Request.Context(), id)
		if errors.Is(err, repository.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("job_id", id.String()).Msg("failed to find job")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, dto.JobStatusResponse{
			JobId:        job.ID,
			Status:       job.Status.String(),
			OutputRef:    job.OutputRef,
			ErrorMessage: job.ErrorMessage,
		})
	})

	jobs.GET("/:id/failure", func(c *gin.Context) {
		id, ok := parseJobId(c)
		if !ok {
			return
		}
		record, err := journal.Get(c.Request.Context(), id)
		if errors.Is(err, repository.ErrFailureNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no failure recorded"})
			return
		}
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("job_id", id.String()).Msg("failed to read failure journal")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, record)
	})
}

func parseJobId(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return uuid.Nil, false
	}
	return id, true
}

// withLogger attaches the process logger to every request context.
func withLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func newRouter(logger zerolog.Logger, repo repository.JobRepository, journal repository.FailureJournal) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), withLogger(logger))
	addHealth(r)
	addJobRoutes(r, repo, journal)
	return r
}
