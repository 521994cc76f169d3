package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/rice-eval/internal/backend"
	"github.com/stellarlinkco/rice-eval/internal/store"
	"github.com/stellarlinkco/rice-eval/internal/submission"
)

const defaultLeaderboardMetric = "Total Episode Reward"

type evaluationRequest struct {
	ResultsDir string `json:"results_dir"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStartEvaluation(c *gin.Context) {
	if s.runner == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("evaluation runner not configured"))
		return
	}

	var req evaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	resultsDir := strings.TrimSpace(req.ResultsDir)
	if resultsDir == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing results_dir"))
		return
	}

	if strings.HasSuffix(strings.ToLower(resultsDir), ".zip") {
		unpacked, err := submission.Unpack(resultsDir)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		defer os.RemoveAll(unpacked)
		resultsDir = unpacked
	} else if _, err := os.Stat(resultsDir); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("results_dir: %w", err))
		return
	}

	result := s.runner.Evaluate(c.Request.Context(), resultsDir)

	rec := &store.Record{
		ID:         store.NewID(),
		CreatedAt:  time.Now().UTC(),
		ResultsDir: req.ResultsDir,
		Framework:  result.Framework,
		Stage:      result.Stage,
		Success:    result.Success,
		Comment:    result.Comment,
		Metrics:    result.Metrics,
	}
	if s.store != nil {
		if err := s.store.SaveEvaluation(c.Request.Context(), rec); err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	var filter store.Filter
	if f := strings.TrimSpace(c.Query("framework")); f != "" {
		fw, err := backend.ParseFramework(f)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		filter.Framework = fw
	}
	limit, err := parseLimitParam(c.Query("limit"), 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	filter.Limit = limit

	records, err := s.store.ListEvaluations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*store.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleGetEvaluation(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing evaluation id"))
		return
	}

	rec, err := s.store.GetEvaluation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("evaluation %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	metric := strings.TrimSpace(c.Query("metric"))
	if metric == "" {
		metric = defaultLeaderboardMetric
	}
	limit, err := parseLimitParam(c.Query("limit"), 10)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	records, err := s.store.Leaderboard(c.Request.Context(), metric, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*store.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"metric":  metric,
		"entries": records,
	})
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}
