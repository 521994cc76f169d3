package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("RICE_EVAL_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("RICE_EVAL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set RICE_EVAL_API_KEY or set RICE_EVAL_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.POST("/evaluations", s.handleStartEvaluation)
	api.GET("/evaluations", s.handleListEvaluations)
	api.GET("/evaluations/:id", s.handleGetEvaluation)

	api.GET("/leaderboard", s.handleGetLeaderboard)

	return nil
}
