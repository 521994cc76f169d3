package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/rice-eval/internal/config"
	"github.com/stellarlinkco/rice-eval/internal/evaluation"
	"github.com/stellarlinkco/rice-eval/internal/store"
)

// Runner evaluates one results directory end to end.
type Runner interface {
	Evaluate(ctx context.Context, resultsDir string) evaluation.Result
}

type Server struct {
	router *gin.Engine
	store  store.Store
	runner Runner
	config *config.Config
}

func NewServer(cfg *config.Config, st store.Store, runner Runner) (*Server, error) {
	r := gin.New()
	s := &Server{
		router: r,
		store:  st,
		runner: runner,
		config: cfg,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
