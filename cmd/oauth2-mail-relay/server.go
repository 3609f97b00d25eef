package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrale/oauth2-mail-relay/internal/graph"
	"github.com/wrale/oauth2-mail-relay/internal/state"
	"github.com/wrale/oauth2-mail-relay/internal/tokens"
)

// authorizer builds the provider consent URL for the authorization-code
// flow. Satisfied by *msauth.Acquirer.
type authorizer interface {
	AuthCodeURL(state string) string
}

// mailSender delivers an outbound message. Satisfied by *graph.Sender.
type mailSender interface {
	Send(ctx context.Context, accessToken string, msg *graph.Message) (string, error)
}

type server struct {
	cfg     Config
	router  *chi.Mux
	manager *tokens.Manager
	auth    authorizer
	state   *state.Manager
	sender  mailSender
}

func newServer(cfg Config, manager *tokens.Manager, auth authorizer, stateManager *state.Manager, sender mailSender) *server {
	srv := &server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		manager: manager,
		auth:    auth,
		state:   stateManager,
		sender:  sender,
	}

	// Set up middleware
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Register routes
	srv.routes()

	return srv
}

func (s *server) routes() {
	// Health check endpoint
	s.router.Get("/health", s.handleHealth())

	// Authorization-code flow endpoints
	s.router.Get("/authorize", s.handleAuthorize())
	s.router.Get("/oauth/redirect", s.handleOAuthRedirect())

	// Mail endpoints
	s.router.Post("/send-email", s.handleSendEmail())
	s.router.Get("/token-status", s.handleTokenStatus())
}

// checkHealth verifies all components backing the server
func (s *server) checkHealth(ctx context.Context) error {
	if err := s.manager.CheckHealth(ctx); err != nil {
		return err
	}
	if err := s.state.CheckHealth(ctx); err != nil {
		return err
	}
	return nil
}
