package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *slog.Logger
	game   usecase.GameUseCase
}

func New(logger *slog.Logger, game usecase.GameUseCase) *Server {
	return &Server{
		logger: logger.With("component", "rest"),
		game:   game,
	}
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", pingHandler)

	mux.HandleFunc("POST /queue", that.joinQueue)
	mux.HandleFunc("DELETE /queue", that.leaveQueue)
	mux.HandleFunc("GET /queue", that.queueStatus)

	mux.HandleFunc("POST /invites", that.createInvite)
	mux.HandleFunc("POST /invites/join", that.joinInvite)
	mux.HandleFunc("GET /invites/{code}", that.lookupInvite)

	mux.HandleFunc("GET /history", that.history)

	mux.HandleFunc("GET /sessions/{id}", that.getState)
	mux.HandleFunc("GET /sessions/{id}/moves", that.listMoves)
	mux.HandleFunc("POST /sessions/{id}/moves", that.makeMove)
	mux.HandleFunc("POST /sessions/{id}/resign", that.resign)
	mux.HandleFunc("POST /sessions/{id}/rematch", that.requestRematch)
	mux.HandleFunc("POST /sessions/{id}/rematch/accept", that.acceptRematch)

	return mux
}

// Start - starts HTTP server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown http server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
