package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/notifier"
	"github.com/rocketscienceinc/gomoku-backend/internal/pkg"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

const (
	sessionCookie = "user_session"
	playerHeader  = "X-Player-ID"

	shutdownTimeout = 5 * time.Second
)

type handler func(ctx context.Context, conn *connection, message *Message) error

type Server struct {
	logger     *slog.Logger
	game       usecase.GameUseCase
	registry   *notifier.Registry
	upgrader   websocket.Upgrader
	outboxSize int
	handlers   map[string]handler
}

func New(logger *slog.Logger, game usecase.GameUseCase, registry *notifier.Registry, outboxSize int) *Server {
	if outboxSize <= 0 {
		outboxSize = 64
	}

	server := &Server{
		logger:   logger.With("component", "websocket"),
		game:     game,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		outboxSize: outboxSize,
		handlers:   make(map[string]handler),
	}

	server.handlers[actionQueueJoin] = server.handleJoinQueue
	server.handlers[actionQueueCancel] = server.handleCancelQueue
	server.handlers[actionQueueStatus] = server.handleQueueStatus
	server.handlers[actionInviteCreate] = server.handleCreateInvite
	server.handlers[actionInviteJoin] = server.handleJoinInvite
	server.handlers[actionInviteLookup] = server.handleLookupInvite
	server.handlers[actionGameState] = server.handleGameState
	server.handlers[actionGameMove] = server.handleMove
	server.handlers[actionGameMoves] = server.handleMoves
	server.handlers[actionGameResign] = server.handleResign
	server.handlers[actionGameWatch] = server.handleWatch
	server.handlers[actionGameUnwatch] = server.handleUnwatch
	server.handlers[actionRematchRequest] = server.handleRematchRequest
	server.handlers[actionRematchAccept] = server.handleRematchAccept

	return server
}

func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})
	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	header := http.Header{}
	playerID := that.playerIdentity(req, header, log)

	ws, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(pkg.GenerateConnectionID(), playerID, ws, that.outboxSize)
	log.Info("WebSocket connection established", "player", playerID, "connection", conn.id)

	that.registry.Subscribe(entity.TopicLobby, conn.outbox)
	that.registry.Subscribe(entity.PlayerTopic(playerID), conn.outbox)
	that.resume(ctx, conn)

	go that.writePump(conn)
	that.readPump(ctx, conn)
}

// playerIdentity reads the opaque identity from the header or the session
// cookie, issuing a new cookie when neither is present.
func (that *Server) playerIdentity(req *http.Request, header http.Header, log *slog.Logger) string {
	if id := req.Header.Get(playerHeader); id != "" {
		return id
	}

	if cookie, err := req.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		log.Info("session cookie found", "cookie", cookie.Value)
		return cookie.Value
	}

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    pkg.GenerateSessionID(),
		Expires:  time.Now().Add(24 * time.Hour),
		Path:     "/",
		HttpOnly: true,
	}
	header.Add("Set-Cookie", cookie.String())
	log.Info("session cookie not found, new one created", "cookie", cookie.Value)

	return cookie.Value
}

// resume greets the client and reattaches it to a game it is already in.
func (that *Server) resume(ctx context.Context, conn *connection) {
	_ = that.reply(conn, actionConnected, ConnectedPayload{PlayerID: conn.playerID, ConnectionID: conn.id})

	status, err := that.game.QueueStatus(ctx, conn.playerID)
	if err != nil {
		that.logger.Warn("failed to resume player", "player", conn.playerID, "error", err)
		return
	}

	if status.SessionID != "" {
		that.registry.Subscribe(entity.SessionTopic(status.SessionID), conn.outbox)
	}

	_ = that.reply(conn, actionQueueStatus, status)
}

// readPump - processes messages from the client until it disconnects.
func (that *Server) readPump(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readPump", "connection", conn.id)

	defer func() {
		topics := that.registry.UnsubscribeAll(conn.id)
		conn.stopWriting()
		_ = conn.ws.Close()
		log.Info("WebSocket connection closed", "player", conn.playerID, "topics", len(topics))
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message Message
		if err := conn.ws.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		handle, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			that.replyError(conn, message.Action, errUnknownAction)
			continue
		}

		if err := handle(ctx, conn, &message); err != nil {
			if errors.Is(err, errConnectionClosed) {
				return
			}
			that.replyError(conn, message.Action, err)
		}
	}
}

// writePump is the only writer of the socket. It forwards replies and
// subscribed events and keeps the connection alive with pings.
func (that *Server) writePump(conn *connection) {
	log := that.logger.With("method", "writePump", "connection", conn.id)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.markClosed()
		_ = conn.ws.Close()
		// the pump may have joined a session topic after readPump detached
		that.registry.UnsubscribeAll(conn.id)
	}()

	for {
		select {
		case data := <-conn.send:
			if err := conn.write(websocket.TextMessage, data); err != nil {
				log.Warn("failed to write reply", "error", err)
				return
			}
		case event := <-conn.outbox.Events():
			if sessionID := referencedSession(conn.playerID, event); sessionID != "" {
				that.registry.Subscribe(entity.SessionTopic(sessionID), conn.outbox)
			}

			data, err := encodeEvent(event)
			if err != nil {
				log.Error("failed to encode event", "type", event.Type, "error", err)
				continue
			}

			if err = conn.write(websocket.TextMessage, data); err != nil {
				log.Warn("failed to write event", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.stop:
			_ = conn.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (that *Server) reply(conn *connection, action string, payload any) error {
	data, err := encodeMessage(action, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s reply: %w", action, err)
	}

	return conn.enqueue(data)
}

func (that *Server) replyError(conn *connection, action string, err error) {
	payload := errorPayload(action, err)
	if payload.Error == "internal_error" {
		that.logger.Error("error processing message", "action", action, "error", err)
	}

	_ = that.reply(conn, actionError, payload)
}
