package websocket

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

var errUnknownAction = fmt.Errorf("%w: unknown action", apperror.ErrInvalidInput)

func (that *Server) handleJoinQueue(ctx context.Context, conn *connection, msg *Message) error {
	var payload JoinPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	status, err := that.game.JoinQueue(ctx, conn.playerID, entity.Preferences{Ranked: payload.Ranked})
	if err != nil {
		return err
	}

	// matched on join: the queue.matched event may still be in flight
	if status.SessionID != "" {
		that.registry.Subscribe(entity.SessionTopic(status.SessionID), conn.outbox)
	}

	return that.reply(conn, msg.Action, status)
}

func (that *Server) handleCancelQueue(ctx context.Context, conn *connection, msg *Message) error {
	cancelled, err := that.game.LeaveQueue(ctx, conn.playerID)
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, CancelResponse{Cancelled: cancelled})
}

func (that *Server) handleQueueStatus(ctx context.Context, conn *connection, msg *Message) error {
	status, err := that.game.QueueStatus(ctx, conn.playerID)
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, status)
}

func (that *Server) handleCreateInvite(ctx context.Context, conn *connection, msg *Message) error {
	var payload JoinPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	invite, err := that.game.CreateInvite(ctx, conn.playerID, entity.Preferences{Ranked: payload.Ranked})
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, invite)
}

func (that *Server) handleJoinInvite(ctx context.Context, conn *connection, msg *Message) error {
	var payload InvitePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	invite, err := that.game.JoinInvite(ctx, conn.playerID, payload.Code)
	if err != nil {
		return err
	}

	if invite.SessionID != "" {
		that.registry.Subscribe(entity.SessionTopic(invite.SessionID), conn.outbox)
	}

	return that.reply(conn, msg.Action, invite)
}

func (that *Server) handleLookupInvite(ctx context.Context, conn *connection, msg *Message) error {
	var payload InvitePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	lookup, err := that.game.LookupInvite(ctx, conn.playerID, payload.Code)
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, lookup)
}

func (that *Server) handleGameState(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := sessionFrom(msg)
	if err != nil {
		return err
	}

	session, err := that.game.GetState(ctx, payload.SessionID, conn.playerID)
	if err != nil {
		return err
	}

	if session.IsParticipant(conn.playerID) {
		that.registry.Subscribe(entity.SessionTopic(session.ID), conn.outbox)
	}

	return that.reply(conn, msg.Action, session)
}

func (that *Server) handleMove(ctx context.Context, conn *connection, msg *Message) error {
	var payload MovePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	if payload.SessionID == "" || payload.Row == nil || payload.Col == nil {
		return fmt.Errorf("%w: session_id, row and col are required", apperror.ErrInvalidInput)
	}

	session, move, err := that.game.MakeMove(ctx, payload.SessionID, conn.playerID, *payload.Row, *payload.Col)
	if err != nil {
		return err
	}

	that.registry.Subscribe(entity.SessionTopic(session.ID), conn.outbox)

	return that.reply(conn, msg.Action, MoveResponse{Session: session, Move: move})
}

func (that *Server) handleMoves(ctx context.Context, conn *connection, msg *Message) error {
	var payload MovesPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	if payload.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", apperror.ErrInvalidInput)
	}

	after := -1
	if payload.After != nil {
		after = *payload.After
	}

	moves, err := that.game.Moves(ctx, payload.SessionID, conn.playerID, after)
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, MovesResponse{SessionID: payload.SessionID, Moves: moves})
}

func (that *Server) handleResign(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := sessionFrom(msg)
	if err != nil {
		return err
	}

	session, err := that.game.Resign(ctx, payload.SessionID, conn.playerID)
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, session)
}

// handleWatch attaches the connection to a session topic after the same
// read check get_state applies, so only participants and observers watch.
func (that *Server) handleWatch(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := sessionFrom(msg)
	if err != nil {
		return err
	}

	if _, err = that.game.GetState(ctx, payload.SessionID, conn.playerID); err != nil {
		return err
	}

	topic := entity.SessionTopic(payload.SessionID)
	that.registry.Subscribe(topic, conn.outbox)

	return that.reply(conn, msg.Action, WatchResponse{Topic: topic})
}

func (that *Server) handleUnwatch(_ context.Context, conn *connection, msg *Message) error {
	payload, err := sessionFrom(msg)
	if err != nil {
		return err
	}

	topic := entity.SessionTopic(payload.SessionID)
	that.registry.Unsubscribe(topic, conn.id)

	return that.reply(conn, msg.Action, WatchResponse{Topic: topic})
}

func (that *Server) handleRematchRequest(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := sessionFrom(msg)
	if err != nil {
		return err
	}

	request, err := that.game.RequestRematch(ctx, payload.SessionID, conn.playerID)
	if err != nil {
		return err
	}

	return that.reply(conn, msg.Action, request)
}

func (that *Server) handleRematchAccept(ctx context.Context, conn *connection, msg *Message) error {
	payload, err := sessionFrom(msg)
	if err != nil {
		return err
	}

	session, err := that.game.AcceptRematch(ctx, payload.SessionID, conn.playerID)
	if err != nil {
		return err
	}

	that.registry.Subscribe(entity.SessionTopic(session.ID), conn.outbox)

	return that.reply(conn, msg.Action, session)
}

func sessionFrom(msg *Message) (SessionPayload, error) {
	var payload SessionPayload
	if err := decodePayload(msg, &payload); err != nil {
		return SessionPayload{}, err
	}

	if payload.SessionID == "" {
		return SessionPayload{}, fmt.Errorf("%w: session_id is required", apperror.ErrInvalidInput)
	}

	return payload, nil
}
