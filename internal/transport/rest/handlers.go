package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

type joinRequest struct {
	Ranked bool `json:"ranked"`
}

type inviteJoinRequest struct {
	Code string `json:"code"`
}

type moveRequest struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type moveResponse struct {
	Session *entity.Session `json:"session"`
	Move    *entity.Move    `json:"move"`
}

type movesResponse struct {
	SessionID string        `json:"session_id"`
	Moves     []entity.Move `json:"moves"`
}

func (that *Server) joinQueue(w http.ResponseWriter, r *http.Request) {
	var body joinRequest
	if err := decodeBody(r, &body); err != nil {
		that.writeError(w, r, err)
		return
	}

	status, err := that.game.JoinQueue(r.Context(), playerID(r), entity.Preferences{Ranked: body.Ranked})
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, status)
}

func (that *Server) leaveQueue(w http.ResponseWriter, r *http.Request) {
	cancelled, err := that.game.LeaveQueue(r.Context(), playerID(r))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, cancelResponse{Cancelled: cancelled})
}

func (that *Server) queueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := that.game.QueueStatus(r.Context(), playerID(r))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, status)
}

func (that *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	var body joinRequest
	if err := decodeBody(r, &body); err != nil {
		that.writeError(w, r, err)
		return
	}

	invite, err := that.game.CreateInvite(r.Context(), playerID(r), entity.Preferences{Ranked: body.Ranked})
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, invite)
}

// joinInvite answers with the invite; session_id is set once both players are in.
func (that *Server) joinInvite(w http.ResponseWriter, r *http.Request) {
	var body inviteJoinRequest
	if err := decodeBody(r, &body); err != nil {
		that.writeError(w, r, err)
		return
	}

	invite, err := that.game.JoinInvite(r.Context(), playerID(r), body.Code)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, invite)
}

func (that *Server) lookupInvite(w http.ResponseWriter, r *http.Request) {
	lookup, err := that.game.LookupInvite(r.Context(), playerID(r), r.PathValue("code"))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, lookup)
}

func (that *Server) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			that.writeError(w, r, fmt.Errorf("%w: limit must be an integer", apperror.ErrInvalidInput))
			return
		}
		limit = parsed
	}

	sessions, err := that.game.History(r.Context(), playerID(r), limit)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, sessions)
}

func (that *Server) getState(w http.ResponseWriter, r *http.Request) {
	session, err := that.game.GetState(r.Context(), r.PathValue("id"), playerID(r))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, session)
}

// listMoves serves resync: moves with a sequence number above ?after=N.
func (that *Server) listMoves(w http.ResponseWriter, r *http.Request) {
	after := -1
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			that.writeError(w, r, fmt.Errorf("%w: after must be an integer", apperror.ErrInvalidInput))
			return
		}
		after = parsed
	}

	sessionID := r.PathValue("id")
	moves, err := that.game.Moves(r.Context(), sessionID, playerID(r), after)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, movesResponse{SessionID: sessionID, Moves: moves})
}

func (that *Server) makeMove(w http.ResponseWriter, r *http.Request) {
	var body moveRequest
	if err := decodeBody(r, &body); err != nil {
		that.writeError(w, r, err)
		return
	}

	if body.Row == nil || body.Col == nil {
		that.writeError(w, r, fmt.Errorf("%w: row and col are required", apperror.ErrInvalidInput))
		return
	}

	session, move, err := that.game.MakeMove(r.Context(), r.PathValue("id"), playerID(r), *body.Row, *body.Col)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, moveResponse{Session: session, Move: move})
}

func (that *Server) resign(w http.ResponseWriter, r *http.Request) {
	session, err := that.game.Resign(r.Context(), r.PathValue("id"), playerID(r))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, session)
}

func (that *Server) requestRematch(w http.ResponseWriter, r *http.Request) {
	request, err := that.game.RequestRematch(r.Context(), r.PathValue("id"), playerID(r))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, request)
}

func (that *Server) acceptRematch(w http.ResponseWriter, r *http.Request) {
	session, err := that.game.AcceptRematch(r.Context(), r.PathValue("id"), playerID(r))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, session)
}
