package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/service"
	"github.com/rocketscienceinc/gomoku-backend/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	handler http.Handler
}

func newClient(t *testing.T) *client {
	t.Helper()

	game := transporttest.NewGame(t, service.Rules{BoardSize: 3, WinLength: 3}, "observer")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &client{handler: New(logger, game.UseCase).Handler()}
}

func (that *client) do(t *testing.T, method, path, player, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if player != "" {
		req.Header.Set(playerHeader, player)
	}

	rec := httptest.NewRecorder()
	that.handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// match queues P1 then P2 and returns their session id.
func (that *client) match(t *testing.T) string {
	t.Helper()

	rec := that.do(t, http.MethodPost, "/queue", "P1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.QueueWaiting, decode[entity.QueueStatus](t, rec).State)

	rec = that.do(t, http.MethodPost, "/queue", "P2", `{"ranked":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[entity.QueueStatus](t, rec)
	require.Equal(t, entity.QueueMatched, status.State)
	require.NotEmpty(t, status.SessionID)

	return status.SessionID
}

func TestPing(t *testing.T) {
	c := newClient(t)

	rec := c.do(t, http.MethodGet, "/ping", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestQueue(t *testing.T) {
	t.Run("Status of an idle player", func(t *testing.T) {
		c := newClient(t)

		rec := c.do(t, http.MethodGet, "/queue", "P1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, entity.QueueIdle, decode[entity.QueueStatus](t, rec).State)
	})

	t.Run("Waiting player reports position and wait", func(t *testing.T) {
		c := newClient(t)
		c.do(t, http.MethodPost, "/queue", "P1", "")

		rec := c.do(t, http.MethodGet, "/queue", "P1", "")

		body := decode[map[string]any](t, rec)
		assert.Equal(t, "waiting", body["state"])
		assert.InDelta(t, 1, body["position"], 0)
		assert.InDelta(t, 8, body["estimated_wait_sec"], 0)
	})

	t.Run("Joining twice conflicts", func(t *testing.T) {
		c := newClient(t)
		c.do(t, http.MethodPost, "/queue", "P1", "")

		rec := c.do(t, http.MethodPost, "/queue", "P1", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_queued", decode[errorResponse](t, rec).Error)
	})

	t.Run("Cancel removes the entry once", func(t *testing.T) {
		c := newClient(t)
		c.do(t, http.MethodPost, "/queue", "P1", "")

		first := c.do(t, http.MethodDelete, "/queue", "P1", "")
		second := c.do(t, http.MethodDelete, "/queue", "P1", "")

		assert.True(t, decode[cancelResponse](t, first).Cancelled)
		assert.False(t, decode[cancelResponse](t, second).Cancelled)
	})

	t.Run("Chunked empty body joins the casual queue", func(t *testing.T) {
		c := newClient(t)

		req := httptest.NewRequest(http.MethodPost, "/queue", strings.NewReader(""))
		req.ContentLength = -1
		req.Header.Set(playerHeader, "P1")
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, entity.QueueWaiting, decode[entity.QueueStatus](t, rec).State)
	})

	t.Run("Malformed body is rejected", func(t *testing.T) {
		c := newClient(t)

		rec := c.do(t, http.MethodPost, "/queue", "P1", `{"ranked":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_input", decode[errorResponse](t, rec).Error)
	})

	t.Run("Missing identity", func(t *testing.T) {
		c := newClient(t)

		rec := c.do(t, http.MethodPost, "/queue", "", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_input", decode[errorResponse](t, rec).Error)
	})

	t.Run("Identity from the session cookie", func(t *testing.T) {
		c := newClient(t)

		req := httptest.NewRequest(http.MethodPost, "/queue", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "P9"})
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, entity.QueueWaiting, decode[entity.QueueStatus](t, rec).State)
	})
}

func TestGame(t *testing.T) {
	// Given: a matched 3x3 session with three-in-a-row rules
	c := newClient(t)
	sessionID := c.match(t)
	base := "/sessions/" + sessionID

	t.Run("Rejections map to client errors", func(t *testing.T) {
		rec := c.do(t, http.MethodPost, base+"/moves", "P2", `{"row":0,"col":0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "not_your_turn", decode[errorResponse](t, rec).Error)

		rec = c.do(t, http.MethodPost, base+"/moves", "P1", `{"row":3,"col":0}`)
		assert.Equal(t, "out_of_bounds", decode[errorResponse](t, rec).Error)

		rec = c.do(t, http.MethodPost, base+"/moves", "P1", `{"row":0}`)
		assert.Equal(t, "invalid_input", decode[errorResponse](t, rec).Error)

		rec = c.do(t, http.MethodPost, base+"/moves", "P3", `{"row":0,"col":0}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = c.do(t, http.MethodGet, "/sessions/missing", "P1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Playing to a win", func(t *testing.T) {
		// When: A takes the top row while B plays the middle one
		moves := []struct {
			player string
			body   string
		}{
			{"P1", `{"row":0,"col":0}`},
			{"P2", `{"row":1,"col":0}`},
			{"P1", `{"row":0,"col":1}`},
			{"P2", `{"row":1,"col":1}`},
			{"P1", `{"row":0,"col":2}`},
		}

		var last moveResponse
		for _, move := range moves {
			rec := c.do(t, http.MethodPost, base+"/moves", move.player, move.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			last = decode[moveResponse](t, rec)
		}

		// Then: the last move ends the game with the winning line
		assert.Equal(t, entity.StatusAWon, last.Session.Status)
		assert.Equal(t, 4, last.Move.Seq)
		assert.Equal(t, []entity.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}, last.Session.WinningLine)

		rec := c.do(t, http.MethodGet, base, "observer", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "AAABB....", decode[entity.Session](t, rec).Board.String())

		rec = c.do(t, http.MethodPost, base+"/moves", "P2", `{"row":2,"col":2}`)
		assert.Equal(t, "game_over", decode[errorResponse](t, rec).Error)
	})

	t.Run("Moves resync after a sequence number", func(t *testing.T) {
		rec := c.do(t, http.MethodGet, base+"/moves?after=2", "P2", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[movesResponse](t, rec)
		require.Len(t, body.Moves, 2)
		assert.Equal(t, 3, body.Moves[0].Seq)
		assert.Equal(t, 4, body.Moves[1].Seq)

		rec = c.do(t, http.MethodGet, base+"/moves?after=x", "P2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Rematch swaps the players", func(t *testing.T) {
		rec := c.do(t, http.MethodPost, base+"/rematch", "P2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, entity.RematchPending, decode[entity.RematchRequest](t, rec).Status)

		rec = c.do(t, http.MethodPost, base+"/rematch/accept", "P2", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "own_rematch", decode[errorResponse](t, rec).Error)

		rec = c.do(t, http.MethodPost, base+"/rematch/accept", "P1", "")
		require.Equal(t, http.StatusCreated, rec.Code)

		next := decode[entity.Session](t, rec)
		assert.Equal(t, "P2", next.PlayerA)
		assert.Equal(t, "P1", next.PlayerB)
		assert.Equal(t, entity.StatusInProgress, next.Status)
	})
}

func TestResign(t *testing.T) {
	c := newClient(t)
	sessionID := c.match(t)

	rec := c.do(t, http.MethodPost, "/sessions/"+sessionID+"/resign", "P1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	session := decode[entity.Session](t, rec)
	assert.Equal(t, entity.StatusBWon, session.Status)
	assert.Equal(t, entity.EndReasonResign, session.EndReason)
	assert.Equal(t, "P1", session.ForfeitedBy)
}

func TestHistory(t *testing.T) {
	c := newClient(t)

	// the transport test engine runs without an archive
	rec := c.do(t, http.MethodGet, "/history?limit=5", "P1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]entity.Session](t, rec))

	rec = c.do(t, http.MethodGet, "/history?limit=many", "P1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvites(t *testing.T) {
	t.Run("Guest joins by code and both players share the session", func(t *testing.T) {
		c := newClient(t)

		// Given: P1 created an invite
		rec := c.do(t, http.MethodPost, "/invites", "P1", "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		invite := decode[entity.Invite](t, rec)
		require.Len(t, invite.Code, entity.InviteCodeLength)

		// When: P2 joins with the code typed in lower case
		rec = c.do(t, http.MethodPost, "/invites/join", "P2", `{"code":"`+strings.ToLower(invite.Code)+`"}`)

		// Then: a session starts with the host moving first
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		joined := decode[entity.Invite](t, rec)
		require.NotEmpty(t, joined.SessionID)
		assert.Equal(t, "P2", joined.GuestID)

		rec = c.do(t, http.MethodGet, "/sessions/"+joined.SessionID, "P1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		session := decode[entity.Session](t, rec)
		assert.Equal(t, "P1", session.PlayerA)
		assert.Equal(t, "P1", session.CurrentTurn)

		// And: the host joining again gets the same session back
		rec = c.do(t, http.MethodPost, "/invites/join", "P1", `{"code":"`+invite.Code+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, joined.SessionID, decode[entity.Invite](t, rec).SessionID)
	})

	t.Run("Used code is refused to a stranger", func(t *testing.T) {
		c := newClient(t)

		// Given: an invite P2 already used
		invite := decode[entity.Invite](t, c.do(t, http.MethodPost, "/invites", "P1", `{"ranked":false}`))
		rec := c.do(t, http.MethodPost, "/invites/join", "P2", `{"code":"`+invite.Code+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		// When: P3 tries the same code
		rec = c.do(t, http.MethodPost, "/invites/join", "P3", `{"code":"`+invite.Code+`"}`)

		// Then: it is forbidden
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "invite_taken", decode[errorResponse](t, rec).Error)
	})

	t.Run("Lookup reports the invite state", func(t *testing.T) {
		c := newClient(t)
		invite := decode[entity.Invite](t, c.do(t, http.MethodPost, "/invites", "P1", ""))

		rec := c.do(t, http.MethodGet, "/invites/"+invite.Code, "P2", "")

		require.Equal(t, http.StatusOK, rec.Code)
		lookup := decode[entity.InviteLookup](t, rec)
		assert.True(t, lookup.Exists)
		assert.Equal(t, entity.InviteWaiting, lookup.Status)
		assert.Equal(t, "P1", lookup.HostID)
	})

	t.Run("Unknown codes", func(t *testing.T) {
		c := newClient(t)

		rec := c.do(t, http.MethodGet, "/invites/NOSUCHCODE", "P2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[entity.InviteLookup](t, rec).Exists)

		rec = c.do(t, http.MethodPost, "/invites/join", "P2", `{"code":"NOSUCHCODE"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = c.do(t, http.MethodPost, "/invites/join", "P2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Host in a game cannot create an invite", func(t *testing.T) {
		c := newClient(t)
		c.match(t)

		rec := c.do(t, http.MethodPost, "/invites", "P1", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_in_game", decode[errorResponse](t, rec).Error)
	})
}
