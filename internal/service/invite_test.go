package service

import (
	"strings"
	"testing"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchmaker_Invite(t *testing.T) {
	t.Run("Guest joins by code and the host opens", func(t *testing.T) {
		ctx := t.Context()
		store := memory.NewStore()
		events := &recorder{}
		clock := newFakeClock()
		matchmaker := newMatchmaker(store, events, clock)

		// Given: a host created a ranked invite
		invite, err := matchmaker.CreateInvite(ctx, "host", entity.Preferences{Ranked: true})
		require.NoError(t, err)
		assert.Len(t, invite.Code, entity.InviteCodeLength)
		assert.Equal(t, clock.Now().Add(entity.DefaultInviteTTL), invite.ExpiresAt)

		lookup, err := matchmaker.LookupInvite(ctx, invite.Code)
		require.NoError(t, err)
		assert.Equal(t, entity.InviteLookup{Exists: true, Status: entity.InviteWaiting, HostID: "host"}, lookup)

		// When: a friend types the code in lower case
		joined, err := matchmaker.JoinByCode(ctx, " "+strings.ToLower(invite.Code)+" ", "friend")
		require.NoError(t, err)

		// Then: a ranked session starts with the host as player A
		require.NotEmpty(t, joined.SessionID)
		assert.Equal(t, "friend", joined.GuestID)
		require.NotNil(t, joined.UsedAt)

		session, err := store.Sessions().GetByID(ctx, joined.SessionID)
		require.NoError(t, err)
		assert.Equal(t, "host", session.PlayerA)
		assert.Equal(t, "friend", session.PlayerB)
		assert.Equal(t, "host", session.CurrentTurn)
		assert.True(t, session.Ranked)

		for _, player := range []string{"host", "friend"} {
			assert.Equal(t, []entity.EventType{entity.EventInviteMatched}, events.types(entity.PlayerTopic(player)))
		}
		assert.Equal(t, []entity.EventType{entity.EventInviteMatched}, events.types(entity.TopicLobby))

		lookup, err = matchmaker.LookupInvite(ctx, invite.Code)
		require.NoError(t, err)
		assert.Equal(t, entity.InviteUsed, lookup.Status)
	})

	t.Run("Invite is single use", func(t *testing.T) {
		ctx := t.Context()
		store := memory.NewStore()
		events := &recorder{}
		matchmaker := newMatchmaker(store, events, newFakeClock())

		invite, err := matchmaker.CreateInvite(ctx, "host", entity.Preferences{})
		require.NoError(t, err)

		first, err := matchmaker.JoinByCode(ctx, invite.Code, "friend")
		require.NoError(t, err)

		// When: a stranger and both members use the code again
		_, err = matchmaker.JoinByCode(ctx, invite.Code, "other")
		require.ErrorIs(t, err, apperror.ErrInviteTaken)

		again, err := matchmaker.JoinByCode(ctx, invite.Code, "friend")
		require.NoError(t, err)

		host, err := matchmaker.JoinByCode(ctx, invite.Code, "host")
		require.NoError(t, err)

		// Then: members get the same session back and nothing is announced twice
		assert.Equal(t, first.SessionID, again.SessionID)
		assert.Equal(t, first.SessionID, host.SessionID)
		assert.Len(t, events.on(entity.TopicLobby), 1)
	})

	t.Run("Host joining its own waiting invite changes nothing", func(t *testing.T) {
		ctx := t.Context()
		matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, newFakeClock())

		invite, err := matchmaker.CreateInvite(ctx, "host", entity.Preferences{})
		require.NoError(t, err)

		same, err := matchmaker.JoinByCode(ctx, invite.Code, "host")
		require.NoError(t, err)

		assert.Empty(t, same.SessionID)
		assert.Empty(t, same.GuestID)
	})

	t.Run("Expired invite cannot be joined", func(t *testing.T) {
		ctx := t.Context()
		clock := newFakeClock()
		matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, clock)

		invite, err := matchmaker.CreateInvite(ctx, "host", entity.Preferences{})
		require.NoError(t, err)

		// When: the friend arrives after the invite window
		clock.Advance(entity.DefaultInviteTTL + time.Second)
		_, err = matchmaker.JoinByCode(ctx, invite.Code, "friend")

		// Then: the code is reported expired
		require.ErrorIs(t, err, apperror.ErrInviteExpired)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

		lookup, err := matchmaker.LookupInvite(ctx, invite.Code)
		require.NoError(t, err)
		assert.Equal(t, entity.InviteExpired, lookup.Status)
	})

	t.Run("Unknown and empty codes", func(t *testing.T) {
		ctx := t.Context()
		matchmaker := newMatchmaker(memory.NewStore(), &recorder{}, newFakeClock())

		_, err := matchmaker.JoinByCode(ctx, "NOPE000000", "friend")
		require.ErrorIs(t, err, apperror.ErrNotFound)

		_, err = matchmaker.JoinByCode(ctx, "  ", "friend")
		require.ErrorIs(t, err, apperror.ErrInvalidInput)

		lookup, err := matchmaker.LookupInvite(ctx, "NOPE000000")
		require.NoError(t, err)
		assert.False(t, lookup.Exists)
	})

	t.Run("Players already busy cannot start the invite", func(t *testing.T) {
		ctx := t.Context()
		store := memory.NewStore()
		matchmaker := newMatchmaker(store, &recorder{}, newFakeClock())

		invite, err := matchmaker.CreateInvite(ctx, "host", entity.Preferences{})
		require.NoError(t, err)

		// Given: the guest waits in the public queue
		_, err = matchmaker.Enqueue(ctx, "friend", entity.Preferences{})
		require.NoError(t, err)

		// When: the guest joins by code
		_, err = matchmaker.JoinByCode(ctx, invite.Code, "friend")

		// Then: no second path into a game opens
		require.ErrorIs(t, err, apperror.ErrAlreadyQueued)

		active, err := store.Sessions().ActiveSessionOf(ctx, "friend")
		require.NoError(t, err)
		assert.Empty(t, active)

		// And: a host already in a game cannot create invites
		require.NoError(t, store.Sessions().Create(ctx, entity.NewSession("s1", "host", "x", 15, 5, false, time.Now())))
		_, err = matchmaker.CreateInvite(ctx, "host", entity.Preferences{})
		require.ErrorIs(t, err, apperror.ErrAlreadyInGame)
	})
}
