package notifier

import (
	"encoding/json"
	"testing"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBroker(t *testing.T) {
	_, st := suite.New(t)

	// Given: two notifiers sharing redis, as two instances would
	first := startNotifier(t, NewRedisBroker(st.Logger, st.Redis))
	second := startNotifier(t, NewRedisBroker(st.Logger, st.Redis))

	outbox := NewOutbox("c1", 16)
	second.Registry().Subscribe(entity.SessionTopic("s1"), outbox)

	// When: the first instance publishes until the second is subscribed
	var event entity.Event
	require.Eventually(t, func() bool {
		assert.NoError(t, first.Publish(t.Context(), entity.SessionTopic("s1"), entity.EventGameTurn, entity.GameTurnPayload{SessionID: "s1", Turn: "p2"}))
		select {
		case event = <-outbox.Events():
			return true
		default:
			return false
		}
	}, suiteWait, suiteTick)

	// Then: the event crosses instances with its payload intact
	assert.Equal(t, entity.EventGameTurn, event.Type)

	var payload entity.GameTurnPayload
	require.NoError(t, json.Unmarshal(event.Payload.(json.RawMessage), &payload))
	assert.Equal(t, "p2", payload.Turn)
}
