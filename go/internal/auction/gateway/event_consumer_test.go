package gateway

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/leagueauction/go/internal/auction/events"
)

type broadcast struct {
	roundID    uuid.UUID
	eventType  string
	restricted bool
	teamIDs    []string
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (f *fakeBroadcaster) BroadcastToRound(roundID uuid.UUID, event *RoundEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, broadcast{roundID: roundID, eventType: event.Type})
}

func (f *fakeBroadcaster) BroadcastToTeams(roundID uuid.UUID, teamIDs []string, event *RoundEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, broadcast{roundID: roundID, eventType: event.Type, restricted: true, teamIDs: teamIDs})
}

func TestHandleMessage(t *testing.T) {
	roundID := uuid.New()
	a, b := uuid.NewString(), uuid.NewString()

	cases := []struct {
		name       string
		eventType  string
		payload    any
		restricted bool
		teamIDs    []string
	}{
		{
			name:      "round opened goes to everyone",
			eventType: events.EventTypeRoundOpened,
			payload:   events.RoundOpenedPayload{RoundID: roundID.String(), Position: "GK"},
		},
		{
			name:       "tiebreaker opened goes to tied teams",
			eventType:  events.EventTypeTiebreakerOpened,
			payload:    events.TiebreakerOpenedPayload{RoundID: roundID.String(), TeamIDs: []string{a, b}, TiedAmount: "100.00"},
			restricted: true,
			teamIDs:    []string{a, b},
		},
		{
			name:       "tiebreaker resolved goes to tied teams",
			eventType:  events.EventTypeTiebreakerResolved,
			payload:    events.TiebreakerResolvedPayload{RoundID: roundID.String(), TeamIDs: []string{a, b}, WinnerTeamID: a},
			restricted: true,
			teamIDs:    []string{a, b},
		},
		{
			name:       "allocations stay with officials",
			eventType:  events.EventTypePlayerAllocated,
			payload:    events.PlayerAllocatedPayload{RoundID: roundID.String(), TeamID: a, Amount: "120.00"},
			restricted: true,
		},
		{
			name:       "unsold stays with officials",
			eventType:  events.EventTypePlayerUnsold,
			payload:    events.PlayerUnsoldPayload{RoundID: roundID.String(), Reason: "no_bids"},
			restricted: true,
		},
		{
			name:      "round completed goes to everyone",
			eventType: events.EventTypeRoundCompleted,
			payload:   events.RoundCompletedPayload{RoundID: roundID.String(), AllocationCount: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeBroadcaster{}
			ec := &EventConsumer{broadcaster: fake}

			data, err := json.Marshal(envelope(t, roundID, tc.eventType, tc.payload))
			assert.NoError(t, err)
			assert.NoError(t, ec.HandleMessage(data))

			assert.Equal(t, 1, len(fake.sent))
			got := fake.sent[0]
			check.Equal(t, roundID, got.roundID)
			check.Equal(t, tc.eventType, got.eventType)
			check.Equal(t, tc.restricted, got.restricted)
			check.Equal(t, len(tc.teamIDs), len(got.teamIDs))
		})
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	fake := &fakeBroadcaster{}
	ec := &EventConsumer{broadcaster: fake}

	check.Error(t, ec.HandleMessage([]byte("not json")))

	data, err := json.Marshal(envelope(t, uuid.New(), "TradeProposed", map[string]string{}))
	assert.NoError(t, err)
	check.Error(t, ec.HandleMessage(data))

	check.Equal(t, 0, len(fake.sent))
}
