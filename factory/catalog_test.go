package factory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/store/sqlite"
)

var now = time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)

func TestParseCatalog_Demo(t *testing.T) {
	f := NewCatalogFactory()

	snap, err := f.ParseCatalog(DemoCatalog(), now)
	require.NoError(t, err)

	assert.Len(t, snap.Users, 21)
	assert.Len(t, snap.Actions, 35)
	assert.Len(t, snap.Prizes, 30)
	assert.Len(t, snap.Missions, 3)
	assert.Len(t, snap.Logs, 6)
	assert.Len(t, snap.Redemptions, 3)
	require.Len(t, snap.Notifications, 2)
	require.NotNil(t, snap.Settings)

	assert.Equal(t, rewards.RoleAdmin, snap.Users[1].Role)
	assert.Equal(t, int64(3250), snap.Users[0].Points)
	assert.Equal(t, generic.CadenceWeekly, snap.Missions[1].Cadence)
	assert.Equal(t, "Colaboração e Desenvolvimento", snap.Missions[1].Goal.Category)
	assert.Equal(t, rewards.Broadcast, snap.Notifications[1].RecipientID)
	assert.Equal(t, now.Add(-24*time.Hour), snap.Notifications[1].Timestamp)
	assert.Equal(t, rewards.LogPendingValidation, snap.Logs[1].Status)
	require.NotNil(t, snap.Logs[0].ValidationDate)
	assert.Equal(t, "2024-07-05", snap.Logs[0].ValidationDate.String())
}

func TestParseCatalog_ImportsIntoStore(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	snap, err := NewCatalogFactory().ParseCatalog(DemoCatalog(), now)
	require.NoError(t, err)

	engine := rewards.NewEngine(store)
	engine.Now = func() time.Time { return now }
	require.NoError(t, engine.Import(context.Background(), snap))

	// GIVEN: Seeded balances are what users see, pending redemptions included
	for _, tt := range []struct {
		user rewards.UserID
		want int64
	}{
		{1, 3250}, {2, 5000}, {3, 1800}, {4, 4100}, {5, 0},
	} {
		got, err := engine.Balance(context.Background(), tt.user)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "user %d", tt.user)
	}

	// THEN: Ana's pending redemption is refundable
	r, err := engine.ResolveRedemption(context.Background(), 2, 2, rewards.RedemptionRefused)
	require.NoError(t, err)
	assert.Equal(t, int64(650), r.Cost)
	bal, err := engine.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3900), bal)
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"users": [`},
		{"unknown role", `{"users": [{"id": 1, "name": "x", "username": "x", "password": "1", "role": "Boss"}]}`},
		{"bad cadence", `{"missions": [{"id": 1, "title": "m", "cadence": "hourly", "goal": {"type": "log_action_category", "category": "c", "count": 1}}]}`},
		{"bad event date", `{"events": [{"id": 1, "name": "e", "type": "double_points_category", "config": {"category": "c"}, "start_date": "22/07/2024", "end_date": "2024-07-28"}]}`},
		{"unknown event type", `{"events": [{"id": 1, "name": "e", "type": "triple", "start_date": "2024-07-22", "end_date": "2024-07-28"}]}`},
		{"bad log month", `{"logs": [{"id": 1, "user_id": 1, "action_id": 1, "month": "July"}]}`},
		{"unknown log status", `{"logs": [{"id": 1, "user_id": 1, "action_id": 1, "month": "2024-07", "status": "done"}]}`},
		{"unknown redemption status", `{"redemptions": [{"id": 1, "user_id": 1, "prize_id": 1, "request_date": "2024-07-01", "status": "shipped"}]}`},
		{"bad recipient", `{"notifications": [{"sender_id": 1, "recipient": "everyone", "message": "x"}]}`},
		{"bad lock date", `{"settings": {"actions_locked_until": "soon", "prizes_locked": false}}`},
	}

	f := NewCatalogFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseCatalog([]byte(tt.json), now)
			assert.ErrorIs(t, err, ErrInvalidCatalogJSON)
		})
	}
}

func TestCatalogFactory_ToJSON(t *testing.T) {
	f := NewCatalogFactory()
	snap, err := f.ParseCatalog([]byte(`{
		"actions": [{"id": 10, "category": "Inovação", "description": "Ideia", "points": 90}],
		"events": [{"id": 1, "name": "Semana", "type": "double_points_category",
		            "config": {"category": "Inovação"}, "start_date": "2024-07-22", "end_date": "2024-07-28"}],
		"settings": {"actions_locked_until": "2024-07-31", "prizes_locked": true}
	}`), now)
	require.NoError(t, err)

	cj := f.ToJSON(snap)
	data, err := json.Marshal(cj)
	require.NoError(t, err)

	again, err := f.ParseCatalog(data, now)
	require.NoError(t, err)
	assert.Equal(t, snap.Actions, again.Actions)
	assert.Equal(t, "2024-07-28", again.Events[0].End.String())
	assert.Equal(t, "2024-07-31", again.Settings.ActionsLockedUntil.String())
}

func TestRecipientJSON(t *testing.T) {
	var n NotificationJSON
	require.NoError(t, json.Unmarshal([]byte(`{"recipient": 7}`), &n))
	assert.Equal(t, RecipientJSON(7), n.Recipient)

	require.NoError(t, json.Unmarshal([]byte(`{"recipient": "all"}`), &n))
	assert.Equal(t, RecipientJSON(rewards.Broadcast), n.Recipient)

	data, err := json.Marshal(n.Recipient)
	require.NoError(t, err)
	assert.JSONEq(t, `"all"`, string(data))
}
