package api

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name string
		in   any
		want string // empty means valid
	}{
		{"valid event", &EventRequest{Name: "Semana", Type: "double_points_category", Category: "Inovação", StartDate: "2024-07-22", EndDate: "2024-07-28"}, ""},
		{"bad date", &EventRequest{Name: "Semana", Type: "double_points_category", Category: "Inovação", StartDate: "2024-02-30", EndDate: "2024-07-28"}, "start_date must be a date as YYYY-MM-DD"},
		{"unknown event type", &EventRequest{Name: "Semana", Type: "triple", Category: "Inovação", StartDate: "2024-07-22", EndDate: "2024-07-28"}, "type must be one of: double_points_category"},
		{"missing mission title", &MissionRequest{Cadence: "weekly", Goal: GoalDTO{Type: "log_action_category", Category: "X", Count: 1}}, "title is required"},
		{"zero goal count", &MissionRequest{Title: "T", Cadence: "weekly", Goal: GoalDTO{Type: "log_action_category", Category: "X"}}, "count must be greater than 0"},
		{"bad cadence", &MissionRequest{Title: "T", Cadence: "yearly", Goal: GoalDTO{Type: "log_action_category", Category: "X", Count: 1}}, "cadence must be one of"},
		{"free prize", &PrizeRequest{Description: "Free", Cost: 0}, "cost must be greater than 0"},
		{"bad decision", &RedemptionDecisionRequest{AdminID: 1, Decision: "maybe"}, "decision must be one of: approved refused"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.in)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRequestValidator_Var(t *testing.T) {
	v := NewRequestValidator()

	assert.NoError(t, v.Var("month", "2024-07", "omitempty,yearmonth"))
	assert.NoError(t, v.Var("month", "", "omitempty,yearmonth"))
	assert.ErrorIs(t, v.Var("month", "2024-7", "omitempty,yearmonth"), ErrValidation)
}

func TestRequestValidator_Decode(t *testing.T) {
	v := NewRequestValidator()

	var ok SubmitLogRequest
	require.NoError(t, v.Decode(httptest.NewRequest("POST", "/", strings.NewReader(`{"action_id": 3, "notes": "x"}`)), &ok))
	assert.Equal(t, int64(3), ok.ActionID)

	var bad SubmitLogRequest
	err := v.Decode(httptest.NewRequest("POST", "/", strings.NewReader(`{"action_id": 3, "extra": 1}`)), &bad)
	assert.ErrorIs(t, err, ErrValidation)

	var empty SubmitLogRequest
	err = v.Decode(httptest.NewRequest("POST", "/", strings.NewReader(`{}`)), &empty)
	assert.ErrorContains(t, err, "action_id is required")
}
