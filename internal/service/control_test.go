package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordVisitRejectsBadInput(t *testing.T) {
	svc := &ControlService{}
	ctx := context.Background()

	tests := []struct {
		name    string
		req     VisitRequest
		wantErr error
	}{
		{
			"missing place id",
			VisitRequest{UserID: "u1"},
			ErrInvalidVenue,
		},
		{
			"missing user id",
			VisitRequest{Venue: VenueInfo{PlaceID: "p1"}},
			ErrInvalidUser,
		},
		{
			"unknown battle mode",
			VisitRequest{
				Venue:      VenueInfo{PlaceID: "p1"},
				UserID:     "u1",
				BattleMode: "berserk",
			},
			ErrInvalidMode,
		},
		{
			"unknown party mode",
			VisitRequest{
				Venue:  VenueInfo{PlaceID: "p1"},
				UserID: "u1",
				Party:  Party{Mode: "rampage"},
			},
			ErrInvalidMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordVisit(ctx, "default", tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckInRejectsBadInput(t *testing.T) {
	svc := NewRivalService(nil, 0)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, "default", "", "alice", "p1", true)
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = svc.CheckIn(ctx, "default", "u1", "alice", "", true)
	assert.ErrorIs(t, err, ErrInvalidVenue)
}
