package entities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAddCalendarMonthsClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "jan 31 plus one month lands on feb 28",
			start:  time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "leap year keeps feb 29",
			start:  time.Date(2028, 1, 31, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2028, 2, 29, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "mid-month date is unchanged",
			start:  time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
			months: 6,
			want:   time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "aug 31 plus one month lands on sep 30",
			start:  time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "year rollover",
			start:  time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
			months: 4,
			want:   time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddCalendarMonths(tc.start, tc.months))
		})
	}
}

func TestReduceFloor(t *testing.T) {
	// Below $1000 the absolute floor of $100 dominates; above it the
	// 10% rule takes over.
	assert.True(t, ReduceFloor(decimal.NewFromInt(500)).Equal(decimal.NewFromInt(100)))
	assert.True(t, ReduceFloor(decimal.NewFromInt(1000)).Equal(decimal.NewFromInt(100)))
	assert.True(t, ReduceFloor(decimal.NewFromInt(5000)).Equal(decimal.NewFromInt(500)))
}

func TestSubscribeRequestValidatesLockBounds(t *testing.T) {
	base := SubscribeRequest{
		PlanID:     uuid.New(),
		Amount:     decimal.NewFromInt(500),
		LockMonths: 3,
	}
	assert.NoError(t, base.Validate())

	for _, months := range []int{0, 7} {
		req := base
		req.LockMonths = months
		assert.Error(t, req.Validate())
	}
}
