package brokerobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-trading-challenge/internal/broker/brokertest"
	"ai-trading-challenge/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActivitiesPassesThrough(t *testing.T) {
	b := brokertest.New()
	now := time.Now()
	b.AddActivity(types.Activity{ID: "old", Type: types.ActivityFill, Symbol: "ABC", Qty: decimal.NewFromInt(1), Time: now.Add(-time.Hour)})
	b.AddActivity(types.Activity{ID: "new", Type: types.ActivityFill, Symbol: "DEF", Qty: decimal.NewFromInt(2), Time: now})
	b.AddActivity(types.Activity{ID: "div", Type: "DIV", Symbol: "XYZ", Time: now})

	acts, err := Wrap(b).ListActivities(context.Background(), types.ActivityQuery{Types: []string{types.ActivityFill}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "new", acts[0].ID)

	calls := b.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ListActivities", calls[0].Method)
	assert.Equal(t, "FILL", calls[0].Arg)
}

func TestListActivitiesReturnsError(t *testing.T) {
	b := brokertest.New()
	b.Fail("ListActivities", errors.New("forbidden"))

	acts, err := Wrap(b).ListActivities(context.Background(), types.ActivityQuery{})
	assert.EqualError(t, err, "forbidden")
	assert.Nil(t, acts)
}
