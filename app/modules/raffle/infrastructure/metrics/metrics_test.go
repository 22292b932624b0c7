package rafflemetrics

import (
	"context"
	"testing"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the first sample of the named family.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		require.NotEmpty(t, mf.GetMetric())
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPrometheusMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.RecordEntry(ctx, 10)
	m.RecordEntry(ctx, 15)
	m.RecordWinner(ctx, 25)
	m.RecordPayoutFailure(ctx)
	m.RecordRejection(ctx, "Enter", "insufficient_payment")
	m.RecordRoundSnapshot(ctx, raffletypes.RaffleInfo{
		RaffleID:        "default",
		State:           raffletypes.StateCalculating,
		NumberOfPlayers: 2,
		Balance:         25,
	})

	assert.Equal(t, 2.0, gathered(t, reg, "raffle_entries_total"))
	assert.Equal(t, 25.0, gathered(t, reg, "raffle_entry_amount_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "raffle_winners_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "raffle_payout_failures_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "raffle_rejections_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "raffle_round_state"))
	assert.Equal(t, 25.0, gathered(t, reg, "raffle_escrow_balance"))
	assert.Equal(t, 2.0, gathered(t, reg, "raffle_players"))
}

func TestNoopDoesNothing(t *testing.T) {
	m := NewNoop()
	m.RecordEntry(context.Background(), 1)
	m.RecordRoundSnapshot(context.Background(), raffletypes.RaffleInfo{})
}
