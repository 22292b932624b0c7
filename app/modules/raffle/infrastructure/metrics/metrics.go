package rafflemetrics

import (
	"context"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RaffleMetrics records raffle activity.
type RaffleMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, d time.Duration)

	RecordEntry(ctx context.Context, amount raffletypes.Amount)
	RecordRejection(ctx context.Context, operation, reason string)
	RecordWinner(ctx context.Context, amount raffletypes.Amount)
	RecordPayoutFailure(ctx context.Context)
	RecordRandomnessRequest(ctx context.Context)
	RecordRoundSnapshot(ctx context.Context, info raffletypes.RaffleInfo)
}

type prometheusMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec

	entries         prometheus.Counter
	entryAmount     prometheus.Counter
	rejections      *prometheus.CounterVec
	winners         prometheus.Counter
	paidOut         prometheus.Counter
	payoutFailures  prometheus.Counter
	randomnessCalls prometheus.Counter

	escrow  *prometheus.GaugeVec
	players *prometheus.GaugeVec
	state   *prometheus.GaugeVec
}

// NewPrometheus registers the raffle metrics on reg.
func NewPrometheus(reg prometheus.Registerer) RaffleMetrics {
	f := promauto.With(reg)
	return &prometheusMetrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_operation_attempts_total",
			Help: "Service operations started.",
		}, []string{"operation", "service"}),
		successes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_operation_success_total",
			Help: "Service operations that completed without infrastructure error.",
		}, []string{"operation", "service"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_operation_failures_total",
			Help: "Service operations that failed with an infrastructure error or panic.",
		}, []string{"operation", "service"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raffle_operation_duration_seconds",
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		entries: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_entries_total",
			Help: "Accepted entries.",
		}),
		entryAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_entry_amount_total",
			Help: "Sum of accepted entry payments.",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_rejections_total",
			Help: "Operations refused by a raffle rule.",
		}, []string{"operation", "reason"}),
		winners: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_winners_total",
			Help: "Rounds resolved with a paid winner.",
		}),
		paidOut: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_paid_out_total",
			Help: "Sum of escrow paid to winners.",
		}),
		payoutFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_payout_failures_total",
			Help: "Payouts that failed and left the round calculating.",
		}),
		randomnessCalls: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_randomness_requests_total",
			Help: "Randomness requests sent to the coordinator.",
		}),
		escrow: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raffle_escrow_balance",
			Help: "Escrow held by the current round.",
		}, []string{"raffle_id"}),
		players: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raffle_players",
			Help: "Players in the current round.",
		}, []string{"raffle_id"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raffle_round_state",
			Help: "Round state: 0 open, 1 calculating.",
		}, []string{"raffle_id"}),
	}
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.duration.WithLabelValues(operation, service).Observe(d.Seconds())
}

func (m *prometheusMetrics) RecordEntry(_ context.Context, amount raffletypes.Amount) {
	m.entries.Inc()
	m.entryAmount.Add(float64(amount))
}

func (m *prometheusMetrics) RecordRejection(_ context.Context, operation, reason string) {
	m.rejections.WithLabelValues(operation, reason).Inc()
}

func (m *prometheusMetrics) RecordWinner(_ context.Context, amount raffletypes.Amount) {
	m.winners.Inc()
	m.paidOut.Add(float64(amount))
}

func (m *prometheusMetrics) RecordPayoutFailure(_ context.Context) {
	m.payoutFailures.Inc()
}

func (m *prometheusMetrics) RecordRandomnessRequest(_ context.Context) {
	m.randomnessCalls.Inc()
}

func (m *prometheusMetrics) RecordRoundSnapshot(_ context.Context, info raffletypes.RaffleInfo) {
	id := string(info.RaffleID)
	m.escrow.WithLabelValues(id).Set(float64(info.Balance))
	m.players.WithLabelValues(id).Set(float64(info.NumberOfPlayers))
	m.state.WithLabelValues(id).Set(float64(info.State))
}
