package rafflerouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/raffle-bot/app/eventbus"
	raffleevents "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/events"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type stubHandlers struct {
	mu      sync.Mutex
	entries []raffleevents.EntryRequestedPayloadV1
}

func (s *stubHandlers) HandleEntryRequested(_ context.Context, p *raffleevents.EntryRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	s.mu.Lock()
	s.entries = append(s.entries, *p)
	s.mu.Unlock()
	return []handlerwrapper.Result{{
		Topic:   raffleevents.EntryRejectedV1,
		Payload: &raffleevents.EntryRejectedPayloadV1{RaffleID: p.RaffleID, Player: p.Player, Reason: "closed"},
	}}, nil
}

func (s *stubHandlers) HandleUpkeepRequested(context.Context, *raffleevents.UpkeepRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	return nil, nil
}

func (s *stubHandlers) HandleRandomWordsFulfilled(context.Context, *raffleevents.RandomWordsFulfilledPayloadV1) ([]handlerwrapper.Result, error) {
	return nil, nil
}

func TestRaffleRouterRoutesResultsByTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewMemoryEventBus(logger)
	defer bus.Close()

	wmRouter, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	r := NewRaffleRouter(logger, wmRouter, bus, bus, noop.NewTracerProvider().Tracer("test"), prometheus.NewRegistry())
	handlers := &stubHandlers{}
	require.NoError(t, r.Configure(ctx, handlers))

	rejected, err := bus.Subscribe(ctx, raffleevents.EntryRejectedV1)
	require.NoError(t, err)

	go func() { _ = wmRouter.Run(ctx) }()
	<-wmRouter.Running()
	defer r.Close()

	body, err := json.Marshal(raffleevents.EntryRequestedPayloadV1{RaffleID: "default", Player: "alice", Amount: 1})
	require.NoError(t, err)
	msg := message.NewMessage(watermill.NewUUID(), body)
	middleware.SetCorrelationID("corr-1", msg)
	require.NoError(t, bus.Publish(raffleevents.EntryRequestedV1, msg))

	select {
	case out := <-rejected:
		out.Ack()
		var payload raffleevents.EntryRejectedPayloadV1
		require.NoError(t, json.Unmarshal(out.Payload, &payload))
		assert.Equal(t, "closed", payload.Reason)
		assert.Equal(t, "corr-1", middleware.MessageCorrelationID(out))
	case <-time.After(3 * time.Second):
		t.Fatal("no rejection routed")
	}

	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	require.Len(t, handlers.entries, 1)
	assert.Equal(t, raffleevents.EntryRequestedPayloadV1{RaffleID: "default", Player: "alice", Amount: 1}, handlers.entries[0])
}
