//go:build integration

package rafflehandlerintegrationtests

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/raffle-bot/app/eventbus"
	"github.com/Black-And-White-Club/raffle-bot/app/modules/raffle"
	"github.com/Black-And-White-Club/raffle-bot/app/observability"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/raffle-bot/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestDeps runs a complete raffle module against Postgres and JetStream.
type TestDeps struct {
	Ctx    context.Context
	Module *raffle.Module
	Bus    eventbus.EventBus

	stop func()
}

func testConfig(interval time.Duration) *config.Config {
	return &config.Config{
		Postgres: config.PostgresConfig{DSN: testEnv.DSN},
		NATS:     config.NATSConfig{URL: testEnv.NatsURL, QueueGroup: "raffle-" + uuid.NewString()[:8]},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "text",
		},
		Raffle: config.RaffleConfig{
			ID:          "default",
			EntranceFee: 100,
			Interval:    config.Duration(interval),
		},
		Oracle: config.OracleConfig{
			Driver:           "bus",
			KeyHash:          "0xabc",
			NumWords:         1,
			CallbackGasLimit: 500_000,
		},
		Upkeep:   config.UpkeepConfig{PollInterval: config.Duration(time.Hour)},
		EventBus: config.EventBusConfig{Driver: eventbus.DriverNATS},
		Storage:  config.StorageConfig{Driver: "postgres"},
	}
}

// localOracleConfig runs the in-process coordinator instead of the bus one.
func localOracleConfig(interval time.Duration, autoFulfill bool) *config.Config {
	cfg := testConfig(interval)
	cfg.Oracle.Driver = "local"
	cfg.Oracle.AutoFulfill = autoFulfill
	cfg.Oracle.FulfillDelay = config.Duration(10 * time.Millisecond)
	return cfg
}

// SetupRaffleModule starts the module with a fresh round and returns a
// separate bus for driving and observing it.
func SetupRaffleModule(t *testing.T, interval time.Duration) TestDeps {
	t.Helper()
	require.NoError(t, testEnv.ResetTables(testEnv.Ctx))
	return StartRaffleModule(t, testConfig(interval))
}

// StartRaffleModule starts a module over the current database contents, the
// way a process restart would.
func StartRaffleModule(t *testing.T, cfg *config.Config) TestDeps {
	t.Helper()
	ctx, cancel := context.WithCancel(testEnv.Ctx)
	require.NoError(t, cfg.Validate())
	obs := observability.New(cfg.Observability)

	moduleBus, err := testEnv.NewEventBus(cfg.NATS.QueueGroup)
	require.NoError(t, err)

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(testEnv.Logger))
	require.NoError(t, err)

	module, err := raffle.NewRaffleModule(ctx, cfg, obs, testEnv.DB, moduleBus, router)
	require.NoError(t, err)

	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	var wg sync.WaitGroup
	wg.Add(1)
	go module.Run(ctx, &wg)

	testBus, err := testEnv.NewEventBus("observer-" + uuid.NewString()[:8])
	require.NoError(t, err)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			_ = module.Close()
			cancel()
			wg.Wait()
			_ = router.Close()
			_ = moduleBus.Close()
			_ = testBus.Close()
		})
	}
	t.Cleanup(stop)

	return TestDeps{Ctx: ctx, Module: module, Bus: testBus, stop: stop}
}

// Stop shuts the module down as a process exit would.
func (d TestDeps) Stop() {
	d.stop()
}

// Publish sends payload to topic.
func (d TestDeps) Publish(t *testing.T, topic string, payload any) {
	t.Helper()
	msg, err := handlerwrapper.NewMessage(d.Ctx, handlerwrapper.Result{Topic: topic, Payload: payload})
	require.NoError(t, err)
	require.NoError(t, d.Bus.Publish(topic, msg))
}

// Subscribe must be called before the message that triggers topic is published.
func (d TestDeps) Subscribe(t *testing.T, topic string) <-chan *message.Message {
	t.Helper()
	ch, err := d.Bus.Subscribe(d.Ctx, topic)
	require.NoError(t, err)
	return ch
}

// Await decodes the next message from ch into out.
func Await(t *testing.T, ch <-chan *message.Message, out any) {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		require.NoError(t, json.Unmarshal(msg.Payload, out))
	case <-time.After(15 * time.Second):
		t.Fatalf("timed out waiting for %T", out)
	}
}
