package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
)

// Drivers.
const (
	DriverMemory = "memory"
	DriverNATS   = "nats"
)

// StreamName is the JetStream stream that stores every raffle and oracle subject.
const StreamName = "RAFFLE"

// StreamSubjects are captured by StreamName.
var StreamSubjects = []string{"raffle.>", "vrf.>"}

// Config selects and configures the bus.
type Config struct {
	Driver           string
	URL              string
	NKeySeed         string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
}

// EventBus publishes and subscribes watermill messages. Publishing to the
// empty topic routes every message to the topic named in its metadata.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

type eventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	sharedPS   bool
	natsConn   *nc.Conn
	logger     *slog.Logger
}

// NewEventBus builds the bus for cfg.Driver.
func NewEventBus(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryEventBus(logger), nil
	case DriverNATS:
		return newNATSEventBus(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown event bus driver %q", cfg.Driver)
	}
}

// NewMemoryEventBus returns an in-process bus backed by a watermill go channel.
func NewMemoryEventBus(logger *slog.Logger) EventBus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, watermill.NewSlogLogger(logger))

	return &eventBus{
		publisher:  pubSub,
		subscriber: pubSub,
		sharedPS:   true,
		logger:     logger,
	}
}

func newNATSEventBus(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
	}
	if cfg.NKeySeed != "" {
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	natsConn, err := nc.Connect(cfg.URL, options...)
	if err != nil {
		logger.Error("Failed to connect to NATS", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}
	if err := EnsureStream(ctx, js, logger); err != nil {
		natsConn.Close()
		return nil, err
	}

	watermillLogger := watermill.NewSlogLogger(logger)
	marshaler := &nats.NATSMarshaler{}
	jsConfig := nats.JetStreamConfig{
		Disabled:      false,
		AutoProvision: false,
		SubscribeOptions: []nc.SubOpt{
			nc.DeliverNew(),
			nc.AckExplicit(),
		},
		DurablePrefix: cfg.QueueGroup,
	}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:         cfg.URL,
			Marshaler:   marshaler,
			NatsOptions: options,
			JetStream:   jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	ackWait := cfg.AckWaitTimeout
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}
	subscribers := cfg.SubscribersCount
	if subscribers <= 0 {
		subscribers = 1
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:              cfg.URL,
			QueueGroupPrefix: cfg.QueueGroup,
			SubscribersCount: subscribers,
			AckWaitTimeout:   ackWait,
			CloseTimeout:     30 * time.Second,
			Unmarshaler:      marshaler,
			NatsOptions:      options,
			JetStream:        jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		publisher.Close()
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &eventBus{
		publisher:  publisher,
		subscriber: subscriber,
		natsConn:   natsConn,
		logger:     logger,
	}, nil
}

// nkeyOption authenticates the connection with a user nkey seed.
func nkeyOption(seed string) (nc.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return nc.Nkey(pub, func(nonce []byte) ([]byte, error) {
		return kp.Sign(nonce)
	}), nil
}

// EnsureStream creates or updates the raffle stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: StreamSubjects,
	})
	if err != nil {
		logger.Error("Failed to create JetStream stream", slog.String("stream", StreamName), slog.Any("error", err))
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}
	logger.Info("JetStream stream ready", slog.String("stream", StreamName))
	return nil
}

// Publish sends msgs to topic. With an empty topic each message goes to the
// topic stored under handlerwrapper.TopicMetadataKey.
func (eb *eventBus) Publish(topic string, msgs ...*message.Message) error {
	if topic != "" {
		return eb.publisher.Publish(topic, msgs...)
	}
	for _, msg := range msgs {
		dest := msg.Metadata.Get(handlerwrapper.TopicMetadataKey)
		if dest == "" {
			return fmt.Errorf("message %s has no destination topic", msg.UUID)
		}
		eb.logger.Debug("Publishing message", slog.String("topic", dest), slog.String("message_id", msg.UUID))
		if err := eb.publisher.Publish(dest, msg); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", dest, err)
		}
	}
	return nil
}

func (eb *eventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return eb.subscriber.Subscribe(ctx, topic)
}

// Close closes all NATS and Watermill resources.
func (eb *eventBus) Close() error {
	var errs []error
	if err := eb.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if !eb.sharedPS {
		if err := eb.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if eb.natsConn != nil {
		eb.natsConn.Close()
	}
	return errors.Join(errs...)
}

// PublishResults publishes handler results through pub.
func PublishResults(ctx context.Context, pub message.Publisher, results ...handlerwrapper.Result) error {
	msgs := make([]*message.Message, 0, len(results))
	for _, r := range results {
		msg, err := handlerwrapper.NewMessage(ctx, r)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	for _, msg := range msgs {
		if err := pub.Publish(msg.Metadata.Get(handlerwrapper.TopicMetadataKey), msg); err != nil {
			return err
		}
	}
	return nil
}
