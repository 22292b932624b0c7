package raffleservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	rafflemetrics "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/metrics"
	raffleoracle "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/oracle"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/results"
	"github.com/ThreeDotsLabs/watermill/message"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName         = "RaffleService"
	resolutionCacheSize = 256
)

// RaffleService implements the Service interface.
type RaffleService struct {
	repo        raffledb.Repository
	payout      rafflepayout.Executor
	coordinator raffleoracle.Coordinator
	publisher   message.Publisher
	logger      *slog.Logger
	metrics     rafflemetrics.RaffleMetrics
	tracer      trace.Tracer
	db          *bun.DB

	settings Settings
	clock    Clock
	verifier *raffleoracle.Verifier

	// mu is the single mutual exclusion domain for every state change.
	mu       sync.Mutex
	resolved *lru.Cache[raffletypes.RequestID, raffletypes.Resolution]
}

// Option customizes a RaffleService.
type Option func(*RaffleService)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *RaffleService) { s.clock = c }
}

// WithVerifier requires every fulfillment to carry a proof valid for v.
func WithVerifier(v *raffleoracle.Verifier) Option {
	return func(s *RaffleService) { s.verifier = v }
}

// NewRaffleService creates a new RaffleService. publisher and db may be nil.
func NewRaffleService(
	repo raffledb.Repository,
	payout rafflepayout.Executor,
	coordinator raffleoracle.Coordinator,
	publisher message.Publisher,
	logger *slog.Logger,
	metrics rafflemetrics.RaffleMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	settings Settings,
	opts ...Option,
) *RaffleService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = rafflemetrics.NewNoop()
	}
	if settings.NumWords == 0 {
		settings.NumWords = 1
	}
	resolved, err := lru.New[raffletypes.RequestID, raffletypes.Resolution](resolutionCacheSize)
	if err != nil {
		panic(fmt.Sprintf("resolution cache: %v", err))
	}

	s := &RaffleService{
		repo:        repo,
		payout:      payout,
		coordinator: coordinator,
		publisher:   publisher,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		db:          db,
		settings:    settings,
		clock:       realClock{},
		resolved:    resolved,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RaffleService) now() time.Time {
	return s.clock.Now().UTC()
}

// publish sends events after the state change committed. Failures are
// logged; the committed state stands.
func (s *RaffleService) publish(ctx context.Context, events ...handlerwrapper.Result) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		msg, err := handlerwrapper.NewMessage(ctx, ev)
		if err == nil {
			err = s.publisher.Publish(ev.Topic, msg)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish event",
				attr.ExtractCorrelationID(ctx),
				attr.String("topic", ev.Topic),
				attr.Error(err),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any](
	s *RaffleService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, error],
) (result results.OperationResult[S, error], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
			attribute.String("raffle_id", string(s.settings.RaffleID)),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, error]{}
		}
	}()

	result, err = op(ctx)

	// Infrastructure error
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	// Domain failure
	if result.IsFailure() {
		failure := *result.Failure
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(failure),
		)
		s.metrics.RecordRejection(ctx, operationName, rejectionReason(failure))
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *RaffleService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		if txErr != nil {
			return txErr
		}
		if result.IsFailure() {
			// Failures never write.
			return errFailureRollback
		}
		return nil
	})
	if errors.Is(err, errFailureRollback) {
		return result, nil
	}
	return result, err
}

var errFailureRollback = errors.New("rollback on failure result")

// unwrap converts an operation result into the public return values.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, fmt.Errorf("operation returned no result")
	}
	return *result.Success, nil
}

// rejectionReason labels a domain failure for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, raffletypes.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, raffletypes.ErrRoundNotOpen):
		return "round_not_open"
	case errors.Is(err, raffletypes.ErrUpkeepNotNeeded):
		return "upkeep_not_needed"
	case errors.Is(err, raffletypes.ErrUnknownRequestID):
		return "unknown_request_id"
	case errors.Is(err, raffletypes.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, raffletypes.ErrNoPlayers):
		return "no_players"
	case errors.Is(err, raffletypes.ErrInvalidRandomWords):
		return "invalid_random_words"
	case errors.Is(err, raffletypes.ErrInvalidEntrant):
		return "invalid_entrant"
	case errors.Is(err, raffletypes.ErrEscrowLimit):
		return "escrow_limit"
	default:
		return "other"
	}
}

// queryDB returns the handle for reads outside a transaction.
func (s *RaffleService) queryDB() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
}
