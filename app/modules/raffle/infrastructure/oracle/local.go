package raffleoracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
)

// LocalCoordinator is an in-process randomness coordinator. Request ids are
// sequential starting at 1, optionally behind a prefix. A request stays
// pending while deliveries fail with a retryable error or with rejected
// words; success or any other rejection by the consumer consumes it.
type LocalCoordinator struct {
	mu       sync.Mutex
	prefix   string
	nextID   uint64
	pending  map[raffletypes.RequestID]raffletypes.RandomWordsRequest
	consumer Consumer

	prover      *Prover
	autoFulfill bool
	delay       time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// LocalOption configures a LocalCoordinator.
type LocalOption func(*LocalCoordinator)

// WithAutoFulfill fulfills every request after delay.
func WithAutoFulfill(delay time.Duration) LocalOption {
	return func(c *LocalCoordinator) {
		c.autoFulfill = true
		c.delay = delay
	}
}

// WithRequestIDPrefix issues ids of the form "<prefix>-<n>". Processes
// sharing a payout history need distinct prefixes, since the sequence
// restarts with every coordinator.
func WithRequestIDPrefix(prefix string) LocalOption {
	return func(c *LocalCoordinator) { c.prefix = prefix }
}

// WithProver replaces the generated signing key.
func WithProver(p *Prover) LocalOption {
	return func(c *LocalCoordinator) { c.prover = p }
}

// NewLocalCoordinator creates a coordinator with a fresh signing key.
func NewLocalCoordinator(logger *slog.Logger, opts ...LocalOption) *LocalCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &LocalCoordinator{
		nextID:  1,
		pending: make(map[raffletypes.RequestID]raffletypes.RandomWordsRequest),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prover == nil {
		c.prover = NewProver()
	}
	return c
}

var _ Coordinator = (*LocalCoordinator)(nil)

// SetConsumer registers the receiver of fulfilled words.
func (c *LocalCoordinator) SetConsumer(consumer Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = consumer
}

// Verifier returns the verifier for proofs produced by this coordinator.
func (c *LocalCoordinator) Verifier() *Verifier {
	return c.prover.Verifier()
}

// RequestRandomWords records the request and returns its id. With auto
// fulfillment the words are delivered from a separate goroutine.
func (c *LocalCoordinator) RequestRandomWords(ctx context.Context, req raffletypes.RandomWordsRequest) (raffletypes.RequestID, error) {
	if req.NumWords == 0 {
		return "", errors.New("num words must be positive")
	}

	c.mu.Lock()
	id := c.formatID(c.nextID)
	c.nextID++
	c.pending[id] = req
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Randomness requested",
		attr.RequestID(string(id)),
		attr.RaffleID(string(req.RaffleID)),
		attr.Int("num_words", int(req.NumWords)),
	)

	if c.autoFulfill {
		c.wg.Add(1)
		go c.fulfillLater(id)
	}
	return id, nil
}

func (c *LocalCoordinator) formatID(n uint64) raffletypes.RequestID {
	if c.prefix == "" {
		return raffletypes.RequestID(strconv.FormatUint(n, 10))
	}
	return raffletypes.RequestID(c.prefix + "-" + strconv.FormatUint(n, 10))
}

func (c *LocalCoordinator) fulfillLater(id raffletypes.RequestID) {
	defer c.wg.Done()

	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return
	case <-timer.C:
	}

	if err := c.FulfillRandomWords(c.ctx, id); err != nil {
		c.logger.WarnContext(c.ctx, "Automatic fulfillment failed",
			attr.RequestID(string(id)),
			attr.Error(err),
		)
	}
}

// FulfillRandomWords derives the words of a pending request and delivers them.
func (c *LocalCoordinator) FulfillRandomWords(ctx context.Context, id raffletypes.RequestID) error {
	c.mu.Lock()
	req, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNonexistentRequest, id)
	}

	words, proof, err := c.prover.Prove(id, req.KeyHash, req.NumWords)
	if err != nil {
		return err
	}
	return c.deliver(ctx, id, words, proof)
}

// FulfillRandomWordsWithOverride delivers caller supplied words for a pending
// request. No proof is attached, so a consumer that verifies proofs rejects
// the words; the request then stays pending and can still be fulfilled with
// FulfillRandomWords.
func (c *LocalCoordinator) FulfillRandomWordsWithOverride(ctx context.Context, id raffletypes.RequestID, words []*big.Int) error {
	c.mu.Lock()
	_, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNonexistentRequest, id)
	}
	return c.deliver(ctx, id, words, nil)
}

func (c *LocalCoordinator) deliver(ctx context.Context, id raffletypes.RequestID, words []*big.Int, proof []byte) error {
	c.mu.Lock()
	consumer := c.consumer
	c.mu.Unlock()
	if consumer == nil {
		return errors.New("no consumer registered")
	}

	err := consumer(ctx, id, words, proof)
	if err != nil && (!raffletypes.IsPrecondition(err) || errors.Is(err, raffletypes.ErrInvalidRandomWords)) {
		return fmt.Errorf("deliver random words for %s: %w", id, err)
	}

	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("deliver random words for %s: %w", id, err)
	}
	return nil
}

// Pending reports whether id is still awaiting fulfillment.
func (c *LocalCoordinator) Pending(id raffletypes.RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Close stops pending automatic fulfillments.
func (c *LocalCoordinator) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}
