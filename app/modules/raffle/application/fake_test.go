package raffleservice

import (
	"context"
	"strconv"
	"sync"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	rafflepayout "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/payout"
	raffledb "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/infrastructure/repositories"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Repo
// ------------------------

// FakeRepo delegates to an in-memory repository unless a Func is set.
type FakeRepo struct {
	trace []string
	inner *raffledb.MemoryRepository

	GetRoundFunc          func(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error)
	GetRoundForUpdateFunc func(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error)
	CreateRoundFunc       func(ctx context.Context, db bun.IDB, round *raffletypes.Round) error
	SaveRoundFunc         func(ctx context.Context, db bun.IDB, round *raffletypes.Round) error
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{inner: raffledb.NewMemoryRepository()}
}

func (f *FakeRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Count reports how many times step was recorded.
func (f *FakeRepo) Count(step string) int {
	n := 0
	for _, s := range f.trace {
		if s == step {
			n++
		}
	}
	return n
}

func (f *FakeRepo) GetRound(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error) {
	f.record("GetRound")
	if f.GetRoundFunc != nil {
		return f.GetRoundFunc(ctx, db, id)
	}
	return f.inner.GetRound(ctx, db, id)
}

func (f *FakeRepo) GetRoundForUpdate(ctx context.Context, db bun.IDB, id raffletypes.RaffleID) (*raffletypes.Round, error) {
	f.record("GetRoundForUpdate")
	if f.GetRoundForUpdateFunc != nil {
		return f.GetRoundForUpdateFunc(ctx, db, id)
	}
	return f.inner.GetRoundForUpdate(ctx, db, id)
}

func (f *FakeRepo) CreateRound(ctx context.Context, db bun.IDB, round *raffletypes.Round) error {
	f.record("CreateRound")
	if f.CreateRoundFunc != nil {
		return f.CreateRoundFunc(ctx, db, round)
	}
	return f.inner.CreateRound(ctx, db, round)
}

func (f *FakeRepo) SaveRound(ctx context.Context, db bun.IDB, round *raffletypes.Round) error {
	f.record("SaveRound")
	if f.SaveRoundFunc != nil {
		return f.SaveRoundFunc(ctx, db, round)
	}
	return f.inner.SaveRound(ctx, db, round)
}

var _ raffledb.Repository = (*FakeRepo)(nil)

// ------------------------
// Fake Coordinator
// ------------------------

type FakeCoordinator struct {
	mu       sync.Mutex
	requests []raffletypes.RandomWordsRequest
	nextID   int

	RequestRandomWordsFunc func(ctx context.Context, req raffletypes.RandomWordsRequest) (raffletypes.RequestID, error)
}

func (f *FakeCoordinator) RequestRandomWords(ctx context.Context, req raffletypes.RandomWordsRequest) (raffletypes.RequestID, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.nextID++
	id := raffletypes.RequestID(strconv.Itoa(f.nextID))
	f.mu.Unlock()
	if f.RequestRandomWordsFunc != nil {
		return f.RequestRandomWordsFunc(ctx, req)
	}
	return id, nil
}

func (f *FakeCoordinator) Requests() []raffletypes.RandomWordsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]raffletypes.RandomWordsRequest(nil), f.requests...)
}

// ------------------------
// Fake Payout
// ------------------------

// FakePayout records transfers and delegates to a memory wallet.
type FakePayout struct {
	trace  []string
	wallet *rafflepayout.MemoryWallet

	TransferFunc func(ctx context.Context, db bun.IDB, t rafflepayout.Transfer) error
	LookupFunc   func(ctx context.Context, db bun.IDB, raffleID raffletypes.RaffleID, requestID raffletypes.RequestID) (rafflepayout.Transfer, error)
}

func NewFakePayout() *FakePayout {
	return &FakePayout{wallet: rafflepayout.NewMemoryWallet()}
}

func (f *FakePayout) Transfer(ctx context.Context, db bun.IDB, t rafflepayout.Transfer) error {
	f.trace = append(f.trace, "Transfer")
	if f.TransferFunc != nil {
		return f.TransferFunc(ctx, db, t)
	}
	return f.wallet.Transfer(ctx, db, t)
}

func (f *FakePayout) Lookup(ctx context.Context, db bun.IDB, raffleID raffletypes.RaffleID, requestID raffletypes.RequestID) (rafflepayout.Transfer, error) {
	f.trace = append(f.trace, "Lookup")
	if f.LookupFunc != nil {
		return f.LookupFunc(ctx, db, raffleID, requestID)
	}
	return f.wallet.Lookup(ctx, db, raffleID, requestID)
}

func (f *FakePayout) BalanceOf(ctx context.Context, db bun.IDB, player raffletypes.PlayerID) (raffletypes.Amount, error) {
	return f.wallet.BalanceOf(ctx, db, player)
}

var _ rafflepayout.Executor = (*FakePayout)(nil)

// ------------------------
// Fake Publisher
// ------------------------

type published struct {
	topic string
	msg   *message.Message
}

type FakePublisher struct {
	mu       sync.Mutex
	messages []published

	PublishFunc func(topic string, msgs ...*message.Message) error
}

func (f *FakePublisher) Publish(topic string, msgs ...*message.Message) error {
	f.mu.Lock()
	for _, m := range msgs {
		f.messages = append(f.messages, published{topic: topic, msg: m})
	}
	f.mu.Unlock()
	if f.PublishFunc != nil {
		return f.PublishFunc(topic, msgs...)
	}
	return nil
}

func (f *FakePublisher) Close() error { return nil }

// Topics returns the metadata topic of every published message in order.
func (f *FakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, p := range f.messages {
		out = append(out, p.msg.Metadata.Get("topic"))
	}
	return out
}

func (f *FakePublisher) Last() *message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1].msg
}

// ------------------------
// Fake Clock
// ------------------------

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{now: t} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
