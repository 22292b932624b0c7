package rafflequeue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpkeeper struct {
	mu    sync.Mutex
	trace []string

	CheckUpkeepFunc         func(ctx context.Context) (*raffletypes.UpkeepStatus, error)
	PerformUpkeepFunc       func(ctx context.Context) (raffletypes.RequestID, error)
	RecoverStaleRequestFunc func(ctx context.Context) (*raffletypes.RequestID, error)
}

func (f *fakeUpkeeper) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *fakeUpkeeper) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *fakeUpkeeper) CheckUpkeep(ctx context.Context) (*raffletypes.UpkeepStatus, error) {
	f.record("CheckUpkeep")
	if f.CheckUpkeepFunc != nil {
		return f.CheckUpkeepFunc(ctx)
	}
	return &raffletypes.UpkeepStatus{}, nil
}

func (f *fakeUpkeeper) PerformUpkeep(ctx context.Context) (raffletypes.RequestID, error) {
	f.record("PerformUpkeep")
	if f.PerformUpkeepFunc != nil {
		return f.PerformUpkeepFunc(ctx)
	}
	return "1", nil
}

func (f *fakeUpkeeper) RecoverStaleRequest(ctx context.Context) (*raffletypes.RequestID, error) {
	f.record("RecoverStaleRequest")
	if f.RecoverStaleRequestFunc != nil {
		return f.RecoverStaleRequestFunc(ctx)
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func needed(context.Context) (*raffletypes.UpkeepStatus, error) {
	return &raffletypes.UpkeepStatus{Needed: true}, nil
}

func TestRunUpkeep(t *testing.T) {
	reissued := raffletypes.RequestID("9")

	tests := []struct {
		name      string
		setup     func(f *fakeUpkeeper)
		wantErr   bool
		wantTrace []string
	}{
		{
			name:      "not needed",
			wantTrace: []string{"RecoverStaleRequest", "CheckUpkeep"},
		},
		{
			name:      "needed",
			setup:     func(f *fakeUpkeeper) { f.CheckUpkeepFunc = needed },
			wantTrace: []string{"RecoverStaleRequest", "CheckUpkeep", "PerformUpkeep"},
		},
		{
			name: "lost race is not an error",
			setup: func(f *fakeUpkeeper) {
				f.CheckUpkeepFunc = needed
				f.PerformUpkeepFunc = func(context.Context) (raffletypes.RequestID, error) {
					return "", &raffletypes.UpkeepNotNeededError{State: raffletypes.StateCalculating}
				}
			},
			wantTrace: []string{"RecoverStaleRequest", "CheckUpkeep", "PerformUpkeep"},
		},
		{
			name: "oracle failure is returned",
			setup: func(f *fakeUpkeeper) {
				f.CheckUpkeepFunc = needed
				f.PerformUpkeepFunc = func(context.Context) (raffletypes.RequestID, error) {
					return "", errors.New("oracle unreachable")
				}
			},
			wantErr:   true,
			wantTrace: []string{"RecoverStaleRequest", "CheckUpkeep", "PerformUpkeep"},
		},
		{
			name: "reissue ends the tick",
			setup: func(f *fakeUpkeeper) {
				f.RecoverStaleRequestFunc = func(context.Context) (*raffletypes.RequestID, error) { return &reissued, nil }
			},
			wantTrace: []string{"RecoverStaleRequest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUpkeeper{}
			if tt.setup != nil {
				tt.setup(f)
			}
			err := RunUpkeep(context.Background(), f, testLogger())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantTrace, f.Trace())
		})
	}
}

func TestTickerScheduler(t *testing.T) {
	performed := make(chan struct{}, 8)
	f := &fakeUpkeeper{CheckUpkeepFunc: needed}
	f.PerformUpkeepFunc = func(context.Context) (raffletypes.RequestID, error) {
		performed <- struct{}{}
		return "1", nil
	}

	s := NewTickerScheduler(10*time.Millisecond, f, testLogger())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	select {
	case <-performed:
	case <-time.After(2 * time.Second):
		t.Fatal("upkeep never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestTickerSchedulerRejectsZeroInterval(t *testing.T) {
	s := NewTickerScheduler(0, &fakeUpkeeper{}, testLogger())
	assert.Error(t, s.Start(context.Background()))
}

func TestUpkeepJobKind(t *testing.T) {
	assert.Equal(t, "raffle_upkeep", UpkeepJob{}.Kind())
}
