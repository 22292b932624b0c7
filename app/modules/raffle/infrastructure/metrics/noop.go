package rafflemetrics

import (
	"context"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
)

type noop struct{}

// NewNoop returns metrics that record nothing.
func NewNoop() RaffleMetrics { return noop{} }

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordEntry(context.Context, raffletypes.Amount)                        {}
func (noop) RecordRejection(context.Context, string, string)                        {}
func (noop) RecordWinner(context.Context, raffletypes.Amount)                       {}
func (noop) RecordPayoutFailure(context.Context)                                    {}
func (noop) RecordRandomnessRequest(context.Context)                                {}
func (noop) RecordRoundSnapshot(context.Context, raffletypes.RaffleInfo)            {}
