package rafflequeue

import (
	"context"
	"log/slog"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/riverqueue/river"
)

// UpkeepJob is the periodic automation job of one raffle.
type UpkeepJob struct {
	RaffleID raffletypes.RaffleID `json:"raffle_id"`
}

// Kind returns the job kind for River.
func (UpkeepJob) Kind() string { return "raffle_upkeep" }

// UpkeepWorker runs RunUpkeep for scheduled UpkeepJobs.
type UpkeepWorker struct {
	river.WorkerDefaults[UpkeepJob]
	service Upkeeper
	logger  *slog.Logger
}

// NewUpkeepWorker creates a new upkeep worker.
func NewUpkeepWorker(service Upkeeper, logger *slog.Logger) *UpkeepWorker {
	return &UpkeepWorker{service: service, logger: logger}
}

// Work runs one upkeep tick.
func (w *UpkeepWorker) Work(ctx context.Context, job *river.Job[UpkeepJob]) error {
	w.logger.DebugContext(ctx, "Processing upkeep job",
		attr.Int64("job_id", job.ID),
		attr.RaffleID(string(job.Args.RaffleID)),
		attr.Int("attempt", job.Attempt),
	)
	return RunUpkeep(ctx, w.service, w.logger)
}
