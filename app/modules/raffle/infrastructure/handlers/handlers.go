package rafflehandlers

import (
	"log/slog"

	raffleservice "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/application"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
)

// RaffleHandlers handles raffle commands and oracle callbacks.
type RaffleHandlers struct {
	service  raffleservice.Service
	raffleID raffletypes.RaffleID
	logger   *slog.Logger
}

// NewRaffleHandlers creates a new instance of RaffleHandlers.
func NewRaffleHandlers(service raffleservice.Service, raffleID raffletypes.RaffleID, logger *slog.Logger) Handlers {
	return &RaffleHandlers{
		service:  service,
		raffleID: raffleID,
		logger:   logger,
	}
}

// targets reports whether a command addresses this raffle. An empty id
// means the default raffle.
func (h *RaffleHandlers) targets(id raffletypes.RaffleID) bool {
	return id == "" || id == h.raffleID
}
