package raffleapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	raffleservice "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/application"
	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"github.com/Black-And-White-Club/raffle-bot/app/shared/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Config holds the API settings.
type Config struct {
	JWTSecret      string
	JWTIssuer      string
	EntryRateLimit float64
	EntryBurst     int
}

// HTTPHandlers serves the raffle over HTTP.
type HTTPHandlers struct {
	service raffleservice.Service
	logger  *slog.Logger
}

// NewHTTPHandlers creates the HTTP handlers.
func NewHTTPHandlers(service raffleservice.Service, logger *slog.Logger) *HTTPHandlers {
	return &HTTPHandlers{service: service, logger: logger}
}

// NewRouter builds the chi router. Without a JWT secret the authenticated
// routes are not mounted.
func NewRouter(h *HTTPHandlers, cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var verifier *TokenVerifier
	var limiter *PlayerRateLimiter
	if cfg.JWTSecret != "" {
		verifier = NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		limiter = NewPlayerRateLimiter(rate.Limit(cfg.EntryRateLimit), cfg.EntryBurst)
	} else {
		h.logger.Warn("JWT secret not configured; player routes disabled")
	}

	r.Route("/raffle", func(r chi.Router) {
		r.Get("/", h.HandleGetRaffle)
		r.Get("/players/{index}", h.HandleGetPlayer)
		r.Get("/upkeep", h.HandleCheckUpkeep)
		r.Post("/upkeep", h.HandlePerformUpkeep)
		r.Get("/resolutions/{requestID}", h.HandleGetResolution)
		if verifier != nil {
			r.With(AuthMiddleware(verifier), RateLimitMiddleware(limiter)).Post("/entries", h.HandleEnter)
		}
	})

	if verifier != nil {
		r.With(AuthMiddleware(verifier)).Get("/players/me/winnings", h.HandleGetWinnings)
	}
	return r
}

type enterRequest struct {
	Amount raffletypes.Amount `json:"amount"`
}

type winningsResponse struct {
	Player   raffletypes.PlayerID `json:"player"`
	Winnings raffletypes.Amount   `json:"winnings"`
}

type playerResponse struct {
	Index  int                  `json:"index"`
	Player raffletypes.PlayerID `json:"player"`
}

type upkeepResponse struct {
	RequestID raffletypes.RequestID `json:"request_id"`
}

func (h *HTTPHandlers) HandleGetRaffle(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetRaffle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HTTPHandlers) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("index must be an integer"))
		return
	}
	player, err := h.service.GetPlayer(r.Context(), index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Index: index, Player: player})
}

func (h *HTTPHandlers) HandleCheckUpkeep(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CheckUpkeep(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *HTTPHandlers) HandlePerformUpkeep(w http.ResponseWriter, r *http.Request) {
	id, err := h.service.PerformUpkeep(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, upkeepResponse{RequestID: id})
}

func (h *HTTPHandlers) HandleGetResolution(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetResolution(r.Context(), raffletypes.RequestID(chi.URLParam(r, "requestID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandlers) HandleEnter(w http.ResponseWriter, r *http.Request) {
	player, ok := PlayerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrMissingToken)
		return
	}

	var req enterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	receipt, err := h.service.Enter(r.Context(), player, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *HTTPHandlers) HandleGetWinnings(w http.ResponseWriter, r *http.Request) {
	player, ok := PlayerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrMissingToken)
		return
	}
	amount, err := h.service.GetWinnings(r.Context(), player)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, winningsResponse{Player: player, Winnings: amount})
}

// fail maps service errors to HTTP statuses.
func (h *HTTPHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed",
			attr.String("path", r.URL.Path),
			attr.String("request_id", middleware.GetReqID(r.Context())),
			attr.Error(err),
		)
		writeError(w, status, errors.New(http.StatusText(status)))
		return
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, raffletypes.ErrInsufficientPayment),
		errors.Is(err, raffletypes.ErrInvalidEntrant),
		errors.Is(err, raffletypes.ErrInvalidRandomWords):
		return http.StatusBadRequest
	case errors.Is(err, raffletypes.ErrRoundNotOpen),
		errors.Is(err, raffletypes.ErrEscrowLimit),
		errors.Is(err, raffletypes.ErrUpkeepNotNeeded),
		errors.Is(err, raffletypes.ErrNoPlayers):
		return http.StatusConflict
	case errors.Is(err, raffletypes.ErrIndexOutOfRange),
		errors.Is(err, raffletypes.ErrUnknownRequestID):
		return http.StatusNotFound
	case errors.Is(err, raffletypes.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
