package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"daytrader/src/filtering"
	"daytrader/src/handler"
	"daytrader/src/monitoring"
	"daytrader/src/notify"
	"daytrader/src/repository"
	"daytrader/src/trading"
)

// Deps carries everything the HTTP surface exposes. Presets and Trades
// stay nil when the database is disabled; their routes are then not
// mounted.
type Deps struct {
	Session    *monitoring.SessionManager
	Filter     *filtering.Engine
	Controller *trading.Controller
	Signals    *trading.SignalProcessor
	Orders     *trading.OrderExecutor
	Positions  *trading.PositionManager
	Exits      *trading.ExitStrategy
	Hub        *notify.Hub
	Presets    *repository.PresetRepository
	Trades     *repository.TradeRepository
}

// NewRouter mounts every endpoint 1:1 onto the core methods.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	if deps.Hub != nil {
		r.Handle("/ws", deps.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/start", handler.StartSessionHandler(deps.Session))
			r.Post("/stop", handler.StopSessionHandler(deps.Session))
			r.Get("/status", handler.SessionStatusHandler(deps.Session))
			r.Post("/threshold", handler.AdjustThresholdHandler(deps.Session))
		})

		r.Post("/threshold/recommend", handler.RecommendThresholdHandler(deps.Filter))
		r.Post("/filter/run", handler.RunFilterHandler(deps.Filter))

		r.Route("/trading", func(r chi.Router) {
			r.Post("/start", handler.StartTradingHandler(deps.Controller))
			r.Post("/stop", handler.StopTradingHandler(deps.Controller))
			r.Get("/summary", handler.TradingSummaryHandler(deps.Controller))
			r.Post("/emergency-stop", handler.EmergencyStopHandler(deps.Controller))
		})

		r.Route("/signals", func(r chi.Router) {
			r.Get("/", handler.ListSignalsHandler(deps.Signals))
			r.Post("/cleanup", handler.CleanupSignalsHandler(deps.Signals))
			r.Post("/{signalID}/confirm", handler.ConfirmSignalHandler(deps.Signals))
			r.Post("/{signalID}/reject", handler.RejectSignalHandler(deps.Signals))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", handler.ListOrdersHandler(deps.Orders))
			r.Post("/", handler.ManualBuyHandler(deps.Controller))
			r.Post("/{orderID}/cancel", handler.CancelOrderHandler(deps.Orders))
		})

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", handler.ListPositionsHandler(deps.Positions))
			r.Post("/{positionID}/close", handler.ClosePositionHandler(deps.Controller))
			r.Post("/liquidate", handler.LiquidateAllHandler(deps.Positions))
			r.Post("/monitor/start", handler.StartComponentHandler(deps.Positions))
			r.Post("/monitor/stop", handler.StopComponentHandler(deps.Positions))
		})

		r.Route("/exit", func(r chi.Router) {
			r.Get("/status", handler.ExitStatusHandler(deps.Exits))
			r.Post("/force", handler.ForceExitHandler(deps.Exits))
			r.Post("/start", handler.StartComponentHandler(deps.Exits))
			r.Post("/stop", handler.StopComponentHandler(deps.Exits))
		})

		if deps.Presets != nil {
			r.Route("/presets", func(r chi.Router) {
				r.Get("/{category}", handler.ListPresetsHandler(deps.Presets))
				r.Get("/{category}/{key}", handler.GetPresetHandler(deps.Presets))
				r.Put("/{category}/{key}", handler.PutPresetHandler(deps.Presets))
				r.Delete("/{category}/{key}", handler.DeletePresetHandler(deps.Presets))
			})
		}

		if deps.Trades != nil {
			r.Get("/trades", handler.ListTradesHandler(deps.Trades))
		}
	})

	return r
}

// StartServer serves the router and blocks until SIGINT or SIGTERM,
// then shuts down gracefully.
func StartServer(port string, router chi.Router) {
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
