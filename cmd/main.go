package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"daytrader/src/connectors"
	"daytrader/src/database"
	"daytrader/src/filtering"
	"daytrader/src/monitoring"
	"daytrader/src/notify"
	"daytrader/src/repository"
	"daytrader/src/security"
	"daytrader/src/server"
	"daytrader/src/trading"
)

var Version string

func setupLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	setupLogger()

	app := cli.NewApp()
	app.Name = "Daytrader CMD"
	app.Usage = "The daytrader command line interface"

	app.Commands = []cli.Command{
		serveCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveCMD = cli.Command{
	Name:        "serve",
	Usage:       "run the trading server",
	Action:      serveAction,
	ArgsUsage:   "",
	Flags:       []cli.Flag{},
	Description: `Run the momentum day-trading server`,
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting daytrader serve CMD")

	dbConfig := database.GetConfig()
	var presets *repository.PresetRepository
	var trades *repository.TradeRepository
	var store trading.TradeStore
	if dbConfig.EnableDB {
		if err := database.InitMainDB(); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
		presets = repository.NewPresetRepository()
		trades = repository.NewTradeRepository()
		store = trades
	}

	kisConfig := connectors.GetConfig()
	if kisConfig.AppKeyEncrypted != "" {
		appKey, err := security.DecryptString(kisConfig.AppKeyEncrypted)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to decrypt broker app key")
		}
		kisConfig.AppKey = appKey
	}
	if kisConfig.AppSecretEncrypted != "" {
		appSecret, err := security.DecryptString(kisConfig.AppSecretEncrypted)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to decrypt broker app secret")
		}
		kisConfig.AppSecret = appSecret
	}
	kis := connectors.NewClient(kisConfig)

	hub := notify.NewHub()
	engine := filtering.NewEngine(kis)

	tradingConfig := trading.GetConfig()

	// The stats sink folds position closes into the controller's daily
	// stats. The controller is constructed below; events only flow once
	// the loops start.
	var controller *trading.Controller
	statsSink := notify.SinkFunc(func(event notify.Event) {
		if controller == nil || event.Type != notify.EventPositionClosed {
			return
		}
		if pnl, ok := event.Data["pnl"].(float64); ok {
			controller.RecordPositionClosed(pnl)
		}
	})

	orders := trading.NewOrderExecutor(tradingConfig, kis, hub)
	signals := trading.NewSignalProcessor(tradingConfig, orders, hub)
	positions := trading.NewPositionManager(tradingConfig, kis, store, notify.MultiSink(hub, statsSink))
	exits := trading.NewExitStrategy(tradingConfig, positions, hub)
	controller = trading.NewController(tradingConfig, signals, orders, positions, exits, hub)

	session := monitoring.NewSessionManager(monitoring.GetConfig(), kis, controller, hub)

	router := server.NewRouter(server.Deps{
		Session:    session,
		Filter:     engine,
		Controller: controller,
		Signals:    signals,
		Orders:     orders,
		Positions:  positions,
		Exits:      exits,
		Hub:        hub,
		Presets:    presets,
		Trades:     trades,
	})

	// Blocks until SIGINT/SIGTERM.
	server.StartServer(server.GetConfig().Port, router)

	logrus.Info("Stopping trading components")
	session.StopSession()
	controller.Stop()

	return nil
}
