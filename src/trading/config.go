package trading

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Signal processing
	DefaultInvestmentAmount float64       `envconfig:"DEFAULT_INVESTMENT_AMOUNT" default:"1000000"`
	ConfirmationTimeout     time.Duration `envconfig:"SIGNAL_CONFIRMATION_TIMEOUT" default:"30s"`
	MaxPendingSignals       int           `envconfig:"MAX_PENDING_SIGNALS" default:"10"`
	MinSignalVolume         int64         `envconfig:"MIN_SIGNAL_VOLUME" default:"100000"`
	AutoExecutionEnabled    bool          `envconfig:"AUTO_EXECUTION_ENABLED" default:"true"`
	SignalCleanupInterval   time.Duration `envconfig:"SIGNAL_CLEANUP_INTERVAL" default:"10s"`

	// Order execution
	ExecutionInterval time.Duration `envconfig:"ORDER_EXECUTION_INTERVAL" default:"2s"`
	MaxOrderRetries   int           `envconfig:"MAX_ORDER_RETRIES" default:"3"`
	OrderRetryDelay   time.Duration `envconfig:"ORDER_RETRY_DELAY" default:"1s"`

	// Position management
	PositionInterval    time.Duration `envconfig:"POSITION_MONITOR_INTERVAL" default:"5s"`
	TargetProfitPercent float64       `envconfig:"TARGET_PROFIT_PERCENT" default:"3.0"`
	StopLossPercent     float64       `envconfig:"STOP_LOSS_PERCENT" default:"-2.0"`
	MaxHoldHours        float64       `envconfig:"MAX_HOLD_HOURS" default:"6"`

	// Exit strategy
	ExitInterval time.Duration `envconfig:"EXIT_STRATEGY_INTERVAL" default:"60s"`

	// Controller limits
	MaxPositions         int     `envconfig:"MAX_POSITIONS" default:"10"`
	DailyInvestmentLimit float64 `envconfig:"DAILY_INVESTMENT_LIMIT" default:"10000000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
