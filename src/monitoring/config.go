package monitoring

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod          time.Duration `envconfig:"SESSION_LOOP_PERIOD" default:"30s"`
	DefaultBuyThreshold float64       `envconfig:"DEFAULT_BUY_THRESHOLD" default:"2.0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
