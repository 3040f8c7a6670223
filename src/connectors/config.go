package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL            string        `envconfig:"KIS_BASE_URL" default:"https://openapivts.koreainvestment.com:29443"`
	AppKey             string        `envconfig:"KIS_APP_KEY"`
	AppSecret          string        `envconfig:"KIS_APP_SECRET"`
	AppKeyEncrypted    string        `envconfig:"KIS_APP_KEY_ENC"`
	AppSecretEncrypted string        `envconfig:"KIS_APP_SECRET_ENC"`
	AccessToken        string        `envconfig:"KIS_ACCESS_TOKEN"`
	AccountNumber      string        `envconfig:"KIS_ACCOUNT_NUMBER"`
	AccountProductCode string        `envconfig:"KIS_ACCOUNT_PRODUCT_CODE" default:"01"`
	MockTrading        bool          `envconfig:"KIS_MOCK_TRADING" default:"true"`
	RequestTimeout     time.Duration `envconfig:"KIS_REQUEST_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
