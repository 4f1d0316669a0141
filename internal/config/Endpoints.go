package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTrendScoreField = "trend_score"
	DefaultSignalTimeout   = 30 * time.Second

	infuraMainnetURL = "https://mainnet.infura.io/v3/"
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// RPC_URL wins over INFURA_API_KEY. COINDESK_API_ENDPOINT is accepted as an alias of
// TREND_SCORE_ENDPOINT.
func loadEndpointConfig(cfg *Config) error {
	if key := strings.TrimSpace(os.Getenv("INFURA_API_KEY")); key != "" && !isSet("RPC_URL") {
		cfg.RPCURL = infuraMainnetURL + key
	}
	overrideString("RPC_URL", &cfg.RPCURL)

	overrideString("COINDESK_API_ENDPOINT", &cfg.TrendScoreEndpoint)
	overrideString("TREND_SCORE_ENDPOINT", &cfg.TrendScoreEndpoint)
	overrideString("TREND_SCORE_FIELD", &cfg.TrendScoreField)
	if err := overrideSeconds("SIGNAL_TIMEOUT_SECONDS", &cfg.SignalTimeout); err != nil {
		return err
	}

	log.Debug().
		Str("rpc", redactURL(cfg.RPCURL)).
		Str("trendScoreEndpoint", cfg.TrendScoreEndpoint).
		Str("trendScoreField", cfg.TrendScoreField).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// redactURL hides credentials embedded in provider URLs (API keys in the path or userinfo).
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<redacted>"
	}
	return u.Scheme + "://" + u.Host
}
