package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog/log"

	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
)

// Bot modes. Anything other than these halts the bot.
const (
	ModeLive     = "live"
	ModeSimulate = "simulate"

	RunModeOnce     = "once"
	RunModeSchedule = "schedule"

	CompositionSourceDefault = "default"
	CompositionSourceTotal   = "total"
)

var (
	ErrMissingEnv   = errors.New("required configuration is missing")
	ErrInvalidValue = errors.New("configuration value is invalid")
)

// Config holds all application configuration. It is built once at startup by Load and passed
// explicitly to every component.
type Config struct {
	// Signing
	PrivateKey string
	ChainID    uint64 // 0 asks the node

	// Endpoints (see Endpoints.go)
	RPCURL             string
	TrendScoreEndpoint string
	TrendScoreField    string
	SignalTimeout      time.Duration

	// Contracts
	SetTokenAddress    common.Address // Zero means read AddressesFile
	AddressesFile      string
	TradeModule        common.Address
	DebtIssuanceModule common.Address
	SetTokenCreator    common.Address
	PriceOracle        common.Address
	UniswapRouter      common.Address
	Assets             types.AssetPair
	CompositionSource  string
	MaxPriceAge        time.Duration

	// Strategy (see Parameters.go)
	Strategy           types.StrategyParameters
	StrategyConfigName string

	// Runtime
	Mode             string
	RunMode          string
	Schedule         string
	TxConfirmTimeout time.Duration
	LogLevel         string
	LogFormat        string
	LogFile          string // Optional JSON copy of the log
	WebPort          string
	DB               DBSettings
}

// DBSettings selects the cycle history store. An empty Driver disables persistence.
type DBSettings struct {
	Driver   string // "postgres", "sqlite" or ""
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file
}

// Load builds the configuration from built-in defaults, the optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	log.Info().Msg("Loading application configuration...")

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("rpc", redactURL(cfg.RPCURL)).
		Str("setToken", cfg.SetTokenAddress.Hex()).
		Str("mode", cfg.Mode).
		Str("runMode", cfg.RunMode).
		Float64("tolerance", cfg.Strategy.ToleranceFraction).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// Defaults returns the mainnet configuration without credentials.
func Defaults() *Config {
	return &Config{
		TrendScoreField:    DefaultTrendScoreField,
		SignalTimeout:      DefaultSignalTimeout,
		AddressesFile:      DefaultAddressesFile,
		TradeModule:        defaultTradeModule,
		DebtIssuanceModule: defaultDebtIssuanceModule,
		SetTokenCreator:    defaultSetTokenCreator,
		PriceOracle:        defaultPriceOracle,
		UniswapRouter:      defaultUniswapRouter,
		Assets:             DefaultAssetPair(),
		CompositionSource:  CompositionSourceDefault,
		MaxPriceAge:        DefaultMaxPriceAge,
		Strategy:           DefaultStrategyParameters(),
		StrategyConfigName: DefaultStrategyConfigName,
		RunMode:            RunModeOnce,
		Schedule:           DefaultSchedule,
		TxConfirmTimeout:   DefaultTxConfirmTimeout,
		LogLevel:           "info",
		WebPort:            "8080",
		DB: DBSettings{
			Port:    5432,
			SSLMode: "disable",
			Path:    "ethmom.db",
		},
	}
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("PRIVATE_KEY"); ok {
		cfg.PrivateKey = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	}
	if err := overrideUint64("CHAIN_ID", &cfg.ChainID); err != nil {
		return err
	}

	if err := loadEndpointConfig(cfg); err != nil {
		return err
	}
	if err := loadContractConfig(cfg); err != nil {
		return err
	}
	if err := loadStrategyConfig(cfg); err != nil {
		return err
	}

	overrideString("BOT_MODE", &cfg.Mode)
	overrideString("RUN_MODE", &cfg.RunMode)
	overrideString("SCHEDULE", &cfg.Schedule)
	if err := overrideSeconds("TX_CONFIRM_TIMEOUT_SECONDS", &cfg.TxConfirmTimeout); err != nil {
		return err
	}
	overrideString("LOG_LEVEL", &cfg.LogLevel)
	overrideString("LOG_FORMAT", &cfg.LogFormat)
	overrideString("LOG_FILE", &cfg.LogFile)
	overrideString("WEB_PORT", &cfg.WebPort)

	return applyDBEnv(&cfg.DB)
}

func applyDBEnv(db *DBSettings) error {
	overrideString("DB_DRIVER", &db.Driver)
	overrideString("DB_HOST", &db.Host)
	if err := overrideInt("DB_PORT", &db.Port); err != nil {
		return err
	}
	overrideString("DB_USER", &db.User)
	overrideString("DB_PASSWORD", &db.Password)
	overrideString("DB_NAME", &db.Name)
	overrideString("DB_SSLMODE", &db.SSLMode)
	overrideString("DB_PATH", &db.Path)
	return nil
}

// LoadDBSettings reads only the database settings, for tools that never sign.
func LoadDBSettings() (DBSettings, error) {
	db := Defaults().DB
	if err := applyDBEnv(&db); err != nil {
		return DBSettings{}, err
	}
	return db, nil
}

// Validate checks everything shared by the bot and the operator CLI.
func (c *Config) Validate() error {
	var errs []error

	if c.PrivateKey == "" {
		errs = append(errs, fmt.Errorf("%w: PRIVATE_KEY", ErrMissingEnv))
	} else if _, err := hexutil.Decode("0x" + c.PrivateKey); err != nil || len(c.PrivateKey) != 64 {
		errs = append(errs, fmt.Errorf("%w: PRIVATE_KEY must be 32 hex encoded bytes", ErrInvalidValue))
	}
	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("%w: RPC_URL or INFURA_API_KEY", ErrMissingEnv))
	}

	if err := validateAssets(c.Assets); err != nil {
		errs = append(errs, err)
	}
	if c.CompositionSource != CompositionSourceDefault && c.CompositionSource != CompositionSourceTotal {
		errs = append(errs, fmt.Errorf("%w: COMPOSITION_SOURCE must be %q or %q, got %q",
			ErrInvalidValue, CompositionSourceDefault, CompositionSourceTotal, c.CompositionSource))
	}
	if c.MaxPriceAge < 0 {
		errs = append(errs, fmt.Errorf("%w: MAX_PRICE_AGE_SECONDS cannot be negative", ErrInvalidValue))
	}
	if c.TxConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: TX_CONFIRM_TIMEOUT_SECONDS must be positive", ErrInvalidValue))
	}
	if err := ValidateStrategyParameters(c.Strategy); err != nil {
		errs = append(errs, err)
	}

	switch c.DB.Driver {
	case "", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("%w: DB_DRIVER must be postgres, sqlite or empty, got %q", ErrInvalidValue, c.DB.Driver))
	}

	return errors.Join(errs...)
}

// ValidateBot adds the checks needed only by the rebalancing bot.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.TrendScoreEndpoint == "" {
		errs = append(errs, fmt.Errorf("%w: TREND_SCORE_ENDPOINT", ErrMissingEnv))
	}
	if c.Mode != ModeLive && c.Mode != ModeSimulate {
		errs = append(errs, fmt.Errorf("%w: BOT_MODE must be %q or %q, got %q", ErrInvalidValue, ModeLive, ModeSimulate, c.Mode))
	}
	if c.RunMode != RunModeOnce && c.RunMode != RunModeSchedule {
		errs = append(errs, fmt.Errorf("%w: RUN_MODE must be %q or %q, got %q", ErrInvalidValue, RunModeOnce, RunModeSchedule, c.RunMode))
	}
	if c.RunMode == RunModeSchedule && c.Schedule == "" {
		errs = append(errs, fmt.Errorf("%w: SCHEDULE", ErrMissingEnv))
	}
	return errors.Join(errs...)
}

func validateAssets(pair types.AssetPair) error {
	for _, a := range []types.Asset{pair.A, pair.B} {
		if a.Address == (common.Address{}) {
			return fmt.Errorf("%w: asset %s address cannot be zero", ErrInvalidValue, a.Symbol)
		}
		if a.Decimals < 0 || a.Decimals > utils.MaxPrecision {
			return fmt.Errorf("%w: asset %s decimals must be between 0 and %d, got %d", ErrInvalidValue, a.Symbol, utils.MaxPrecision, a.Decimals)
		}
	}
	if pair.A.Address == pair.B.Address {
		return fmt.Errorf("%w: asset A and asset B must differ", ErrInvalidValue)
	}
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", fmt.Errorf("%w: environment variable %s is required but not set", ErrMissingEnv, key)
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(valueStr), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: environment variable %s must be a valid uint64, got: %s", ErrInvalidValue, key, valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: environment variable %s must be a finite float64, got: %s", ErrInvalidValue, key, valueStr)
	}
	return value, nil
}

// getEnvAsAddress retrieves an environment variable as a hex address.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	valueStr = strings.TrimSpace(valueStr)
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, fmt.Errorf("%w: environment variable %s must be a hex address, got: %s", ErrInvalidValue, key, valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

func isSet(key string) bool {
	v, ok := os.LookupEnv(key)
	return ok && strings.TrimSpace(v) != ""
}

func overrideString(key string, dst *string) {
	if isSet(key) {
		*dst = strings.TrimSpace(os.Getenv(key))
	}
}

func overrideUint64(key string, dst *uint64) error {
	if !isSet(key) {
		return nil
	}
	v, err := getEnvAsUint64(key)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func overrideInt(key string, dst *int) error {
	if !isSet(key) {
		return nil
	}
	v, err := getEnvAsUint64(key)
	if err != nil {
		return err
	}
	*dst = int(v)
	return nil
}

func overrideFloat64(key string, dst *float64) error {
	if !isSet(key) {
		return nil
	}
	v, err := getEnvAsFloat64(key)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func overrideSeconds(key string, dst *time.Duration) error {
	if !isSet(key) {
		return nil
	}
	v, err := getEnvAsUint64(key)
	if err != nil {
		return err
	}
	*dst = time.Duration(v) * time.Second
	return nil
}

func overrideAddress(key string, dst *common.Address) error {
	if !isSet(key) {
		return nil
	}
	v, err := getEnvAsAddress(key)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
