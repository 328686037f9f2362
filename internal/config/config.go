package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Documented fallbacks for the feeder parameters (Smart Feed 2nd gen
// hardware defaults).
const (
	DefaultPortionWeightGrams   = 15.0
	DefaultCapacityGrams        = 2770.0
	DefaultRefillThreshold      = 25000.0
	DefaultLowFoodBaselineGrams = 80.0
	DefaultLowFoodLookbackDays  = 4.0
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	PetSafe struct {
		BaseURL     string `yaml:"base_url"`
		TokenFile   string `yaml:"token_file"`
		ThingName   string `yaml:"thing_name"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"petsafe"`
	Feeder FeederConfig `yaml:"feeder"`
	Schedule struct {
		StatusCron  string `yaml:"status_cron"`
		SummaryCron string `yaml:"summary_cron"`
	} `yaml:"schedule"`
	Storage struct {
		StateFile       string `yaml:"state_file"`
		RawCacheFile    string `yaml:"raw_cache_file"`
		CallGateFile    string `yaml:"call_gate_file"`
		MinCallInterval int    `yaml:"min_call_interval_seconds"`
		SQLitePath      string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Proxy string `yaml:"proxy"`
}

// FeederConfig holds the physical feeder parameters.
type FeederConfig struct {
	PortionWeightGrams   float64
	CapacityGrams        float64
	RefillThresholdA     float64
	RefillThresholdB     float64
	LowFoodBaselineGrams float64
	LowFoodLookbackDays  float64
	LowDaysAlert         float64
}

// UnmarshalYAML decodes the feeder section tolerantly: a non-numeric value
// warns and decodes to zero, and normalizeFeederParams later substitutes
// the documented default. A typo in one tunable must not kill the run.
func (f *FeederConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		PortionWeightGrams   yaml.Node `yaml:"portion_weight_grams"`
		CapacityGrams        yaml.Node `yaml:"capacity_grams"`
		RefillThresholdA     yaml.Node `yaml:"refill_threshold_a"`
		RefillThresholdB     yaml.Node `yaml:"refill_threshold_b"`
		LowFoodBaselineGrams yaml.Node `yaml:"low_food_baseline_grams"`
		LowFoodLookbackDays  yaml.Node `yaml:"low_food_lookback_days"`
		LowDaysAlert         yaml.Node `yaml:"low_days_alert"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	f.PortionWeightGrams = floatOrZero(&raw.PortionWeightGrams, "portion_weight_grams")
	f.CapacityGrams = floatOrZero(&raw.CapacityGrams, "capacity_grams")
	f.RefillThresholdA = floatOrZero(&raw.RefillThresholdA, "refill_threshold_a")
	f.RefillThresholdB = floatOrZero(&raw.RefillThresholdB, "refill_threshold_b")
	f.LowFoodBaselineGrams = floatOrZero(&raw.LowFoodBaselineGrams, "low_food_baseline_grams")
	f.LowFoodLookbackDays = floatOrZero(&raw.LowFoodLookbackDays, "low_food_lookback_days")
	f.LowDaysAlert = floatOrZero(&raw.LowDaysAlert, "low_days_alert")
	return nil
}

func floatOrZero(n *yaml.Node, name string) float64 {
	if n.Kind == 0 {
		// Key absent.
		return 0
	}
	var v float64
	if err := n.Decode(&v); err != nil {
		log.Printf("[WARN] non-numeric %s %q, will use default", name, n.Value)
		return 0
	}
	return v
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("PETSAFE_BASE_URL"); v != "" {
		cfg.PetSafe.BaseURL = v
	}
	if v := os.Getenv("PETSAFE_TOKEN_FILE"); v != "" {
		cfg.PetSafe.TokenFile = v
	}
	if v := os.Getenv("PETSAFE_THING_NAME"); v != "" {
		cfg.PetSafe.ThingName = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_STATUS"); v != "" {
		cfg.Schedule.StatusCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("PORTION_WEIGHT_GRAMS"); v != "" {
		if g, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Feeder.PortionWeightGrams = g
		}
	}
	if v := os.Getenv("FEEDER_CAPACITY_GRAMS"); v != "" {
		if g, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Feeder.CapacityGrams = g
		}
	}

	// Defaults
	if cfg.PetSafe.BaseURL == "" {
		cfg.PetSafe.BaseURL = "https://platform.cloud.petsafe.net"
	}
	if cfg.PetSafe.TokenFile == "" {
		cfg.PetSafe.TokenFile = "tokens.json"
	}
	if cfg.PetSafe.HistoryDays <= 0 {
		cfg.PetSafe.HistoryDays = 7
	}
	if cfg.Schedule.StatusCron == "" {
		cfg.Schedule.StatusCron = "0 */30 * * * *"
	}
	if cfg.Schedule.SummaryCron == "" {
		cfg.Schedule.SummaryCron = "0 0 8 * * *"
	}
	if cfg.Storage.StateFile == "" {
		cfg.Storage.StateFile = "data/food_level_state.json"
	}
	if cfg.Storage.RawCacheFile == "" {
		cfg.Storage.RawCacheFile = "data/raw_feed_messages.json"
	}
	if cfg.Storage.CallGateFile == "" {
		cfg.Storage.CallGateFile = "data/last_api_call"
	}
	if cfg.Storage.MinCallInterval <= 0 {
		cfg.Storage.MinCallInterval = 60
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/feederbot.db"
	}
	if cfg.Feeder.LowDaysAlert <= 0 {
		cfg.Feeder.LowDaysAlert = 3
	}

	cfg.normalizeFeederParams()

	return cfg, nil
}

// normalizeFeederParams substitutes documented defaults for missing or
// invalid feeder parameters. Bad values degrade to defaults rather than
// failing the run.
func (c *Config) normalizeFeederParams() {
	f := &c.Feeder
	if f.PortionWeightGrams <= 0 {
		if f.PortionWeightGrams < 0 {
			log.Printf("[WARN] invalid portion_weight_grams %.1f, using default %.1f", f.PortionWeightGrams, DefaultPortionWeightGrams)
		}
		f.PortionWeightGrams = DefaultPortionWeightGrams
	}
	if f.CapacityGrams <= 0 {
		if f.CapacityGrams < 0 {
			log.Printf("[WARN] invalid capacity_grams %.1f, using default %.1f", f.CapacityGrams, DefaultCapacityGrams)
		}
		f.CapacityGrams = DefaultCapacityGrams
	}
	if f.RefillThresholdA <= 0 {
		f.RefillThresholdA = DefaultRefillThreshold
	}
	if f.RefillThresholdB <= 0 {
		f.RefillThresholdB = DefaultRefillThreshold
	}
	if f.LowFoodBaselineGrams <= 0 {
		f.LowFoodBaselineGrams = DefaultLowFoodBaselineGrams
	}
	if f.LowFoodLookbackDays <= 0 {
		f.LowFoodLookbackDays = DefaultLowFoodLookbackDays
	}
}

// Validate checks fields required for bot mode. One-shot mode skips this.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.PetSafe.ThingName == "" {
		return fmt.Errorf("petsafe.thing_name is required")
	}
	return nil
}
