package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coilscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"coilscan.reports"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"500ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Binance struct {
		RESTURL        string        `yaml:"rest_url" default:"https://api.binance.com"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws"`
		PageSize       int           `yaml:"page_size" default:"1000"`
		RatePerSec     float64       `yaml:"rate_per_sec" default:"5"`
		Burst          int           `yaml:"burst" default:"5"`
		Timeout        time.Duration `yaml:"timeout" default:"15s"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"binance"`
	Universe UniverseConfig `yaml:"universe"`
	Scan     ScanConfig     `yaml:"scan"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	MA       MAConfig       `yaml:"ma"`
	MTFA     MTFAConfig     `yaml:"mtfa"`
}

// UniverseConfig selects the instruments eligible for a scan.
type UniverseConfig struct {
	MarketType     string   `yaml:"market_type" default:"spot"`
	QuoteAsset     string   `yaml:"quote_asset" default:"USDT"`
	IncludePattern string   `yaml:"include_pattern" default:".*USDT$"`
	Exclude        []string `yaml:"exclude"`
	Explicit       []string `yaml:"explicit"`
}

// ScanConfig drives the ingestion run and the scheduler.
type ScanConfig struct {
	Interval    time.Duration     `yaml:"interval" default:"1h"`
	Timeframes  []string          `yaml:"timeframes"`
	Workers     int               `yaml:"workers" default:"8"`
	MaxAttempts int               `yaml:"max_attempts" default:"3"`
	BackoffBase time.Duration     `yaml:"backoff_base" default:"1s"`
	FullRefresh bool              `yaml:"full_refresh"`
	Origin      string            `yaml:"origin"`       // e.g. "2025-06-01T00:00:00Z"
	OriginByTF  map[string]string `yaml:"origin_by_tf"` // per-timeframe override
}

// MAConfig fixes the moving-average windows the feature engine computes.
type MAConfig struct {
	EMAFast     int     `yaml:"ema_fast" default:"21"`
	EMAMid      int     `yaml:"ema_mid" default:"40"`
	SMAMid      int     `yaml:"sma_mid" default:"50"`
	SMABase     int     `yaml:"sma_base" default:"150"`
	BBWindow    int     `yaml:"bb_window" default:"20"`
	BBK         float64 `yaml:"bb_k" default:"2.0"`
	ATRWindow   int     `yaml:"atr_window" default:"14"`
	SlopeWindow int     `yaml:"slope_window" default:"100"`
}

// CoilStageConfig gates the consolidation stage on the finest timeframe.
type CoilStageConfig struct {
	Timeframe       string   `yaml:"timeframe" default:"1h"`
	MaxWidthPct     float64  `yaml:"max_width_pct" default:"3.0"`
	MaxVolRatio     float64  `yaml:"max_vol_ratio" default:"1.2"`
	MinBars         int      `yaml:"min_bars" default:"10"`
	MinFastSlopePct *float64 `yaml:"min_fast_slope_pct"` // optional floor; nil disables the check
	SlopeWindow     int      `yaml:"slope_window" default:"100"`
}

// CoilSubConfig is the optional "also coiled" sub-condition of the confirm stage.
type CoilSubConfig struct {
	MaxWidthPct float64 `yaml:"max_width_pct" default:"8.0"`
	MaxVolRatio float64 `yaml:"max_vol_ratio" default:"1.2"`
	MinBars     int     `yaml:"min_bars" default:"4"`
}

// AlignSubConfig is the optional "aligned/turning up" sub-condition: slope
// floors for the fast EMA and the mid SMA.
type AlignSubConfig struct {
	MinFastSlopePct   float64 `yaml:"min_fast_slope_pct"`
	MinSMAMidSlopePct float64 `yaml:"min_sma_mid_slope_pct"`
}

// ConfirmStageConfig gates the cross-timeframe confirmation stage.
// Sub-conditions left nil are absent: they are excluded from the combinator
// rather than treated as true or false.
type ConfirmStageConfig struct {
	Timeframe   string          `yaml:"timeframe" default:"4h"`
	Mode        string          `yaml:"mode" default:"either"` // either | and
	Coil        *CoilSubConfig  `yaml:"coil"`
	Align       *AlignSubConfig `yaml:"align"`
	SlopeWindow int             `yaml:"slope_window" default:"100"`
}

// TrendStageConfig gates the trend confirmation stage on the coarsest timeframe.
type TrendStageConfig struct {
	Timeframe       string  `yaml:"timeframe" default:"1d"`
	MinBaseSlopePct float64 `yaml:"min_base_slope_pct"`
	TolerancePct    float64 `yaml:"tolerance_pct"`
	SlopeWindow     int     `yaml:"slope_window" default:"100"`
}

// PipelineConfig wires the staged gate together.
type PipelineConfig struct {
	EnabledStages []string           `yaml:"enabled_stages"`
	Coil          CoilStageConfig    `yaml:"coil"`
	Confirm       ConfirmStageConfig `yaml:"confirm"`
	Trend         TrendStageConfig   `yaml:"trend"`
}

// MTFAConfig configures the multi-timeframe agreement aggregator.
type MTFAConfig struct {
	Enabled        bool               `yaml:"enabled"`
	Periods        []int              `yaml:"periods"`
	Weights        map[string]float64 `yaml:"weights"`
	MismatchDampen float64            `yaml:"mismatch_dampen" default:"0.1"`
	Thresholds     struct {
		Strong   float64 `yaml:"strong" default:"0.8"`
		Moderate float64 `yaml:"moderate" default:"0.6"`
		Weak     float64 `yaml:"weak" default:"0.4"`
	} `yaml:"thresholds"`
}

// Load reads and parses a YAML configuration file, applying defaults for
// every optional key before validating required ones.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Parse builds a Config from raw YAML bytes.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	applySliceDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// applySliceDefaults covers the slice/map defaults the tag syntax cannot express.
func applySliceDefaults(c *Config) {
	if len(c.Scan.Timeframes) == 0 {
		c.Scan.Timeframes = []string{"1h", "4h", "1d"}
	}
	if len(c.Pipeline.EnabledStages) == 0 {
		c.Pipeline.EnabledStages = []string{"coil", "confirm", "trend"}
	}
	if len(c.MTFA.Periods) == 0 {
		c.MTFA.Periods = []int{5, 13, 21, 50, 200}
	}
	if len(c.MTFA.Weights) == 0 {
		c.MTFA.Weights = map[string]float64{"1h": 0.2, "4h": 0.4, "1d": 0.4}
	}
	if c.Pipeline.Coil.MinFastSlopePct == nil {
		v := -0.10
		c.Pipeline.Coil.MinFastSlopePct = &v
	}
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Universe.Explicit = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks structurally required keys. Optional keys always carry
// defaults; only these failures abort startup.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Pipeline.Confirm.Mode != "either" && c.Pipeline.Confirm.Mode != "and" {
		return fmt.Errorf("pipeline.confirm.mode must be 'either' or 'and', got '%s'", c.Pipeline.Confirm.Mode)
	}
	if len(c.Scan.Timeframes) == 0 {
		return fmt.Errorf("scan.timeframes cannot be empty")
	}
	for _, tf := range c.Scan.Timeframes {
		if !validTF(tf) {
			return fmt.Errorf("scan.timeframes contains unsupported timeframe '%s'", tf)
		}
	}
	for tf := range c.MTFA.Weights {
		if !validTF(tf) {
			return fmt.Errorf("mtfa.weights contains unsupported timeframe '%s'", tf)
		}
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be positive")
	}
	if c.Scan.MaxAttempts <= 0 {
		return fmt.Errorf("scan.max_attempts must be positive")
	}
	return nil
}

func validTF(tf string) bool {
	switch tf {
	case "1h", "4h", "1d":
		return true
	default:
		return false
	}
}
