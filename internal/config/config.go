package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
)

// Source kinds
const (
	SourceMoodle    = "moodle"
	SourceCSV       = "csv"
	SourceComposite = "composite"
)

// Config is read from the environment. Section fields use split_words rather
// than envconfig tags, which would also match bare names such as USER or HOST.
type Config struct {
	Service    Service    `envconfig:"SERVICE"`
	Source     Source     `envconfig:"SOURCE"`
	Moodle     Moodle     `envconfig:"MOODLE"`
	ClickHouse ClickHouse `envconfig:"CLICKHOUSE"`
	SQS        SQS        `envconfig:"SQS"`
	Redis      Redis      `envconfig:"REDIS"`
	Consumer   Consumer   `envconfig:"CONSUMER"`
	Analytics  Analytics  `envconfig:"ANALYTICS"`
}

type Service struct {
	Environment string   `split_words:"true" default:"development"`
	LogLevel    string   `split_words:"true"`
	APIPort     string   `split_words:"true" default:"8080"`
	Host        string   `split_words:"true" default:"localhost:8080"`
	CORSOrigins []string `split_words:"true" default:"*"`
}

// Source selects where snapshots are loaded from
type Source struct {
	Kind   string `split_words:"true" default:"moodle"`
	CSVDir string `split_words:"true" default:"./data"`
}

type Moodle struct {
	Driver             string `split_words:"true" default:"mysql"`
	DSN                string `split_words:"true"`
	TablePrefix        string `split_words:"true" default:"mdl_"`
	MaxOpenConns       int    `split_words:"true" default:"5"`
	MaxIdleConns       int    `split_words:"true" default:"2"`
	ConnMaxLifetimeSec int    `split_words:"true" default:"3600"`
	QueryTimeoutSec    int    `split_words:"true" default:"120"`
}

type ClickHouse struct {
	Enabled            bool   `split_words:"true" default:"false"`
	Host               string `split_words:"true" default:"localhost"`
	Port               string `split_words:"true" default:"9000"`
	Database           string `split_words:"true" default:"default"`
	User               string `split_words:"true" default:""`
	Password           string `split_words:"true" default:""`
	UseTLS             bool   `split_words:"true" default:"false"`
	MaxOpenConns       int    `split_words:"true" default:"5"`
	MaxIdleConns       int    `split_words:"true" default:"2"`
	ConnMaxLifetimeSec int    `split_words:"true" default:"3600"`
}

type SQS struct {
	Enabled  bool   `split_words:"true" default:"false"`
	Endpoint string `split_words:"true"`
	QueueURL string `split_words:"true"`
	Region   string `split_words:"true" default:"us-east-1"`
}

// Redis backs the snapshot cache. An empty Addr selects the in-memory cache.
type Redis struct {
	Addr      string        `split_words:"true"`
	Password  string        `split_words:"true"`
	DB        int           `split_words:"true" default:"0"`
	TTL       time.Duration `split_words:"true" default:"15m"`
	KeyPrefix string        `split_words:"true" default:"moodle-analytics"`
}

// Consumer tunes the SQS to ClickHouse ingestion pipeline
type Consumer struct {
	BatchSizeMax       int           `split_words:"true" default:"2000"`
	BatchTimeoutSec    int           `split_words:"true" default:"10"`
	HealthCheckPort    string        `split_words:"true" default:"8081"`
	ReceiveMaxMessages int32         `split_words:"true" default:"10"`
	WaitTimeSec        int32         `split_words:"true" default:"20"`
	BufferSize         int           `split_words:"true" default:"100"`
	RetryDelay         time.Duration `split_words:"true" default:"1s"`
	MaxRetryDelay      time.Duration `split_words:"true" default:"30s"`
}

// Analytics holds the pipeline options. Profile points at an optional YAML
// file whose values override the environment.
type Analytics struct {
	Profile                 string  `split_words:"true"`
	Timezone                string  `split_words:"true" default:"UTC"`
	Bucket                  string  `split_words:"true" default:"day"`
	Weighting               string  `split_words:"true" default:"standard"`
	CountCreateAsSubmission bool    `split_words:"true" default:"false"`
	MinutesPerAction        float64 `split_words:"true" default:"2"`
	PassGrade               float64 `split_words:"true" default:"50"`
	Clustering              string  `split_words:"true" default:"kmeans"`
	K                       int     `split_words:"true" default:"4"`
	Seed                    int64   `split_words:"true" default:"42"`
	NInit                   int     `split_words:"true" default:"10"`
	MaxIter                 int     `split_words:"true" default:"300"`
	ActiveWindowDays        int     `split_words:"true" default:"30"`
}

// Load reads an optional .env file, then the environment, then the analytics profile
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Analytics.Profile != "" {
		profile, err := LoadProfile(cfg.Analytics.Profile)
		if err != nil {
			return nil, err
		}
		profile.Apply(&cfg.Analytics)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceMoodle, SourceCSV:
	case SourceComposite:
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("source %q requires CLICKHOUSE_ENABLED=true", c.Source.Kind)
		}
	default:
		return fmt.Errorf("unsupported source kind %q (supported: moodle, csv, composite)", c.Source.Kind)
	}

	if c.SQS.Enabled && c.SQS.QueueURL == "" {
		return fmt.Errorf("SQS_QUEUE_URL is required when SQS_ENABLED=true")
	}

	// SQS limits for a single ReceiveMessage call
	if n := c.Consumer.ReceiveMaxMessages; n < 1 || n > 10 {
		return fmt.Errorf("CONSUMER_RECEIVE_MAX_MESSAGES must be within [1,10], got %d", n)
	}
	if w := c.Consumer.WaitTimeSec; w < 0 || w > 20 {
		return fmt.Errorf("CONSUMER_WAIT_TIME_SEC must be within [0,20], got %d", w)
	}
	if c.Consumer.BatchSizeMax <= 0 {
		return fmt.Errorf("CONSUMER_BATCH_SIZE_MAX must be positive, got %d", c.Consumer.BatchSizeMax)
	}
	return nil
}

// Options converts the section into pipeline options
func (a Analytics) Options() (analytics.Options, error) {
	opts := analytics.DefaultOptions()

	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return opts, fmt.Errorf("%w: unknown timezone %q", analytics.ErrInvalidOptions, a.Timezone)
	}
	weighting, err := analytics.WeightingByName(strings.ToLower(a.Weighting))
	if err != nil {
		return opts, err
	}

	opts.Location = loc
	opts.Bucket = analytics.Bucket(strings.ToLower(a.Bucket))
	opts.Weighting = weighting
	opts.CountCreateAsSubmission = a.CountCreateAsSubmission
	opts.MinutesPerAction = a.MinutesPerAction
	opts.PassGrade = a.PassGrade
	opts.Clustering = analytics.ClusterStrategy(strings.ToLower(a.Clustering))
	opts.K = a.K
	opts.Seed = a.Seed
	opts.NInit = a.NInit
	opts.MaxIter = a.MaxIter
	opts.ActiveWindow = time.Duration(a.ActiveWindowDays) * 24 * time.Hour

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
