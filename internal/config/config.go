package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/loykin/pnrwatch/internal/logger"
)

// EnvPrefix is prepended to upper-cased config keys for environment overrides,
// e.g. PNRWATCH_API_TIMEOUT for api.timeout.
const EnvPrefix = "PNRWATCH"

// WebhookEnv is the legacy variable holding the chat webhook URL.
const WebhookEnv = "GOOGLE_CHAT_WEBHOOK"

// DefaultURLTemplate is the ConfirmTkt live status endpoint.
const DefaultURLTemplate = "https://cttrainsapi.confirmtkt.com/api/v2/ctpro/mweb/{pnr}?querysource=ct-web&locale=en&getHighChanceText=true&livePnr=false"

// DefaultReferences is the tracking list used when none is configured.
var DefaultReferences = []string{"8439632790", "8239524689"}

// DefaultHeaders are the static web-client headers the status API expects.
var DefaultHeaders = map[string]string{
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"ApiKey":          "ct-web!2$",
	"CT-Token":        "",
	"CT-Userkey":      "",
	"Cache-Control":   "no-cache",
	"ClientId":        "ct-web",
	"DeviceId":        "d7369386-46dc-4e87-830c-f7653b2b8551",
	"Origin":          "https://www.confirmtkt.com",
	"Pragma":          "no-cache",
	"Referer":         "https://www.confirmtkt.com/",
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
}

// DefaultBody is the fixed JSON request body. It is kept as raw JSON because
// viper lower-cases map keys and the API expects camelCase fields.
const DefaultBody = `{"proPlanName":"CP7","emailId":"","tempToken":""}`

type APIConfig struct {
	URLTemplate string            `mapstructure:"url_template" validate:"required,contains={pnr}"`
	Headers     map[string]string `mapstructure:"headers"`
	Body        string            `mapstructure:"body" validate:"omitempty,json"`
	Timeout     time.Duration     `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries  int               `mapstructure:"max_retries" validate:"gte=1"`
	RetryDelay  time.Duration     `mapstructure:"retry_delay" validate:"gte=0"`
}

// BodyMap decodes the request body. An empty body yields nil.
func (a APIConfig) BodyMap() (map[string]any, error) {
	if strings.TrimSpace(a.Body) == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(a.Body), &m); err != nil {
		return nil, fmt.Errorf("api.body: %w", err)
	}
	return m, nil
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type HistoryConfig struct {
	// DSN selects an optional event sink; see history/factory.
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	// Textfile is written in the node_exporter textfile format after each run.
	Textfile string `mapstructure:"textfile"`
}

// Config is everything one run needs.
type Config struct {
	References []string      `mapstructure:"references" validate:"min=1,dive,required"`
	StatusFile string        `mapstructure:"status_file" validate:"required"`
	EnvFiles   []string      `mapstructure:"env_files"`
	API        APIConfig     `mapstructure:"api"`
	Notify     NotifyConfig  `mapstructure:"notify"`
	Log        logger.Config `mapstructure:"log"`
	History    HistoryConfig `mapstructure:"history"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("references", DefaultReferences)
	v.SetDefault("status_file", "pnr_status_history.json")
	v.SetDefault("env_files", []string{})
	v.SetDefault("api.url_template", DefaultURLTemplate)
	v.SetDefault("api.headers", DefaultHeaders)
	v.SetDefault("api.body", DefaultBody)
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.max_retries", 5)
	v.SetDefault("api.retry_delay", time.Second)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.color", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
}

// Load reads configuration from path (TOML, YAML or JSON by extension; empty
// means defaults only), then applies env files and environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("notify.webhook_url", EnvPrefix+"_NOTIFY_WEBHOOK_URL", WebhookEnv); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// env files only fill variables the real environment leaves unset, so they
	// must be applied before viper resolves env-backed keys in Unmarshal
	for _, p := range v.GetStringSlice("env_files") {
		if err := applyEnvFile(p); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.References = normalizeReferences(cfg.References)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks the loaded values. It is called by Load and should be
// called again after overriding fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SetReferences replaces the tracking list, dropping blanks.
func (c *Config) SetReferences(refs []string) {
	c.References = normalizeReferences(refs)
}

// normalizeReferences trims entries and drops blanks, keeping order.
func normalizeReferences(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, strings.Fields(strings.ReplaceAll(r, ",", " "))...)
	}
	return out
}

func applyEnvFile(path string) error {
	pairs, err := loadEnvFile(path)
	if err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	for k, val := range pairs {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines. Lines starting
// with # are ignored, an "export " prefix and surrounding quotes are stripped.
func loadEnvFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if i := strings.IndexByte(line, '='); i > 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
				v = v[1 : len(v)-1]
			}
			m[k] = v
		}
	}
	return m, nil
}
