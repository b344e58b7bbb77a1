package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		IdleTimeout        time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		// tamaño máximo de un body JSON
		MaxBodyBytes int64 `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Driver       string        `yaml:"driver"` // memory | postgres
		DSN          string        `yaml:"dsn"`
		Schema       string        `yaml:"schema"`
		MaxConns     int32         `yaml:"max_conns"`
		MinConns     int32         `yaml:"min_conns"`
		ConnectRetry time.Duration `yaml:"connect_retry"`
	} `yaml:"storage"`

	Cache struct {
		Kind       string        `yaml:"kind"` // memory | redis | none
		DefaultTTL time.Duration `yaml:"default_ttl"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		Driver      string        `yaml:"driver"` // memory | redis
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
	} `yaml:"rate"`

	Auth struct {
		Issuer    string        `yaml:"issuer"`
		Secret    string        `yaml:"secret"` // HS256
		AccessTTL time.Duration `yaml:"access_ttl"`
		Leeway    time.Duration `yaml:"leeway"`
	} `yaml:"auth"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		PushTopic    string        `yaml:"push_topic"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"kafka"`

	Sagas struct {
		DefaultTTL    time.Duration `yaml:"default_ttl"`
		MaxTTL        time.Duration `yaml:"max_ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"sagas"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	GraphQL struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"graphql"`
}

// Load lee el YAML (si path no es vacío), aplica defaults, overrides por env
// y valida. Sin archivo se arranca sólo con defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	if err := c.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default retorna la configuración de desarrollo (todo en memoria).
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "gateway"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// el cursor SSE puede durar; sin write timeout por defecto
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Storage.MinConns == 0 {
		c.Storage.MinConns = 2
	}
	if c.Storage.ConnectRetry == 0 {
		c.Storage.ConnectRetry = 30 * time.Second
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 2 * time.Minute
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "gw:"
	}
	if c.Rate.Driver == "" {
		c.Rate.Driver = "memory"
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 120
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.Leeway == 0 {
		c.Auth.Leeway = 30 * time.Second
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Kafka.PushTopic == "" {
		c.Kafka.PushTopic = "touch.pushes"
	}
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = 10 * time.Second
	}
	if c.Sagas.DefaultTTL == 0 {
		c.Sagas.DefaultTTL = 30 * time.Second
	}
	if c.Sagas.MaxTTL == 0 {
		c.Sagas.MaxTTL = 5 * time.Minute
	}
	if c.Sagas.SweepInterval == 0 {
		c.Sagas.SweepInterval = 5 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.GraphQL.Path == "" {
		c.GraphQL.Path = "/graphql"
	}
}

// ─── env ───

// envVar liga una variable de entorno a un campo. parse retorna false si
// el valor no se pudo interpretar; en ese caso el campo queda como estaba.
type envVar struct {
	name  string
	parse func(string) bool
}

func str(dst *string) func(string) bool {
	return func(s string) bool { *dst = s; return true }
}

func lower(dst *string) func(string) bool {
	return func(s string) bool { *dst = strings.ToLower(s); return true }
}

func integer[T ~int | ~int32](dst *T) func(string) bool {
	return func(s string) bool {
		n, err := strconv.Atoi(s)
		if err != nil {
			return false
		}
		*dst = T(n)
		return true
	}
}

func boolean(dst *bool) func(string) bool {
	return func(s string) bool {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false
		}
		*dst = b
		return true
	}
}

func duration(dst *time.Duration) func(string) bool {
	return func(s string) bool {
		d, err := time.ParseDuration(s)
		if err != nil {
			return false
		}
		*dst = d
		return true
	}
}

func csv(dst *[]string) func(string) bool {
	return func(s string) bool {
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
		return true
	}
}

func (c *Config) envVars() []envVar {
	return []envVar{
		{"APP_ENV", lower(&c.App.Env)},
		{"APP_VERSION", str(&c.App.Version)},
		{"LOG_LEVEL", lower(&c.Log.Level)},

		{"SERVER_ADDR", str(&c.Server.Addr)},
		{"SERVER_CORS_ALLOWED_ORIGINS", csv(&c.Server.CORSAllowedOrigins)},
		{"SERVER_SHUTDOWN_TIMEOUT", duration(&c.Server.ShutdownTimeout)},

		{"STORAGE_DRIVER", lower(&c.Storage.Driver)},
		{"STORAGE_DSN", str(&c.Storage.DSN)},
		{"STORAGE_SCHEMA", str(&c.Storage.Schema)},
		{"STORAGE_MAX_CONNS", integer(&c.Storage.MaxConns)},
		{"STORAGE_CONNECT_RETRY", duration(&c.Storage.ConnectRetry)},

		{"CACHE_KIND", lower(&c.Cache.Kind)},
		{"CACHE_DEFAULT_TTL", duration(&c.Cache.DefaultTTL)},
		{"REDIS_ADDR", str(&c.Cache.Redis.Addr)},
		{"REDIS_PASSWORD", str(&c.Cache.Redis.Password)},
		{"REDIS_DB", integer(&c.Cache.Redis.DB)},
		{"REDIS_PREFIX", str(&c.Cache.Redis.Prefix)},

		{"RATE_ENABLED", boolean(&c.Rate.Enabled)},
		{"RATE_DRIVER", lower(&c.Rate.Driver)},
		{"RATE_MAX_REQUESTS", integer(&c.Rate.MaxRequests)},
		{"RATE_WINDOW", duration(&c.Rate.Window)},

		{"AUTH_ISSUER", str(&c.Auth.Issuer)},
		{"AUTH_SECRET", str(&c.Auth.Secret)},
		{"AUTH_ACCESS_TTL", duration(&c.Auth.AccessTTL)},

		{"SMTP_HOST", str(&c.SMTP.Host)},
		{"SMTP_PORT", integer(&c.SMTP.Port)},
		{"SMTP_USERNAME", str(&c.SMTP.Username)},
		{"SMTP_PASSWORD", str(&c.SMTP.Password)},
		{"SMTP_FROM", str(&c.SMTP.From)},
		{"SMTP_TLS", lower(&c.SMTP.TLS)},
		{"SMTP_INSECURE_SKIP_VERIFY", boolean(&c.SMTP.InsecureSkipVerify)},

		{"KAFKA_BROKERS", csv(&c.Kafka.Brokers)},
		{"KAFKA_PUSH_TOPIC", str(&c.Kafka.PushTopic)},

		{"SAGAS_DEFAULT_TTL", duration(&c.Sagas.DefaultTTL)},
		{"SAGAS_MAX_TTL", duration(&c.Sagas.MaxTTL)},

		{"METRICS_ENABLED", boolean(&c.Metrics.Enabled)},
		{"GRAPHQL_ENABLED", boolean(&c.GraphQL.Enabled)},
	}
}

// applyEnvOverrides pisa el yaml con el entorno. Las variables vacías se
// ignoran; un valor que no parsea es error de arranque.
func (c *Config) applyEnvOverrides() error {
	var errs []error
	for _, v := range c.envVars() {
		raw := strings.TrimSpace(os.Getenv(v.name))
		if raw == "" {
			continue
		}
		if !v.parse(raw) {
			errs = append(errs, fmt.Errorf("env %s: invalid value %q", v.name, raw))
		}
	}
	return errors.Join(errs...)
}

// Validate revisa combinaciones que no tienen sentido antes de arrancar.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}
	switch c.Cache.Kind {
	case "memory", "none":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}
	if c.Rate.Enabled {
		if c.Rate.MaxRequests <= 0 || c.Rate.Window <= 0 {
			errs = append(errs, errors.New("rate.max_requests and rate.window must be positive"))
		}
		if c.Rate.Driver == "redis" && c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("rate.driver redis needs cache.redis.addr"))
		} else if c.Rate.Driver != "redis" && c.Rate.Driver != "memory" {
			errs = append(errs, fmt.Errorf("rate.driver %q not supported", c.Rate.Driver))
		}
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	} else if strings.EqualFold(c.App.Env, "prod") && len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret must have at least 32 bytes in prod"))
	}
	if c.Sagas.DefaultTTL > c.Sagas.MaxTTL {
		errs = append(errs, errors.New("sagas.default_ttl exceeds sagas.max_ttl"))
	}
	return errors.Join(errs...)
}
