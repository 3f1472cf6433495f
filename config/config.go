package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// BaseConfig is the application configuration root, loaded by go-config
// from config files and environment overrides.
type BaseConfig struct {
	App         App         `koanf:"app" json:"app"`
	Server      Server      `koanf:"server" json:"server"`
	Auth        Auth        `koanf:"auth" json:"auth"`
	Provider    Provider    `koanf:"provider" json:"provider"`
	Recommender Recommender `koanf:"recommender" json:"recommender"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
}

// App holds service identity settings.
type App struct {
	Name    string `koanf:"name" json:"name"`
	Env     string `koanf:"env" json:"env"`
	Version string `koanf:"version" json:"version"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Address string `koanf:"address" json:"address"`
}

// Auth holds token validation settings.
type Auth struct {
	Issuer       string `koanf:"issuer" json:"issuer"`
	Audience     string `koanf:"audience" json:"audience"`
	JWKSEndpoint string `koanf:"jwks_endpoint" json:"jwks_endpoint"`
	Scheme       string `koanf:"scheme" json:"scheme"`
	ContextKey   string `koanf:"context_key" json:"context_key"`
	// Strategy selects how profiles are sourced when provisioning:
	// "upstream" or "header".
	Strategy string `koanf:"strategy" json:"strategy"`
}

// Provider holds the identity provider Backend API settings, used only by
// the upstream strategy.
type Provider struct {
	SecretKey  string `koanf:"secret_key" json:"secret_key"`
	APIBaseURL string `koanf:"api_base_url" json:"api_base_url"`
}

// Recommender holds the generative model settings.
type Recommender struct {
	APIKey string `koanf:"api_key" json:"api_key"`
	Model  string `koanf:"model" json:"model"`
}

// Persistence holds database settings.
type Persistence struct {
	Debug                 bool   `koanf:"debug" json:"debug"`
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
}

// Validate will run validation rules
func (a BaseConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Auth),
		validation.Field(&a.Persistence),
	)
}

// Validate will run validation rules
func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Issuer, validation.Required),
		validation.Field(&a.Strategy, validation.In("", "upstream", "header")),
	)
}

// Validate will run validation rules
func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required),
		validation.Field(&p.DSN, validation.Required),
	)
}

func (a BaseConfig) GetApp() App                 { return a.App }
func (a BaseConfig) GetServer() Server           { return a.Server }
func (a BaseConfig) GetAuth() Auth               { return a.Auth }
func (a BaseConfig) GetProvider() Provider       { return a.Provider }
func (a BaseConfig) GetRecommender() Recommender { return a.Recommender }
func (a BaseConfig) GetPersistence() Persistence { return a.Persistence }

func (a App) GetName() string { return a.Name }
func (a App) GetEnv() string  { return a.Env }

// GetVersion returns the advertised build version.
func (a App) GetVersion() string {
	if a.Version == "" {
		return "0.0.0"
	}
	return a.Version
}

// GetAddress returns the listener address with a sane default.
func (s Server) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

func (a Auth) GetIssuer() string   { return a.Issuer }
func (a Auth) GetAudience() string { return a.Audience }

func (a Auth) GetJWKSEndpoint() string { return a.JWKSEndpoint }

func (a Auth) GetAuthScheme() string { return a.Scheme }

func (a Auth) GetContextKey() string { return a.ContextKey }

// GetProviderStrategy defaults to the upstream fetch strategy.
func (a Auth) GetProviderStrategy() string {
	if a.Strategy == "" {
		return "upstream"
	}
	return a.Strategy
}

func (p Provider) GetSecretKey() string  { return p.SecretKey }
func (p Provider) GetAPIBaseURL() string { return p.APIBaseURL }

func (r Recommender) GetAPIKey() string { return r.APIKey }
func (r Recommender) GetModel() string  { return r.Model }

func (p Persistence) GetDebug() bool    { return p.Debug }
func (p Persistence) GetDriver() string { return p.Driver }
func (p Persistence) GetDSN() string    { return p.DSN }

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 5 * time.Second
	}
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}
