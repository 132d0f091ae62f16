package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Tables    TablesConfig    `mapstructure:"tables"`
	Nango     NangoConfig     `mapstructure:"nango"`
	Forwarder ForwarderConfig `mapstructure:"forwarder"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// StoreConfig selects the record store. Driver "airtable" talks to the remote
// tabular API; "sqlite" keeps records in a local file for development.
type StoreConfig struct {
	Driver     string        `mapstructure:"driver"`
	BaseURL    string        `mapstructure:"base_url"`
	BaseID     string        `mapstructure:"base_id"`
	APIToken   string        `mapstructure:"api_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SQLitePath string        `mapstructure:"sqlite_path"`
}

type NangoConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ForwarderConfig struct {
	URL            string        `mapstructure:"url"`
	Secret         string        `mapstructure:"secret"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

type RelayConfig struct {
	Mode         string   `mapstructure:"mode"`
	SyncModels   []string `mapstructure:"sync_models"`
	DefaultModel string   `mapstructure:"default_model"`
}

// AuthConfig protects the session and tools endpoints. Both mechanisms are
// off when their secret is empty.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	APIKeyHash string        `mapstructure:"api_key_hash"`
}

type RateLimitConfig struct {
	SessionPerMinute int `mapstructure:"session_per_minute"`
}

// TablesConfig maps each store table's logical fields to the column names
// used in the base.
type TablesConfig struct {
	Leads       LeadTable       `mapstructure:"leads"`
	Connections ConnectionTable `mapstructure:"connections"`
	Users       UserTable       `mapstructure:"users"`
}

type LeadTable struct {
	Name         string `mapstructure:"name"`
	SourceID     string `mapstructure:"source_id"`
	LeadName     string `mapstructure:"lead_name"`
	Email        string `mapstructure:"email"`
	Phone        string `mapstructure:"phone"`
	Status       string `mapstructure:"status"`
	Source       string `mapstructure:"source"`
	Business     string `mapstructure:"business"`
	Imported     string `mapstructure:"imported"`
	StatusChange string `mapstructure:"status_change"`
	Connection   string `mapstructure:"connection"`

	BusinessID         string `mapstructure:"business_id"`
	PhoneType          string `mapstructure:"phone_type"`
	Chaser             string `mapstructure:"chaser"`
	LeadType           string `mapstructure:"lead_type"`
	LeadField1         string `mapstructure:"lead_field_1"`
	LeadField2         string `mapstructure:"lead_field_2"`
	LeadField3         string `mapstructure:"lead_field_3"`
	Connected          string `mapstructure:"connected"`
	FirstCallRecording string `mapstructure:"first_call_recording"`
	FirstCallURL       string `mapstructure:"first_call_url"`
	ReportCall         string `mapstructure:"report_call"`
	LastCall           string `mapstructure:"last_call"`
	UserFields         string `mapstructure:"user_fields"`
}

type ConnectionTable struct {
	Name              string `mapstructure:"name"`
	ConnectionID      string `mapstructure:"connection_id"`
	Provider          string `mapstructure:"provider"`
	ProviderConfigKey string `mapstructure:"provider_config_key"`
	ClientID          string `mapstructure:"client_id"`
	Status            string `mapstructure:"status"`
	Environment       string `mapstructure:"environment"`
	Operation         string `mapstructure:"operation"`
	Created           string `mapstructure:"created"`
	UserName          string `mapstructure:"user_name"`
	User              string `mapstructure:"user"`
	UserID            string `mapstructure:"user_id"`
	Chaser            string `mapstructure:"chaser"`
	ChaserID          string `mapstructure:"chaser_id"`
}

type UserTable struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	UserID   string `mapstructure:"user_id"`
	Display  string `mapstructure:"display"`
	Chaser   string `mapstructure:"chaser"`
	ChaserID string `mapstructure:"chaser_id"`
}

const (
	ModeBatched = "batched"
	ModeSingle  = "single"
)

// DefaultTables returns the field mapping of the production base.
func DefaultTables() TablesConfig {
	return TablesConfig{
		Leads: LeadTable{
			Name:         "Leads",
			SourceID:     "SourceID",
			LeadName:     "LeadName",
			Email:        "LeadEmail",
			Phone:        "LeadPhone",
			Status:       "Status",
			Source:       "Source",
			Business:     "Business",
			Imported:     "Imported",
			StatusChange: "status Change",
			Connection:   "Connecters",

			BusinessID:         "BusinessId",
			PhoneType:          "Phone Type",
			Chaser:             "Chaser",
			LeadType:           "LeadType",
			LeadField1:         "LeadField1",
			LeadField2:         "LeadField2",
			LeadField3:         "LeadField3",
			Connected:          "Connected",
			FirstCallRecording: "1st Call Recording",
			FirstCallURL:       "1st Call Recording Url",
			ReportCall:         "Report Call Recording",
			LastCall:           "Last Call",
			UserFields:         "User fields",
		},
		Connections: ConnectionTable{
			Name:              "Connecters",
			ConnectionID:      "ConnectionID",
			Provider:          "Provider",
			ProviderConfigKey: "ProviderConfigKey",
			ClientID:          "ClientID",
			Status:            "Status",
			Environment:       "Environment",
			Operation:         "Operation",
			Created:           "Created",
			UserName:          "Name",
			User:              "User",
			UserID:            "UserID",
			Chaser:            "Chaser",
			ChaserID:          "ChaserID",
		},
		Users: UserTable{
			Name:     "Users",
			Email:    "Email",
			UserID:   "MSpace ID",
			Display:  "Name",
			Chaser:   "Chaser",
			ChaserID: "ChaserID",
		},
	}
}

// Load reads configuration from an optional YAML file, a .env-populated
// environment and the legacy variable names of the relay.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindLegacyEnv(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("read config %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.idle_timeout", time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("store.driver", "airtable")
	v.SetDefault("store.base_url", "https://api.airtable.com")
	v.SetDefault("store.base_id", "")
	v.SetDefault("store.api_token", "")
	v.SetDefault("store.timeout", 20*time.Second)
	v.SetDefault("store.sqlite_path", "data/leadrelay.db")

	v.SetDefault("nango.base_url", "https://api.nango.dev")
	v.SetDefault("nango.secret_key", "")
	v.SetDefault("nango.webhook_secret", "")
	v.SetDefault("nango.timeout", 20*time.Second)

	v.SetDefault("forwarder.url", "")
	v.SetDefault("forwarder.secret", "")
	v.SetDefault("forwarder.timeout", 10*time.Second)
	v.SetDefault("forwarder.max_concurrency", 0)

	v.SetDefault("relay.mode", ModeBatched)
	v.SetDefault("relay.sync_models", []string{"Contact"})
	v.SetDefault("relay.default_model", "Contact")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "leadrelay")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("auth.api_key_hash", "")

	v.SetDefault("rate_limit.session_per_minute", 30)

	t := DefaultTables()
	setTableDefaults(v, "tables.leads", map[string]string{
		"name":          t.Leads.Name,
		"source_id":     t.Leads.SourceID,
		"lead_name":     t.Leads.LeadName,
		"email":         t.Leads.Email,
		"phone":         t.Leads.Phone,
		"status":        t.Leads.Status,
		"source":        t.Leads.Source,
		"business":      t.Leads.Business,
		"imported":      t.Leads.Imported,
		"status_change": t.Leads.StatusChange,
		"connection":    t.Leads.Connection,

		"business_id":          t.Leads.BusinessID,
		"phone_type":           t.Leads.PhoneType,
		"chaser":               t.Leads.Chaser,
		"lead_type":            t.Leads.LeadType,
		"lead_field_1":         t.Leads.LeadField1,
		"lead_field_2":         t.Leads.LeadField2,
		"lead_field_3":         t.Leads.LeadField3,
		"connected":            t.Leads.Connected,
		"first_call_recording": t.Leads.FirstCallRecording,
		"first_call_url":       t.Leads.FirstCallURL,
		"report_call":          t.Leads.ReportCall,
		"last_call":            t.Leads.LastCall,
		"user_fields":          t.Leads.UserFields,
	})
	setTableDefaults(v, "tables.connections", map[string]string{
		"name":                t.Connections.Name,
		"connection_id":       t.Connections.ConnectionID,
		"provider":            t.Connections.Provider,
		"provider_config_key": t.Connections.ProviderConfigKey,
		"client_id":           t.Connections.ClientID,
		"status":              t.Connections.Status,
		"environment":         t.Connections.Environment,
		"operation":           t.Connections.Operation,
		"created":             t.Connections.Created,
		"user_name":           t.Connections.UserName,
		"user":                t.Connections.User,
		"user_id":             t.Connections.UserID,
		"chaser":              t.Connections.Chaser,
		"chaser_id":           t.Connections.ChaserID,
	})
	setTableDefaults(v, "tables.users", map[string]string{
		"name":      t.Users.Name,
		"email":     t.Users.Email,
		"user_id":   t.Users.UserID,
		"display":   t.Users.Display,
		"chaser":    t.Users.Chaser,
		"chaser_id": t.Users.ChaserID,
	})
}

func setTableDefaults(v *viper.Viper, prefix string, fields map[string]string) {
	for key, value := range fields {
		v.SetDefault(prefix+"."+key, value)
	}
}

// bindLegacyEnv keeps the variable names the relay has always been deployed with.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("store.base_id", "STORE_BASE_ID", "AIRTABLE_BASE_ID")
	_ = v.BindEnv("store.api_token", "STORE_API_TOKEN", "AIRTABLE_API_TOKEN")
	_ = v.BindEnv("nango.secret_key", "NANGO_SECRET_KEY")
	_ = v.BindEnv("nango.webhook_secret", "NANGO_WEBHOOK_SECRET")
	_ = v.BindEnv("forwarder.url", "FORWARDER_URL", "N8N_WEBHOOK_URL")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "airtable", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	c.Relay.Mode = strings.ToLower(strings.TrimSpace(c.Relay.Mode))
	switch c.Relay.Mode {
	case ModeBatched, ModeSingle:
	default:
		return fmt.Errorf("unsupported relay mode %q", c.Relay.Mode)
	}

	if c.Forwarder.MaxConcurrency < 0 {
		c.Forwarder.MaxConcurrency = 0
	}
	if c.RateLimit.SessionPerMinute <= 0 {
		c.RateLimit.SessionPerMinute = 30
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
