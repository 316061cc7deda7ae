package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	tablestore "muxmonitor"
	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/records"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Tables    TablesConfig    `yaml:"tables"`
	Metering  MeteringConfig  `yaml:"metering"`
	Checklist ChecklistConfig `yaml:"checklist"`
	Save      SaveConfig      `yaml:"save"`
	RulesPath string          `yaml:"rules_path"`
	Findings  FindingsConfig  `yaml:"findings"`
	Events    EventsConfig    `yaml:"events"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type StoreConfig struct {
	Type            string        `yaml:"type"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	Path            string        `yaml:"path"`
	Prefix          string        `yaml:"prefix"`
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Endpoint        string        `yaml:"endpoint"`
	BaseURL         string        `yaml:"base_url"`
	Token           string        `yaml:"token"`
	Timeout         time.Duration `yaml:"timeout"`
}

type TablesConfig struct {
	Metering  string `yaml:"metering"`
	Checklist string `yaml:"checklist"`
}

type MeteringConfig struct {
	Slots    []string `yaml:"slots"`
	Channels []string `yaml:"channels"`
}

type ChecklistConfig struct {
	Shifts []string `yaml:"shifts"`
}

type SaveConfig struct {
	Optimistic        bool `yaml:"optimistic"`
	DegradeUnreadable bool `yaml:"degrade_unreadable"`
}

type FindingsConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8090",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 20 * time.Second,
		},
		Store:     StoreConfig{Type: "sqlite", Path: "muxmonitor.db", Timeout: 15 * time.Second},
		Tables:    TablesConfig{Metering: "Sheet1", Checklist: "CATATAN_HARIAN"},
		Metering:  MeteringConfig{Slots: records.DefaultSlots, Channels: records.DefaultChannels},
		Checklist: ChecklistConfig{Shifts: records.DefaultShifts},
	}
}

// Load reads the optional YAML file over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}
	str("PORT", &cfg.Server.Port)
	str("STORE_TYPE", &cfg.Store.Type)
	str("STORE_HOST", &cfg.Store.Host)
	num("STORE_PORT", &cfg.Store.Port)
	str("STORE_USER", &cfg.Store.User)
	str("STORE_PASSWORD", &cfg.Store.Password)
	str("STORE_DATABASE", &cfg.Store.Database)
	str("STORE_PATH", &cfg.Store.Path)
	str("SPREADSHEET_ID", &cfg.Store.SpreadsheetID)
	str("GOOGLE_CREDENTIALS_FILE", &cfg.Store.CredentialsFile)
	str("STORE_BASE_URL", &cfg.Store.BaseURL)
	str("STORE_TOKEN", &cfg.Store.Token)
	str("RULES_PATH", &cfg.RulesPath)
	str("DATABASE_URL", &cfg.Findings.DatabaseURL)
	str("NATS_URL", &cfg.Events.NATSURL)
	flag("SAVE_OPTIMISTIC", &cfg.Save.Optimistic)
	flag("SAVE_DEGRADE_UNREADABLE", &cfg.Save.DegradeUnreadable)
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Server.Port) == "" {
		problems = append(problems, "server.port is required")
	}
	if strings.TrimSpace(c.Tables.Metering) == "" || strings.TrimSpace(c.Tables.Checklist) == "" {
		problems = append(problems, "tables.metering and tables.checklist are required")
	}
	if c.Tables.Metering == c.Tables.Checklist {
		problems = append(problems, "metering and checklist tables must differ")
	}
	if len(c.Metering.Slots) == 0 {
		problems = append(problems, "metering.slots must not be empty")
	}
	for _, slot := range c.Metering.Slots {
		if _, err := time.Parse("15:04", slot); err != nil {
			problems = append(problems, fmt.Sprintf("metering slot %q is not HH:MM", slot))
		}
	}
	if len(c.Checklist.Shifts) == 0 {
		problems = append(problems, "checklist.shifts must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) TableStore() tablestore.StoreConfig {
	s := c.Store
	return tablestore.StoreConfig{
		Type: s.Type, Host: s.Host, Port: s.Port, User: s.User, Password: s.Password,
		Database: s.Database, SSLMode: s.SSLMode, Path: s.Path, Prefix: s.Prefix,
		SpreadsheetID: s.SpreadsheetID, CredentialsFile: s.CredentialsFile, Endpoint: s.Endpoint,
		BaseURL: s.BaseURL, Token: s.Token, Timeout: s.Timeout,
	}
}

func (c Config) ServiceOptions() monitoring.Options {
	return monitoring.Options{
		MeteringTable:     c.Tables.Metering,
		ChecklistTable:    c.Tables.Checklist,
		Slots:             c.Metering.Slots,
		Channels:          c.Metering.Channels,
		Shifts:            c.Checklist.Shifts,
		DegradeUnreadable: c.Save.DegradeUnreadable,
		Optimistic:        c.Save.Optimistic,
		Timeout:           c.TableStore().CallTimeout(),
	}
}
