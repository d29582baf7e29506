package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. It is constructed once
// in main and passed explicitly into each component.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`

	Export    ExportConfig    `yaml:"export"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
}

// ExportConfig defines the partner export pipeline settings.
type ExportConfig struct {
	// OutputDirs are the mirrored destinations for every export file,
	// typically a local archive copy plus the outbound transfer directory.
	// Every directory must receive the file for an export to count.
	OutputDirs []string `yaml:"output_dirs"`
	FilePrefix string   `yaml:"file_prefix"`

	// CounterPath is the plain-text sequence store shared by all workers.
	CounterPath   string        `yaml:"counter_path"`
	SequenceFloor int64         `yaml:"sequence_floor"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`

	// ShipDateOffsetDays shifts confirmed ship dates before week encoding,
	// reflecting downstream lead time agreed with the partner.
	ShipDateOffsetDays int `yaml:"ship_date_offset_days"`

	// Charset is the partner's single-byte code page for output files.
	Charset string `yaml:"charset"`

	// PolicyVersion selects the encoding rule set (see export.PolicyForVersion).
	PolicyVersion int `yaml:"policy_version"`
}

// WebConfig defines the operator HTTP API settings.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MessagingConfig defines the messaging backend.
type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	OrderEventsTopic    string        `yaml:"order_events_topic"`
	ExportNoticesTopic  string        `yaml:"export_notices_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// Defaults returns a Config with sane defaults. The charset default is the
// partner-documented code page, never the environment's.
func Defaults() *Config {
	return &Config{
		DatabasePath: "pyralink.db",
		LogLevel:     "info",
		Export: ExportConfig{
			OutputDirs:         []string{"export", "outbound"},
			FilePrefix:         "B",
			CounterPath:        "export/last_number.txt",
			SequenceFloor:      20000,
			LockTimeout:        5 * time.Second,
			ShipDateOffsetDays: 60,
			Charset:            "windows-1252",
			PolicyVersion:      2,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8091,
		},
		Messaging: MessagingConfig{
			Backend:             "mqtt",
			OrderEventsTopic:    "pyralink/orders/changed",
			ExportNoticesTopic:  "pyralink/exports",
			OutboxDrainInterval: 5 * time.Second,
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "pyralink",
			},
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the export pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Export.OutputDirs) == 0 {
		return fmt.Errorf("export.output_dirs must name at least one destination")
	}
	if c.Export.FilePrefix == "" {
		return fmt.Errorf("export.file_prefix must not be empty")
	}
	if c.Export.SequenceFloor <= 0 {
		return fmt.Errorf("export.sequence_floor must be positive, got %d", c.Export.SequenceFloor)
	}
	if c.Export.CounterPath == "" {
		return fmt.Errorf("export.counter_path must not be empty")
	}
	if c.Export.LockTimeout <= 0 {
		return fmt.Errorf("export.lock_timeout must be positive")
	}
	switch c.Messaging.Backend {
	case "mqtt", "kafka":
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.Messaging.Backend)
	}
	return nil
}
