// Package config loads mailsift configuration via viper.
//
// Configuration comes from config.yaml (explicit --config path or the
// working directory), with MAILSIFT_* environment overrides. A missing
// file is tolerated; every key has a default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Mailbox holds mailbox provider settings.
type Mailbox struct {
	Provider        string `mapstructure:"provider"` // gmail, imap, mock
	CredentialsPath string `mapstructure:"credentials_path"`
	IMAPHost        string `mapstructure:"imap_host"`
	IMAPPort        string `mapstructure:"imap_port"`
	IMAPUser        string `mapstructure:"imap_user"`
	IMAPPassword    string `mapstructure:"imap_password"`
}

// Classifier holds settings for the LM Studio classifier endpoint.
type Classifier struct {
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key"`
	Model              string  `mapstructure:"model"`
	Temperature        float64 `mapstructure:"temperature"`
	SuggestTemperature float64 `mapstructure:"suggest_temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	SuggestMaxTokens   int     `mapstructure:"suggest_max_tokens"`
	TimeoutSec         int     `mapstructure:"timeout_sec"`
}

// Processing holds triage loop settings.
type Processing struct {
	BatchSize  int    `mapstructure:"batch_size"`
	JunkLabel  string `mapstructure:"junk_label"`
	ThreadMode bool   `mapstructure:"thread_mode"`
	AutoAccept bool   `mapstructure:"auto_accept"`
	UndoDepth  int    `mapstructure:"undo_depth"`
}

// Storage holds on-disk state paths.
type Storage struct {
	LedgerPath      string `mapstructure:"ledger_path"`
	InstructionPath string `mapstructure:"instruction_path"`
	HistoryDir      string `mapstructure:"history_dir"`
	StateDB         string `mapstructure:"state_db"`
	ExportDir       string `mapstructure:"export_dir"`
}

// Display holds terminal output preferences.
type Display struct {
	PreviewLength int `mapstructure:"preview_length"`
}

// Config is the top-level mailsift configuration.
type Config struct {
	Mailbox    Mailbox    `mapstructure:"mailbox"`
	Classifier Classifier `mapstructure:"classifier"`
	Processing Processing `mapstructure:"processing"`
	Storage    Storage    `mapstructure:"storage"`
	Display    Display    `mapstructure:"display"`
}

// Load reads configuration from the given path (or ./config.yaml when
// empty). A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MAILSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// A missing file (searched or explicit) falls back to defaults;
	// a present-but-unparsable file is a real error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mailbox.provider", "gmail")
	v.SetDefault("mailbox.credentials_path", "credentials.json")
	v.SetDefault("mailbox.imap_host", "")
	v.SetDefault("mailbox.imap_port", "993")
	v.SetDefault("mailbox.imap_user", "")
	v.SetDefault("mailbox.imap_password", "")

	v.SetDefault("classifier.base_url", "http://localhost:1234")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "mistral")
	v.SetDefault("classifier.temperature", 0.3)
	v.SetDefault("classifier.suggest_temperature", 0.7)
	v.SetDefault("classifier.max_tokens", 500)
	v.SetDefault("classifier.suggest_max_tokens", 800)
	v.SetDefault("classifier.timeout_sec", 30)

	v.SetDefault("processing.batch_size", 10)
	v.SetDefault("processing.junk_label", "Junk-Candidate")
	v.SetDefault("processing.thread_mode", true)
	v.SetDefault("processing.auto_accept", false)
	v.SetDefault("processing.undo_depth", 10)

	v.SetDefault("storage.ledger_path", "processed_log.jsonl")
	v.SetDefault("storage.instruction_path", "instruction.md")
	v.SetDefault("storage.history_dir", "prompt_history")
	v.SetDefault("storage.state_db", ".mailsift/state.db")
	v.SetDefault("storage.export_dir", "email_exports")

	v.SetDefault("display.preview_length", 500)
}

// DefaultYAML is the commented scaffold written by `mailsift init`.
const DefaultYAML = `# mailsift configuration
mailbox:
  provider: gmail            # gmail, imap, or mock
  credentials_path: credentials.json
  # imap_host: imap.example.com
  # imap_port: "993"
  # imap_user: you@example.com
  # imap_password: app-password

classifier:
  base_url: http://localhost:1234
  model: mistral
  temperature: 0.3
  max_tokens: 500
  timeout_sec: 30

processing:
  batch_size: 10
  junk_label: Junk-Candidate
  thread_mode: true
  auto_accept: false   # apply eligible verdicts without prompting

storage:
  ledger_path: processed_log.jsonl
  instruction_path: instruction.md
  history_dir: prompt_history
  state_db: .mailsift/state.db
  export_dir: email_exports

display:
  preview_length: 500
`
