package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelConfig selects a model and sampling temperature for one capability.
// Extraction and decisioning run well on different models, so every
// capability gets its own knob.
type ModelConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// LLMConfig holds the OpenAI-compatible endpoint and per-capability models.
type LLMConfig struct {
	APIURL    string        `yaml:"api_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`

	Main       ModelConfig `yaml:"main"`
	Validation ModelConfig `yaml:"validation"`
	Session    ModelConfig `yaml:"session"`
	Summary    ModelConfig `yaml:"summary"`
	Decision   ModelConfig `yaml:"decision"`
	Vision     ModelConfig `yaml:"vision"`
}

// CompactConfig controls conversation history compaction.
type CompactConfig struct {
	// Strategy is "summarize" or "shorten".
	Strategy string `yaml:"strategy"`
	// MaxHumanMessages triggers compaction when exceeded.
	MaxHumanMessages int `yaml:"max_human_messages"`
	// MinMessages is the floor below which compaction is a no-op.
	MinMessages int `yaml:"min_messages"`
	// KeepRecent is how many trailing messages the shorten strategy keeps.
	KeepRecent int `yaml:"keep_recent"`
}

// VisionConfig controls the frame pipeline.
type VisionConfig struct {
	WindowSize         int           `yaml:"window_size"`
	EscalationCooldown time.Duration `yaml:"escalation_cooldown"`
	FrameQueueSize     int           `yaml:"frame_queue_size"`
	EventQueueSize     int           `yaml:"event_queue_size"`
	CaptureInterval    time.Duration `yaml:"capture_interval"`
	PollInterval       time.Duration `yaml:"poll_interval"`
}

// BridgeConfig controls the cross-context state bridge.
type BridgeConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxBatch     int           `yaml:"max_batch"`
}

// DirectoryConfig points at the contact and employee files.
type DirectoryConfig struct {
	ContactsPath  string `yaml:"contacts"`
	EmployeesPath string `yaml:"employees"`
	// Watch enables hot-reload of directory files.
	Watch bool `yaml:"watch"`
}

// SMTPConfig configures the email notifier. Password comes from the
// environment, never the file.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	SenderName  string `yaml:"sender_name"`
}

// WebhookConfig is one escalation webhook target.
type WebhookConfig struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
}

// NotifyConfig groups visitor-arrival email and escalation webhooks.
type NotifyConfig struct {
	SMTP     SMTPConfig      `yaml:"smtp"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// RecordConfig controls the per-session threat log.
type RecordConfig struct {
	Dir        string `yaml:"dir"`
	MaxEntries int    `yaml:"max_entries"`
}

// Config is the full gatewarden configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	LogLevel  string          `yaml:"log_level"`
	LLM       LLMConfig       `yaml:"llm"`
	Compact   CompactConfig   `yaml:"compact"`
	Vision    VisionConfig    `yaml:"vision"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Directory DirectoryConfig `yaml:"directory"`
	Notify    NotifyConfig    `yaml:"notify"`
	Record    RecordConfig    `yaml:"record"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen: ":8001",
		LLM: LLMConfig{
			APIURL:     "http://localhost:11434/v1/chat/completions",
			Timeout:    60 * time.Second,
			MaxTokens:  600,
			Main:       ModelConfig{Model: "gemma3n:e2b", Temperature: 0},
			Validation: ModelConfig{Model: "gemma3n:e2b", Temperature: 0.1},
			Session:    ModelConfig{Model: "gemma3n:e2b", Temperature: 0.1},
			Summary:    ModelConfig{Model: "gemma3n:e2b", Temperature: 0.1},
			Decision:   ModelConfig{Model: "qwen3:4b", Temperature: 0},
			Vision:     ModelConfig{Model: "qwen2.5vl:3b", Temperature: 0},
		},
		Compact: CompactConfig{
			Strategy:         "summarize",
			MaxHumanMessages: 10,
			MinMessages:      8,
			KeepRecent:       5,
		},
		Vision: VisionConfig{
			WindowSize:         4,
			EscalationCooldown: 10 * time.Second,
			FrameQueueSize:     10,
			EventQueueSize:     20,
			CaptureInterval:    2 * time.Second,
			PollInterval:       100 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			QueueSize:    50,
			PollInterval: 50 * time.Millisecond,
			MaxBatch:     10,
		},
		Directory: DirectoryConfig{
			ContactsPath:  "data/contacts.json",
			EmployeesPath: "data/employees.json",
			Watch:         true,
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Host:        "smtp.gmail.com",
				Port:        587,
				PasswordEnv: "GATEWARDEN_SMTP_PASSWORD",
				SenderName:  "Security Gate System",
			},
		},
		Record: RecordConfig{
			Dir:        "data/logs",
			MaxEntries: 100,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	switch c.Compact.Strategy {
	case "summarize", "shorten":
	default:
		return fmt.Errorf("config: unknown compact strategy %q", c.Compact.Strategy)
	}
	if c.Vision.WindowSize < 1 {
		return fmt.Errorf("config: vision window_size must be >= 1")
	}
	if c.Vision.FrameQueueSize < 1 || c.Vision.EventQueueSize < 1 {
		return fmt.Errorf("config: vision queue sizes must be >= 1")
	}
	if c.Bridge.QueueSize < 1 || c.Bridge.MaxBatch < 1 {
		return fmt.Errorf("config: bridge queue_size and max_batch must be >= 1")
	}
	if c.Compact.MinMessages < 1 || c.Compact.KeepRecent < 1 {
		return fmt.Errorf("config: compact thresholds must be >= 1")
	}
	return nil
}

// SMTPPassword resolves the notifier password from the environment.
func (c *Config) SMTPPassword() string {
	if c.Notify.SMTP.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Notify.SMTP.PasswordEnv)
}
