package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "SOSIBOT"

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// DefaultPersona is the instruction sent ahead of every prompt.
const DefaultPersona = "أنت خبير في الأنمي اسمك سوسي. أجب فقط على الأسئلة المتعلقة بالأنمي، وباللغة العربية ألا  " +
	"اذا يوجد اسماء تحتاج للكتابة باللغة الانجليزية ، ويجب أن يكون الرد صحيحًا ومختصرًا جدًا (ثلاث إلى أربع كلمات فقط)." +
	"اذا كان السؤال عن افضل انمي سحر هو بلاك كلوفر, إذا كان السؤال خارج مجال الأنمي ، قل \"هممم\"."

var ErrConfiguration = errors.New("invalid configuration")

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Bot       BotConfig       `mapstructure:"bot"`
	Persona   string          `mapstructure:"persona"   validate:"required"`
	Primary   PrimaryConfig   `mapstructure:"primary"`
	Secondary SecondaryConfig `mapstructure:"secondary"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

type BotConfig struct {
	// Hotwords is a comma separated list, as in GROUP_HOTWORDS.
	Hotwords      string        `mapstructure:"hotwords"`
	ReplyToBot    bool          `mapstructure:"reply_to_bot"`
	ReplyTimeout  time.Duration `mapstructure:"reply_timeout"  validate:"min=0"`
	DedupCapacity int           `mapstructure:"dedup_capacity" validate:"gt=0"`
	DedupRetain   int           `mapstructure:"dedup_retain"   validate:"gt=0,ltefield=DedupCapacity"`
	SentHistory   int           `mapstructure:"sent_history"   validate:"gt=0"`
}

type PrimaryConfig struct {
	Provider    string  `mapstructure:"provider"    validate:"oneof=openai openrouter"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"       validate:"required"`
	BaseURL     string  `mapstructure:"base_url"    validate:"omitempty,url"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens"  validate:"gt=0"`
}

type SecondaryConfig struct {
	URL          string `mapstructure:"url"           validate:"required,url"`
	Model        string `mapstructure:"model"         validate:"required"`
	PromptFormat string `mapstructure:"prompt_format" validate:"required"`
}

type WhatsAppConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	StorePath string `mapstructure:"store_path" validate:"required_if=Enabled true"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// Load reads defaults, the optional toml file at path (config.toml in the working directory when empty) and the
// environment, in increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"primary.api_key": "OPENAI_API_KEY",
		"primary.model":   "OPENAI_MODEL",
		"secondary.model": "OLLAMA_MODEL",
		"bot.hotwords":    "GROUP_HOTWORDS",
	} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("%w: binding %s: %v", ErrConfiguration, env, err)
		}
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("bot.hotwords", "سوسي,يا سوسي")
	v.SetDefault("bot.reply_to_bot", false)
	v.SetDefault("bot.reply_timeout", time.Duration(0))
	v.SetDefault("bot.dedup_capacity", 2000)
	v.SetDefault("bot.dedup_retain", 1000)
	v.SetDefault("bot.sent_history", 50)

	v.SetDefault("persona", DefaultPersona)

	v.SetDefault("primary.provider", ProviderOpenAI)
	v.SetDefault("primary.api_key", "")
	v.SetDefault("primary.model", "gpt-4.1")
	v.SetDefault("primary.base_url", "")
	v.SetDefault("primary.temperature", 0.7)
	v.SetDefault("primary.max_tokens", 32)

	v.SetDefault("secondary.url", "http://localhost:11434/api/generate")
	v.SetDefault("secondary.model", "command-r7b-arabic")
	v.SetDefault("secondary.prompt_format", "\n%s\n\nالرسالة: %s\nردك:\n")

	v.SetDefault("whatsapp.enabled", true)
	v.SetDefault("whatsapp.store_path", "auth_info/session.db")

	v.SetDefault("telegram.bot_token", "")

	v.SetDefault("metrics.listen", "")
}
