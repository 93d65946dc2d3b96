package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"

	"github.com/flemzord/majlis/internal/channel"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string   `yaml:"token"`
	TokenEnv       string   `yaml:"token_env"`
	PollingTimeout int      `yaml:"polling_timeout"`
	AllowedUpdates []string `yaml:"allowed_updates"`
	// AllowChats restricts the bot to these chat IDs. Empty allows all.
	AllowChats       []string `yaml:"allow_chats"`
	MaxMessageLength int      `yaml:"max_message_length"`
	// ParseMode is sent with every reply. Replies rejected for bad
	// entities are resent as plain text.
	ParseMode        string `yaml:"parse_mode"`
	MaxDownloadBytes int64  `yaml:"max_download_bytes"`
	APIURL           string `yaml:"api_url"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.TokenEnv == "" {
		c.TokenEnv = "TELEGRAM_BOT_TOKEN"
	}
	if c.Token == "" {
		c.Token = os.Getenv(c.TokenEnv)
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = channel.TelegramMaxLength
	}
	if c.ParseMode == "" {
		c.ParseMode = "Markdown"
	}
	if c.MaxDownloadBytes == 0 {
		// Bot API getFile refuses files above 20 MB.
		c.MaxDownloadBytes = 20 << 20
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
}

// validate checks configuration field constraints. It is called from
// Telegram.Validate after defaults have been applied.
func (c *Config) validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, fmt.Errorf("telegram: token is required (directly or through %s)", c.TokenEnv))
	} else if !tokenPattern.MatchString(c.Token) {
		errs = append(errs, errors.New("telegram: token format invalid (expected <bot_id>:<hash>)"))
	}

	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL))
	}
	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		errs = append(errs, fmt.Errorf("telegram: polling_timeout must be 0-50, got %d", c.PollingTimeout))
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > channel.TelegramMaxLength {
		errs = append(errs, fmt.Errorf("telegram: max_message_length must be 1-%d, got %d", channel.TelegramMaxLength, c.MaxMessageLength))
	}
	switch c.ParseMode {
	case "Markdown", "MarkdownV2", "HTML", "none":
	default:
		errs = append(errs, fmt.Errorf("telegram: parse_mode must be Markdown, MarkdownV2, HTML or none, got %q", c.ParseMode))
	}
	for _, id := range c.AllowChats {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("telegram: allow_chats entry %q is not a chat ID", id))
		}
	}
	return errors.Join(errs...)
}

// chatAllowed reports whether chatID may talk to the bot.
func (c *Config) chatAllowed(chatID string) bool {
	if len(c.AllowChats) == 0 {
		return true
	}
	for _, id := range c.AllowChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// parseMode returns the parse_mode value sent to the API.
func (c *Config) parseMode() string {
	if c.ParseMode == "none" {
		return ""
	}
	return c.ParseMode
}
