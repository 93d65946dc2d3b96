package discussion

import (
	"errors"
	"time"
)

// Config tunes the ambient discussion loop.
type Config struct {
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`

	// SearchProbability is the chance a round enriches its prompt with
	// one search call. Default: 0.15. Negative disables search.
	SearchProbability float64 `yaml:"search_probability"`

	// TranscriptCap bounds the volatile transcript. Default: 24.
	TranscriptCap int `yaml:"transcript_cap"`

	// TopicEvery injects a new topic every N rounds. Default: 10.
	TopicEvery int `yaml:"topic_every"`

	// ContextWindow is how many transcript entries condition each
	// utterance. Default: 6.
	ContextWindow int `yaml:"context_window"`

	// MaxDuration is the age after which Reap stops a session. Default: 2h.
	MaxDuration time.Duration `yaml:"max_duration"`

	// OpenerDelay separates Start from the opening message. Default: 2s.
	OpenerDelay time.Duration `yaml:"opener_delay"`

	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	SearchTimeout   time.Duration `yaml:"search_timeout"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`

	Topics []string `yaml:"topics"`
	Opener string   `yaml:"opener"`
}

// DefaultTopics are the built-in discussion topics.
var DefaultTopics = []string{
	"أتمتة مهام البحث وجلب المعلومات",
	"ما هي أفضل APIs المجانية للبحث؟",
	"كيف نتعامل مع الـ Rate Limiting؟",
	"ما دور الذكاء الاصطناعي في تصنيف المعلومات؟",
	"كيف نضمن جودة البيانات المجمعة؟",
}

// DefaultOpener is the first persona's opening line.
const DefaultOpener = "مرحباً بالجميع! دعونا نناقش كيف يمكننا أتمتة مهام البحث وجلب المعلومات بشكل فعال. ما هي أفضل الأدوات والاستراتيجيات برأيكم؟"

func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = 20 * time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 45 * time.Second
	}
	if c.MaxInterval < c.MinInterval {
		c.MaxInterval = c.MinInterval
	}
	if c.SearchProbability == 0 {
		c.SearchProbability = 0.15
	}
	if c.TranscriptCap <= 0 {
		c.TranscriptCap = 24
	}
	if c.TopicEvery <= 0 {
		c.TopicEvery = 10
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = 6
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 2 * time.Hour
	}
	if c.OpenerDelay < 0 {
		c.OpenerDelay = 0
	} else if c.OpenerDelay == 0 {
		c.OpenerDelay = 2 * time.Second
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 60 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 15 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 250
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.9
	}
	if len(c.Topics) == 0 {
		c.Topics = DefaultTopics
	}
	if c.Opener == "" {
		c.Opener = DefaultOpener
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.MaxInterval > 0 && c.MinInterval > c.MaxInterval {
		errs = append(errs, errors.New("discussion: min_interval exceeds max_interval"))
	}
	if c.SearchProbability > 1 {
		errs = append(errs, errors.New("discussion: search_probability must be at most 1"))
	}
	if c.TranscriptCap > 0 && c.TranscriptCap < 3 {
		errs = append(errs, errors.New("discussion: transcript_cap must be at least 3"))
	}
	return errors.Join(errs...)
}
