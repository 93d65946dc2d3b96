package agent

import "time"

// Config tunes the orchestrator.
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Timeouts   Timeouts         `yaml:"timeouts"`
	Language   Language         `yaml:"language"`

	// RoutePersonas names the persona answering each single-persona route.
	// Unknown or missing names fall back to the first persona.
	RoutePersonas map[Route]string `yaml:"route_personas"`

	// SearchResults is how many results a search request fetches. Default: 3.
	SearchResults int `yaml:"search_results"`

	ReplyTokens int     `yaml:"reply_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Timeouts bound each external call.
type Timeouts struct {
	Generate time.Duration `yaml:"generate"`
	Search   time.Duration `yaml:"search"`
	Store    time.Duration `yaml:"store"`
	Media    time.Duration `yaml:"media"`
}

func (c Config) withDefaults() Config {
	c.Classifier = c.Classifier.withDefaults()
	c.Language = c.Language.withDefaults()
	if c.Timeouts.Generate <= 0 {
		c.Timeouts.Generate = 60 * time.Second
	}
	if c.Timeouts.Search <= 0 {
		c.Timeouts.Search = 15 * time.Second
	}
	if c.Timeouts.Store <= 0 {
		c.Timeouts.Store = 5 * time.Second
	}
	if c.Timeouts.Media <= 0 {
		c.Timeouts.Media = 90 * time.Second
	}
	if c.SearchResults <= 0 {
		c.SearchResults = 3
	}
	if c.ReplyTokens <= 0 {
		c.ReplyTokens = 800
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	if c.RoutePersonas == nil {
		c.RoutePersonas = map[Route]string{
			RouteDirect: "أحمد",
			RouteSearch: "خالد",
			RouteCode:   "يوسف",
			RouteShell:  "يوسف",
		}
	}
	return c
}
