package agent

import (
	"strings"

	"golang.org/x/text/cases"
)

// Route is the execution path chosen for a request.
type Route string

// Routes.
const (
	RouteDirect  Route = "direct"
	RouteSearch  Route = "search"
	RouteCode    Route = "code"
	RouteShell   Route = "shell"
	RouteComplex Route = "complex"
)

// ClassifierConfig lists trigger keywords per route. Matching is a
// case-folded substring test; code and shell win over search, which wins
// over complex.
type ClassifierConfig struct {
	Code    []string `yaml:"code"`
	Shell   []string `yaml:"shell"`
	Search  []string `yaml:"search"`
	Complex []string `yaml:"complex"`
}

func (c ClassifierConfig) withDefaults() ClassifierConfig {
	if len(c.Code) == 0 {
		c.Code = []string{"اكتب كود", "اكتب برنامج", "بايثون", "نفذ الكود", "شغل الكود", "احسب", "python", "code", "script"}
	}
	if len(c.Shell) == 0 {
		c.Shell = []string{"أمر shell", "نفذ الأمر", "الطرفية", "bash", "shell", "terminal"}
	}
	if len(c.Search) == 0 {
		c.Search = []string{"ابحث", "بحث عن", "أخبار", "آخر المستجدات", "search", "look up", "latest news"}
	}
	if len(c.Complex) == 0 {
		c.Complex = []string{"خطة", "خطوات", "قارن", "حلل", "مشروع", "استراتيجية", "plan", "compare", "analyze", "step by step"}
	}
	return c
}

// Classifier maps request text to a Route. It is safe for concurrent use.
type Classifier struct {
	order []routeKeywords
}

type routeKeywords struct {
	route    Route
	keywords []string
}

// NewClassifier creates a Classifier from cfg.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	cfg = cfg.withDefaults()
	norm := func(words []string) []string {
		out := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				out = append(out, cases.Fold().String(w))
			}
		}
		return out
	}
	return &Classifier{order: []routeKeywords{
		{RouteCode, norm(cfg.Code)},
		{RouteShell, norm(cfg.Shell)},
		{RouteSearch, norm(cfg.Search)},
		{RouteComplex, norm(cfg.Complex)},
	}}
}

// Classify returns the first route whose keywords appear in text, or
// RouteDirect.
func (c *Classifier) Classify(text string) Route {
	folded := cases.Fold().String(text)
	for _, rk := range c.order {
		for _, k := range rk.keywords {
			if strings.Contains(folded, k) {
				return rk.route
			}
		}
	}
	return RouteDirect
}
