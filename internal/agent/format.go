package agent

import (
	"fmt"
	"strings"

	"github.com/flemzord/majlis/internal/discussion"
	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/provider"
)

// FormatPersona renders a persona message as "<emoji name>:\n<text>".
func FormatPersona(p multiagent.Persona, text string) string {
	return p.Display() + ":\n" + text
}

// FormatPlan renders a numbered plan under header.
func FormatPlan(header string, steps []string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, s := range steps {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s)
	}
	return b.String()
}

// FormatResults renders search results as a bulleted list.
func FormatResults(results []provider.SearchResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		line := "• " + r.Title
		if r.Snippet != "" {
			line += ": " + r.Snippet
		}
		if r.URL != "" {
			line += " (" + r.URL + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatEvent renders a discussion event for the conversation.
func (o *Orchestrator) FormatEvent(ev discussion.Event) string {
	switch ev.Kind {
	case discussion.EventTopic:
		return fmt.Sprintf(o.cfg.Language.TopicAnnouncement, ev.Text)
	case discussion.EventExpired:
		return o.cfg.Language.DiscussionExpired
	default:
		return FormatPersona(ev.Persona, ev.Text)
	}
}
