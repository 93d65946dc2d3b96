package ctxengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/majlis/internal/memory"
)

// Section labels, in rendering order.
const (
	LabelSummaries = "ملخصات سابقة"
	LabelKnowledge = "معرفة ذات صلة"
	LabelLessons   = "دروس مستفادة"
	LabelMessages  = "آخر الرسائل"
)

// TruncationMarker ends a context block that was cut to fit the budget.
const TruncationMarker = "\n…[تم اختصار السياق]"

// Retriever finds knowledge documents relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, conversation, query string) []memory.Document
}

// Builder assembles the labeled context block for one request.
type Builder struct {
	store     memory.Store
	retriever Retriever
	cfg       Config
	logger    *slog.Logger
}

// NewBuilder creates a Builder. A nil retriever omits the knowledge section.
func NewBuilder(store memory.Store, retriever Retriever, cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:     store,
		retriever: retriever,
		cfg:       cfg.withDefaults(),
		logger:    logger.With("component", "ctxengine"),
	}
}

// Build returns the context block for conversation. Sections appear in a
// fixed order (summaries, knowledge matching query, lessons, recent
// messages) and empty sections are omitted. Store failures drop the
// affected section. The result never exceeds the configured budget.
func (b *Builder) Build(ctx context.Context, conversation, query string) string {
	var earlier []string

	if sums := b.summaries(ctx, conversation); len(sums) > 0 {
		earlier = append(earlier, section(LabelSummaries, sums))
	}
	if query != "" && b.retriever != nil {
		if docs := b.knowledge(ctx, conversation, query); len(docs) > 0 {
			earlier = append(earlier, section(LabelKnowledge, docs))
		}
	}
	if lessons := b.lessons(ctx, conversation); len(lessons) > 0 {
		earlier = append(earlier, section(LabelLessons, lessons))
	}

	var messages string
	if msgs := b.messages(ctx, conversation); len(msgs) > 0 {
		messages = section(LabelMessages, msgs)
	}

	return fit(strings.Join(earlier, "\n"), messages, b.cfg.MaxChars, b.cfg.MessageShare)
}

func section(label string, lines []string) string {
	return label + ":\n" + strings.Join(lines, "\n") + "\n"
}

// fit joins earlier and messages within budget runes. When the whole text
// does not fit, it is cut from the tail and TruncationMarker appended; a
// share of the budget is kept for the messages section so it survives
// oversized earlier sections.
func fit(earlier, messages string, budget int, share float64) string {
	if budget <= 0 {
		return ""
	}
	er, mr := []rune(earlier), []rune(messages)
	sep := 0
	if len(er) > 0 && len(mr) > 0 {
		sep = 1
	}
	if len(er)+sep+len(mr) <= budget {
		return join(earlier, messages)
	}

	marker := []rune(TruncationMarker)
	avail := budget - len(marker)
	if avail <= 0 {
		return string(marker[:budget])
	}

	reserve := 0
	if len(mr) > 0 {
		reserve = min(len(mr)+sep, int(float64(avail)*share))
	}
	if len(er) > avail-reserve {
		er = er[:max(avail-reserve, 0)]
	}
	rest := avail - len(er)
	if len(er) > 0 && len(mr) > 0 {
		rest -= sep
	}
	if len(mr) > rest {
		mr = mr[:max(rest, 0)]
	}
	return join(string(er), string(mr)) + string(marker)
}

func join(earlier, messages string) string {
	switch {
	case earlier == "":
		return messages
	case messages == "":
		return earlier
	default:
		return earlier + "\n" + messages
	}
}

func (b *Builder) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.cfg.StoreTimeout)
}

func (b *Builder) summaries(ctx context.Context, conv string) []string {
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()
	sums, err := b.store.RecentSummaries(ctx, conv, b.cfg.RecentSummaries)
	if err != nil {
		b.logger.Warn("ctxengine: summaries unavailable", "conversation", conv, "error", err)
		return nil
	}
	lines := make([]string, 0, len(sums))
	for _, s := range sums {
		lines = append(lines, "- "+s.Text)
	}
	return lines
}

func (b *Builder) knowledge(ctx context.Context, conv, query string) []string {
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()
	docs := b.retriever.Retrieve(ctx, conv, query)
	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("- [%s] %s", d.Title, d.Content))
	}
	return lines
}

func (b *Builder) lessons(ctx context.Context, conv string) []string {
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()
	lessons, err := b.store.RecentLessons(ctx, conv, b.cfg.RecentLessons)
	if err != nil {
		b.logger.Warn("ctxengine: lessons unavailable", "conversation", conv, "error", err)
		return nil
	}
	lines := make([]string, 0, len(lessons))
	for _, l := range lessons {
		mark := "✓"
		if l.Outcome == memory.OutcomeFailure {
			mark = "✗"
		}
		lines = append(lines, fmt.Sprintf("- %s %s", mark, l.Text))
	}
	return lines
}

func (b *Builder) messages(ctx context.Context, conv string) []string {
	ctx, cancel := b.storeCtx(ctx)
	defer cancel()
	msgs, err := b.store.RecentMessages(ctx, conv, b.cfg.RecentMessages)
	if err != nil {
		b.logger.Warn("ctxengine: messages unavailable", "conversation", conv, "error", err)
		return nil
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return lines
}
