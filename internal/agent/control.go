package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/majlis/internal/discussion"
)

// StartDiscussion activates the ambient discussion and returns the notice
// to send. The opener follows through the discussion sink.
func (o *Orchestrator) StartDiscussion(conversation string) string {
	if o.deps.Discussions == nil {
		return o.cfg.Language.TechnicalDifficulty
	}
	if _, err := o.deps.Discussions.Start(conversation); err != nil {
		if errors.Is(err, discussion.ErrAlreadyActive) {
			return o.cfg.Language.AlreadyActive
		}
		o.logger.Error("agent: discussion start failed", "conversation", conversation, "error", err)
		return o.cfg.Language.TechnicalDifficulty
	}
	return o.cfg.Language.StartNotice
}

// StopDiscussion deactivates the ambient discussion.
func (o *Orchestrator) StopDiscussion(conversation string) string {
	if o.deps.Discussions == nil {
		return o.cfg.Language.NotActive
	}
	if err := o.deps.Discussions.Stop(conversation); err != nil {
		return o.cfg.Language.NotActive
	}
	return o.cfg.Language.StopNotice
}

// ClearMemory purges the four memory layers of the conversation.
func (o *Orchestrator) ClearMemory(ctx context.Context, conversation string) string {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if err := o.deps.Store.Clear(sctx, conversation); err != nil {
		o.logger.Error("agent: clear failed", "conversation", conversation, "error", err)
		return o.cfg.Language.TechnicalDifficulty
	}
	return o.cfg.Language.Cleared
}

// Status reports the discussion state and memory counts.
func (o *Orchestrator) Status(ctx context.Context, conversation string) string {
	var b strings.Builder
	b.WriteString("✅ البوت يعمل")
	fmt.Fprintf(&b, "\n🤖 النموذج: %s", o.deps.Provider.ModelName())

	if o.deps.Discussions != nil {
		if st := o.deps.Discussions.Status(conversation); st.Active {
			fmt.Fprintf(&b, "\n🗣 النقاش: نشط، الموضوع: %s، الجولات: %d، السجل: %d", st.Topic, st.Rounds, st.TranscriptLen)
		} else {
			b.WriteString("\n🗣 النقاش: متوقف")
		}
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	stats, err := o.deps.Store.Stats(sctx, conversation)
	if err != nil {
		o.logger.Warn("agent: stats failed", "conversation", conversation, "error", err)
		return b.String()
	}
	fmt.Fprintf(&b, "\n📝 الرسائل: %d | الملخصات: %d | الدروس: %d | المستندات: %d",
		stats.Messages, stats.Summaries, stats.Lessons, stats.Documents)
	return b.String()
}

// Knowledge lists the titles of the conversation's documents.
func (o *Orchestrator) Knowledge(ctx context.Context, conversation string) string {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	docs, err := o.deps.Indexer.List(sctx, conversation)
	if err != nil {
		o.logger.Warn("agent: knowledge listing failed", "conversation", conversation, "error", err)
		return o.cfg.Language.TechnicalDifficulty
	}
	if len(docs) == 0 {
		return o.cfg.Language.KnowledgeEmpty
	}
	var b strings.Builder
	b.WriteString(o.cfg.Language.KnowledgeHeader)
	for i, d := range docs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, d.Title)
	}
	return b.String()
}

// Help lists the commands.
func (o *Orchestrator) Help() string { return o.cfg.Language.Help }
