package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/majlis/internal/knowledge"
	"github.com/flemzord/majlis/internal/memory"
)

// HandleVoiceTranscript answers a transcribed voice message like text.
func (o *Orchestrator) HandleVoiceTranscript(ctx context.Context, req Request) Response {
	if strings.TrimSpace(req.Text) == "" {
		return Response{Text: o.cfg.Language.NoTranscript, Route: RouteDirect}
	}
	return o.HandleText(ctx, req)
}

// HandleVoice transcribes audio and answers it.
func (o *Orchestrator) HandleVoice(ctx context.Context, conversation string, audio []byte, mimeType string, progress ProgressFunc) Response {
	if o.deps.Transcriber == nil {
		return Response{Text: o.cfg.Language.MediaUnavailable, Route: RouteDirect}
	}
	mctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Media)
	defer cancel()

	transcript, err := o.deps.Transcriber.Transcribe(mctx, audio, mimeType)
	if err != nil {
		o.logger.Warn("agent: transcription failed", "conversation", conversation, "error", err)
		return Response{Text: o.cfg.Language.NoTranscript, Route: RouteDirect}
	}
	return o.HandleVoiceTranscript(ctx, Request{Conversation: conversation, Text: transcript, Progress: progress})
}

// HandleImageDescription answers the user's caption about an image, given
// its description. Without a caption the description itself is the answer.
func (o *Orchestrator) HandleImageDescription(ctx context.Context, conversation, description, caption string) Response {
	description = strings.TrimSpace(description)
	if description == "" {
		return Response{Text: o.cfg.Language.NoDescription, Route: RouteDirect}
	}

	userLine := "[صورة]"
	if caption != "" {
		userLine += " " + caption
	}
	o.remember(ctx, conversation, memory.RoleUser, userLine)

	answer := description
	p := o.personaFor(RouteDirect)
	if caption != "" {
		contextBlock, _ := o.gather(ctx, conversation, caption, false)
		prompt := withContext(contextBlock,
			"وصف صورة أرسلها المستخدم:\n"+description,
			"سؤال المستخدم عن الصورة:\n"+caption,
			"أجب عن السؤال بالعربية استناداً إلى الوصف.",
		)
		if out, err := o.generate(ctx, p, prompt); err == nil {
			answer = out
		} else {
			o.logger.Warn("agent: image answer failed", "conversation", conversation, "error", err)
		}
	}
	o.remember(ctx, conversation, p.Name, answer)
	return Response{Text: answer, Route: RouteDirect, Persona: p.Name}
}

// HandleImage describes the image with the caption as the question and
// answers it.
func (o *Orchestrator) HandleImage(ctx context.Context, conversation string, image []byte, mimeType, caption string) Response {
	if o.deps.Describer == nil {
		return Response{Text: o.cfg.Language.MediaUnavailable, Route: RouteDirect}
	}
	question := caption
	if question == "" {
		question = o.cfg.Language.ImageQuestion
	}
	mctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Media)
	defer cancel()

	description, err := o.deps.Describer.Describe(mctx, image, mimeType, question)
	if err != nil {
		o.logger.Warn("agent: image description failed", "conversation", conversation, "error", err)
		return Response{Text: o.cfg.Language.NoDescription, Route: RouteDirect}
	}
	return o.HandleImageDescription(ctx, conversation, description, caption)
}

// IngestResult is the outcome of a document upload.
type IngestResult struct {
	Title string
	Added bool
	Text  string
}

// HandleDocumentIngest decodes an uploaded file and adds it to the
// conversation's knowledge base. Added is false for a duplicate.
func (o *Orchestrator) HandleDocumentIngest(ctx context.Context, conversation, name, mimeType string, data []byte) IngestResult {
	lang := o.cfg.Language
	if limit := o.deps.Indexer.Config().MaxUploadBytes; len(data) > limit {
		return IngestResult{Text: fmt.Sprintf(lang.DocumentTooLarge, limit)}
	}

	title, text, err := knowledge.Decode(name, mimeType, data)
	if err != nil {
		o.logger.Warn("agent: document not decoded", "conversation", conversation, "name", name, "error", err)
		if errors.Is(err, knowledge.ErrUnsupportedDocument) || errors.Is(err, knowledge.ErrEmptyDocument) {
			return IngestResult{Text: fmt.Sprintf(lang.DocumentUnsupported, name)}
		}
		return IngestResult{Text: lang.TechnicalDifficulty}
	}
	return o.IngestText(ctx, conversation, title, text)
}

// IngestText adds already-decoded content to the knowledge base.
func (o *Orchestrator) IngestText(ctx context.Context, conversation, title, content string) IngestResult {
	lang := o.cfg.Language
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	added, err := o.deps.Indexer.Ingest(sctx, conversation, title, content)
	if err != nil {
		o.logger.Warn("agent: ingest failed", "conversation", conversation, "title", title, "error", err)
		if errors.Is(err, knowledge.ErrEmptyDocument) {
			return IngestResult{Title: title, Text: fmt.Sprintf(lang.DocumentUnsupported, title)}
		}
		return IngestResult{Title: title, Text: lang.TechnicalDifficulty}
	}
	if !added {
		return IngestResult{Title: title, Text: fmt.Sprintf(lang.DocumentKnown, title)}
	}
	return IngestResult{Title: title, Added: true, Text: fmt.Sprintf(lang.DocumentAdded, title)}
}
