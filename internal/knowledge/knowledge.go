// Package knowledge implements the per-conversation knowledge base:
// ingestion with content-hash deduplication and keyword retrieval.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/flemzord/majlis/internal/memory"
)

// ErrEmptyDocument is returned when a document has no content.
var ErrEmptyDocument = errors.New("knowledge: empty document")

// Config holds the indexer limits.
type Config struct {
	// MaxDocumentChars truncates content before hashing. Default: 3000.
	MaxDocumentChars int `yaml:"max_document_chars"`

	// MaxTerms is how many leading query words are searched. Default: 5.
	MaxTerms int `yaml:"max_terms"`

	// MaxResults caps retrieved documents. Default: 3.
	MaxResults int `yaml:"max_results"`

	// MaxUploadBytes rejects larger uploads before decoding. Default: 10 MiB.
	MaxUploadBytes int `yaml:"max_upload_bytes"`
}

func (c Config) withDefaults() Config {
	if c.MaxDocumentChars <= 0 {
		c.MaxDocumentChars = 3000
	}
	if c.MaxTerms <= 0 {
		c.MaxTerms = 5
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 3
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	return c
}

// Indexer stores and retrieves knowledge documents.
type Indexer struct {
	store  memory.Store
	cfg    Config
	logger *slog.Logger
}

// NewIndexer creates an Indexer over store.
func NewIndexer(store memory.Store, cfg Config, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "knowledge"),
	}
}

// Config returns the effective configuration.
func (ix *Indexer) Config() Config { return ix.cfg }

// Ingest truncates content to the configured size, hashes it and stores it.
// It returns false when the conversation already holds identical content.
// An empty title is derived from the first line of content.
func (ix *Indexer) Ingest(ctx context.Context, conversation, title, content string) (bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return false, ErrEmptyDocument
	}
	content = truncate(content, ix.cfg.MaxDocumentChars)

	title = strings.TrimSpace(title)
	if title == "" {
		title = deriveTitle(content)
	}

	added, err := ix.store.AddDocument(ctx, conversation, memory.Document{
		Title:     title,
		Content:   content,
		Hash:      memory.ContentHash(content),
		CreatedAt: time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("knowledge: ingest: %w", err)
	}
	ix.logger.Info("knowledge: ingested", "conversation", conversation, "title", title, "new", added)
	return added, nil
}

// Retrieve searches each of the first MaxTerms query words against title
// and content, merges the hits, de-duplicates by title and caps the result.
// Failures yield an empty list.
func (ix *Indexer) Retrieve(ctx context.Context, conversation, query string) []memory.Document {
	var (
		out  []memory.Document
		seen = make(map[string]bool)
	)
	for _, term := range Terms(query, ix.cfg.MaxTerms) {
		docs, err := ix.store.SearchDocuments(ctx, conversation, term, ix.cfg.MaxResults)
		if err != nil {
			ix.logger.Warn("knowledge: search failed", "conversation", conversation, "error", err)
			return nil
		}
		for _, d := range docs {
			if seen[d.Title] {
				continue
			}
			seen[d.Title] = true
			out = append(out, d)
			if len(out) == ix.cfg.MaxResults {
				return out
			}
		}
	}
	return out
}

// List returns every document of the conversation, oldest first.
func (ix *Indexer) List(ctx context.Context, conversation string) ([]memory.Document, error) {
	docs, err := ix.store.ListDocuments(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list: %w", err)
	}
	return docs, nil
}

// Terms returns the first max words of query, NFC-normalized and
// case-folded. Punctuation separates words; single-rune words are skipped.
func Terms(query string, max int) []string {
	query = memory.Fold(query)
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})

	var out []string
	for _, w := range words {
		if len(out) == max {
			break
		}
		if len([]rune(w)) < 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func deriveTitle(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	return truncate(strings.TrimSpace(line), 60)
}
