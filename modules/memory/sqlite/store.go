package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/majlis/internal/memory"
)

// Store implements memory.Store on a single SQLite database.
type Store struct {
	db     *sql.DB
	limits memory.Limits
	now    func() time.Time
}

func (s *Store) stamp(t time.Time) string {
	if t.IsZero() {
		if s.now != nil {
			t = s.now()
		} else {
			t = time.Now()
		}
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: %s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return fmt.Errorf("sqlite: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: %s: commit: %w", op, err)
	}
	return nil
}

// AppendMessage implements memory.Store. The insert and the trim share one
// transaction, so the cap holds when the call returns.
func (s *Store) AppendMessage(ctx context.Context, conv string, msg memory.Message) (int64, error) {
	if conv == "" {
		return 0, memory.ErrEmptyConversation
	}
	var seq int64
	err := s.withTx(ctx, "append message", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?", conv,
		).Scan(&seq); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (conversation_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			conv, seq, msg.Role, msg.Content, s.stamp(msg.CreatedAt),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE conversation_id = ? AND seq NOT IN (
				SELECT seq FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?)`,
			conv, conv, s.limits.MaxMessages,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// RecentMessages implements memory.Store.
func (s *Store) RecentMessages(ctx context.Context, conv string, n int) ([]memory.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?",
		conv, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	defer rows.Close()

	var out []memory.Message
	for rows.Next() {
		var (
			m  memory.Message
			at string
		)
		if err := rows.Scan(&m.Role, &m.Content, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.CreatedAt = parseTime(at)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// appendCapped inserts one row into a capped table and trims it in the same
// transaction. Columns after conversation_id are given by cols and args.
func (s *Store) appendCapped(ctx context.Context, op, table, conv string, limit int, cols []string, args ...any) error {
	if conv == "" {
		return memory.ErrEmptyConversation
	}
	placeholders := strings.Repeat(", ?", len(cols))
	insert := fmt.Sprintf("INSERT INTO %s (conversation_id, %s) VALUES (?%s)", table, strings.Join(cols, ", "), placeholders)
	trim := fmt.Sprintf(`DELETE FROM %[1]s WHERE conversation_id = ? AND id NOT IN (
		SELECT id FROM %[1]s WHERE conversation_id = ? ORDER BY id DESC LIMIT ?)`, table)

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, append([]any{conv}, args...)...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, trim, conv, conv, limit)
		return err
	})
}

// AppendSummary implements memory.Store.
func (s *Store) AppendSummary(ctx context.Context, conv string, sum memory.Summary) error {
	return s.appendCapped(ctx, "append summary", "summaries", conv, s.limits.MaxSummaries,
		[]string{"text", "created_at"}, sum.Text, s.stamp(sum.CreatedAt))
}

// RecentSummaries implements memory.Store.
func (s *Store) RecentSummaries(ctx context.Context, conv string, n int) ([]memory.Summary, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT text, created_at FROM summaries WHERE conversation_id = ? ORDER BY id DESC LIMIT ?", conv, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent summaries: %w", err)
	}
	defer rows.Close()

	var out []memory.Summary
	for rows.Next() {
		var (
			sum memory.Summary
			at  string
		)
		if err := rows.Scan(&sum.Text, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan summary: %w", err)
		}
		sum.CreatedAt = parseTime(at)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recent summaries: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// AppendLesson implements memory.Store.
func (s *Store) AppendLesson(ctx context.Context, conv string, l memory.Lesson) error {
	if l.Outcome == "" {
		l.Outcome = memory.OutcomeSuccess
	}
	return s.appendCapped(ctx, "append lesson", "lessons", conv, s.limits.MaxLessons,
		[]string{"text", "outcome", "created_at"}, l.Text, string(l.Outcome), s.stamp(l.CreatedAt))
}

// RecentLessons implements memory.Store.
func (s *Store) RecentLessons(ctx context.Context, conv string, n int) ([]memory.Lesson, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT text, outcome, created_at FROM lessons WHERE conversation_id = ? ORDER BY id DESC LIMIT ?", conv, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent lessons: %w", err)
	}
	defer rows.Close()

	var out []memory.Lesson
	for rows.Next() {
		var (
			l       memory.Lesson
			outcome string
			at      string
		)
		if err := rows.Scan(&l.Text, &outcome, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan lesson: %w", err)
		}
		l.Outcome = memory.Outcome(outcome)
		l.CreatedAt = parseTime(at)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recent lessons: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// AddDocument implements memory.Store. Duplicates are detected through the
// (conversation_id, hash) unique constraint.
func (s *Store) AddDocument(ctx context.Context, conv string, doc memory.Document) (bool, error) {
	if conv == "" {
		return false, memory.ErrEmptyConversation
	}
	if doc.Hash == "" {
		doc.Hash = memory.ContentHash(doc.Content)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge (conversation_id, title, content, hash, created_at, title_folded, content_folded)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (conversation_id, hash) DO NOTHING`,
		conv, doc.Title, doc.Content, doc.Hash, s.stamp(doc.CreatedAt),
		memory.Fold(doc.Title), memory.Fold(doc.Content),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: add document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: add document: %w", err)
	}
	return n > 0, nil
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchDocuments implements memory.Store.
func (s *Store) SearchDocuments(ctx context.Context, conv, term string, limit int) ([]memory.Document, error) {
	term = memory.Fold(strings.TrimSpace(term))
	if term == "" || limit <= 0 {
		return nil, nil
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	return s.queryDocuments(ctx, "search documents",
		`SELECT title, content, hash, created_at FROM knowledge
		 WHERE conversation_id = ? AND (title_folded LIKE ? ESCAPE '\' OR content_folded LIKE ? ESCAPE '\')
		 ORDER BY id DESC LIMIT ?`,
		conv, pattern, pattern, limit,
	)
}

// ListDocuments implements memory.Store.
func (s *Store) ListDocuments(ctx context.Context, conv string) ([]memory.Document, error) {
	return s.queryDocuments(ctx, "list documents",
		"SELECT title, content, hash, created_at FROM knowledge WHERE conversation_id = ? ORDER BY id", conv)
}

func (s *Store) queryDocuments(ctx context.Context, op, query string, args ...any) ([]memory.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", op, err)
	}
	defer rows.Close()

	var out []memory.Document
	for rows.Next() {
		var (
			d  memory.Document
			at string
		)
		if err := rows.Scan(&d.Title, &d.Content, &d.Hash, &at); err != nil {
			return nil, fmt.Errorf("sqlite: %s: scan: %w", op, err)
		}
		d.CreatedAt = parseTime(at)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", op, err)
	}
	return out, nil
}

// Clear implements memory.Store. All four tables are purged in one
// transaction.
func (s *Store) Clear(ctx context.Context, conv string) error {
	return s.withTx(ctx, "clear", func(tx *sql.Tx) error {
		for _, table := range []string{"messages", "summaries", "lessons", "knowledge"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE conversation_id = ?", conv); err != nil {
				return fmt.Errorf("%s: %w", table, err)
			}
		}
		return nil
	})
}

// Stats implements memory.Store.
func (s *Store) Stats(ctx context.Context, conv string) (memory.Stats, error) {
	var st memory.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM messages  WHERE conversation_id = ?1),
		(SELECT COUNT(*) FROM summaries WHERE conversation_id = ?1),
		(SELECT COUNT(*) FROM lessons   WHERE conversation_id = ?1),
		(SELECT COUNT(*) FROM knowledge WHERE conversation_id = ?1)`, conv,
	).Scan(&st.Messages, &st.Summaries, &st.Lessons, &st.Documents)
	if err != nil {
		return memory.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
	}
	return st, nil
}

// Maintain checkpoints the WAL and refreshes query planner statistics.
func (s *Store) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("sqlite: wal checkpoint: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("sqlite: optimize: %w", err)
	}
	return nil
}
