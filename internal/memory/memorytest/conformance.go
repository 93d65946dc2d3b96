// Package memorytest holds a behavioral test suite shared by every
// memory.Store implementation.
package memorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/majlis/internal/memory"
)

// Factory builds a fresh, empty store with the given caps.
type Factory func(t *testing.T, limits memory.Limits) memory.Store

// Run exercises newStore against the Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, newStore Factory)
	}{
		{"MessageCap", testMessageCap},
		{"RunningCount", testRunningCount},
		{"SummaryAndLessonCaps", testSummaryAndLessonCaps},
		{"ConversationIsolation", testConversationIsolation},
		{"DocumentDedup", testDocumentDedup},
		{"SearchDocuments", testSearchDocuments},
		{"Clear", testClear},
		{"ReadsDoNotCreate", testReadsDoNotCreate},
		{"ConcurrentAppends", testConcurrentAppends},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore)
		})
	}
}

func testMessageCap(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{MaxMessages: 5})

	for i := range 12 {
		if _, err := s.AppendMessage(ctx, "c1", memory.Message{Role: "user", Content: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		st, err := s.Stats(ctx, "c1")
		if err != nil {
			t.Fatal(err)
		}
		if st.Messages > 5 {
			t.Fatalf("after %d appends: %d messages stored, cap is 5", i+1, st.Messages)
		}
	}

	got, err := s.RecentMessages(ctx, "c1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("RecentMessages = %d, want 5", len(got))
	}
	for i, m := range got {
		if want := fmt.Sprintf("m%d", 7+i); m.Content != want {
			t.Errorf("message %d = %q, want %q (oldest evicted first)", i, m.Content, want)
		}
	}

	recent, _ := s.RecentMessages(ctx, "c1", 2)
	if len(recent) != 2 || recent[0].Content != "m10" || recent[1].Content != "m11" {
		t.Errorf("RecentMessages(2) = %+v, want m10, m11", recent)
	}
}

func testRunningCount(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{MaxMessages: 3})

	var last int64
	for i := range 7 {
		seq, err := s.AppendMessage(ctx, "c1", memory.Message{Role: "user", Content: "x"})
		if err != nil {
			t.Fatal(err)
		}
		if seq != int64(i+1) {
			t.Fatalf("seq = %d, want %d", seq, i+1)
		}
		last = seq
	}
	if last != 7 {
		t.Fatalf("last seq = %d, want 7", last)
	}

	if err := s.Clear(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	seq, err := s.AppendMessage(ctx, "c1", memory.Message{Role: "user", Content: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Errorf("seq after clear = %d, want 1", seq)
	}
}

func testSummaryAndLessonCaps(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{MaxSummaries: 2, MaxLessons: 3})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := s.AppendSummary(ctx, "c1", memory.Summary{Text: fmt.Sprintf("s%d", i), CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
		outcome := memory.OutcomeSuccess
		if i%2 == 1 {
			outcome = memory.OutcomeFailure
		}
		if err := s.AppendLesson(ctx, "c1", memory.Lesson{Text: fmt.Sprintf("l%d", i), Outcome: outcome, CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}

	sums, _ := s.RecentSummaries(ctx, "c1", 10)
	if len(sums) != 2 || sums[0].Text != "s3" || sums[1].Text != "s4" {
		t.Errorf("summaries = %+v, want s3, s4", sums)
	}
	lessons, _ := s.RecentLessons(ctx, "c1", 10)
	if len(lessons) != 3 || lessons[0].Text != "l2" || lessons[2].Text != "l4" {
		t.Errorf("lessons = %+v, want l2..l4", lessons)
	}
	if lessons[1].Outcome != memory.OutcomeFailure {
		t.Errorf("lesson outcome = %q, want failure", lessons[1].Outcome)
	}
}

func testConversationIsolation(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{})

	_, _ = s.AppendMessage(ctx, "a", memory.Message{Role: "user", Content: "for a"})
	_, _ = s.AppendMessage(ctx, "b", memory.Message{Role: "user", Content: "for b"})
	_, _ = s.AddDocument(ctx, "a", memory.Document{Title: "doc", Content: "same"})

	got, _ := s.RecentMessages(ctx, "b", 10)
	if len(got) != 1 || got[0].Content != "for b" {
		t.Errorf("conversation b messages = %+v", got)
	}
	added, err := s.AddDocument(ctx, "b", memory.Document{Title: "doc", Content: "same"})
	if err != nil || !added {
		t.Errorf("same document in another conversation: added=%v err=%v, want true", added, err)
	}
	docs, _ := s.SearchDocuments(ctx, "b", "same", 3)
	if len(docs) != 1 {
		t.Errorf("search in b = %d docs, want 1", len(docs))
	}
}

func testDocumentDedup(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{})

	doc := memory.Document{Title: "Rate limits", Content: "Use exponential backoff."}
	first, err := s.AddDocument(ctx, "c1", doc)
	if err != nil || !first {
		t.Fatalf("first AddDocument = %v, %v; want true, nil", first, err)
	}
	doc.Title = "Renamed"
	second, err := s.AddDocument(ctx, "c1", doc)
	if err != nil || second {
		t.Fatalf("second AddDocument = %v, %v; want false, nil", second, err)
	}

	docs, _ := s.ListDocuments(ctx, "c1")
	if len(docs) != 1 || docs[0].Title != "Rate limits" {
		t.Fatalf("ListDocuments = %+v, want one document titled %q", docs, "Rate limits")
	}
	if docs[0].Hash != memory.ContentHash("Use exponential backoff.") {
		t.Errorf("hash = %q, want content hash", docs[0].Hash)
	}
}

func testSearchDocuments(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{})

	_, _ = s.AddDocument(ctx, "c1", memory.Document{Title: "Python tips", Content: "list comprehensions"})
	_, _ = s.AddDocument(ctx, "c1", memory.Document{Title: "Go notes", Content: "goroutines and PYTHON interop"})
	_, _ = s.AddDocument(ctx, "c1", memory.Document{Title: "الذكاء الاصطناعي", Content: "تصنيف المعلومات"})

	got, err := s.SearchDocuments(ctx, "c1", "python", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("search python = %d docs, want 2", len(got))
	}

	got, _ = s.SearchDocuments(ctx, "c1", "python", 1)
	if len(got) != 1 {
		t.Errorf("limit 1 returned %d docs", len(got))
	}

	got, _ = s.SearchDocuments(ctx, "c1", "تصنيف", 5)
	if len(got) != 1 || got[0].Title != "الذكاء الاصطناعي" {
		t.Errorf("arabic search = %+v", got)
	}

	_, _ = s.AddDocument(ctx, "c1", memory.Document{Title: "Ökonomie Überblick", Content: "Die Straße der Märkte"})
	for _, term := range []string{"Ökonomie", "ökonomie", "ÜBERBLICK", "STRASSE", "märkte"} {
		got, _ = s.SearchDocuments(ctx, "c1", term, 5)
		if len(got) != 1 || got[0].Title != "Ökonomie Überblick" {
			t.Errorf("search %q = %+v, want the Ökonomie document", term, got)
		}
	}

	got, _ = s.SearchDocuments(ctx, "c1", "100%_match", 5)
	if len(got) != 0 {
		t.Errorf("wildcard characters must match literally, got %d docs", len(got))
	}
}

func testReadsDoNotCreate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{})

	if _, err := s.RecentMessages(ctx, "ghost", 10); err != nil {
		t.Fatal(err)
	}
	_, _ = s.RecentSummaries(ctx, "ghost", 10)
	_, _ = s.RecentLessons(ctx, "ghost", 10)
	_, _ = s.SearchDocuments(ctx, "ghost", "x", 5)
	_, _ = s.ListDocuments(ctx, "ghost")
	st, err := s.Stats(ctx, "ghost")
	if err != nil || st != (memory.Stats{}) {
		t.Fatalf("Stats(ghost) = %+v, %v; want zero", st, err)
	}

	seq, err := s.AppendMessage(ctx, "ghost", memory.Message{Role: "user", Content: "first"})
	if err != nil || seq != 1 {
		t.Errorf("first append after reads = %d, %v; want 1", seq, err)
	}
}

func testClear(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{})

	_, _ = s.AppendMessage(ctx, "c1", memory.Message{Role: "user", Content: "hi"})
	_ = s.AppendSummary(ctx, "c1", memory.Summary{Text: "sum"})
	_ = s.AppendLesson(ctx, "c1", memory.Lesson{Text: "lesson", Outcome: memory.OutcomeSuccess})
	_, _ = s.AddDocument(ctx, "c1", memory.Document{Title: "t", Content: "c"})
	_, _ = s.AppendMessage(ctx, "c2", memory.Message{Role: "user", Content: "keep"})

	if err := s.Clear(ctx, "c1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st, _ := s.Stats(ctx, "c1")
	if st != (memory.Stats{}) {
		t.Errorf("stats after clear = %+v, want zero", st)
	}
	st, _ = s.Stats(ctx, "c2")
	if st.Messages != 1 {
		t.Errorf("other conversation messages = %d, want 1", st.Messages)
	}
}

func testConcurrentAppends(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, memory.Limits{MaxMessages: 10})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 10 {
				if _, err := s.AppendMessage(ctx, "c1", memory.Message{Role: "user", Content: fmt.Sprintf("%d-%d", i, j)}); err != nil {
					t.Errorf("AppendMessage: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	st, _ := s.Stats(ctx, "c1")
	if st.Messages != 10 {
		t.Errorf("messages = %d, want 10", st.Messages)
	}
}
