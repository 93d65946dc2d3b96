package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/majlis/internal/memory"
)

func newTestIndexer(t *testing.T) (*Indexer, memory.Store) {
	t.Helper()
	store := memory.NewInMemoryStore(memory.Limits{})
	return NewIndexer(store, Config{}, nil), store
}

func TestIngest_Deduplicates(t *testing.T) {
	t.Parallel()
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	added, err := ix.Ingest(ctx, "c1", "دليل", "محتوى الدليل")
	if err != nil || !added {
		t.Fatalf("first Ingest = %v, %v; want true, nil", added, err)
	}
	added, err = ix.Ingest(ctx, "c1", "عنوان آخر", "محتوى الدليل")
	if err != nil || added {
		t.Fatalf("duplicate Ingest = %v, %v; want false, nil", added, err)
	}
	added, err = ix.Ingest(ctx, "c2", "دليل", "محتوى الدليل")
	if err != nil || !added {
		t.Fatalf("other conversation Ingest = %v, %v; want true, nil", added, err)
	}

	docs, err := ix.List(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(List) = %d, want 1", len(docs))
	}
}

func TestIngest_TruncatesBeforeHashing(t *testing.T) {
	t.Parallel()
	store := memory.NewInMemoryStore(memory.Limits{})
	ix := NewIndexer(store, Config{MaxDocumentChars: 10}, nil)
	ctx := context.Background()

	long := strings.Repeat("ب", 25)
	if _, err := ix.Ingest(ctx, "c", "t", long); err != nil {
		t.Fatal(err)
	}
	// Same first 10 runes hash the same.
	added, err := ix.Ingest(ctx, "c", "t2", strings.Repeat("ب", 12))
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("expected truncated duplicate to be rejected")
	}

	docs, _ := ix.List(ctx, "c")
	if got := len([]rune(docs[0].Content)); got != 10 {
		t.Errorf("stored length = %d runes, want 10", got)
	}
	if docs[0].Hash != memory.ContentHash(strings.Repeat("ب", 10)) {
		t.Error("hash does not match truncated content")
	}
}

func TestIngest_EmptyAndDerivedTitle(t *testing.T) {
	t.Parallel()
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	if _, err := ix.Ingest(ctx, "c", "x", "   "); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}

	if _, err := ix.Ingest(ctx, "c", "", "السطر الأول\nبقية النص"); err != nil {
		t.Fatal(err)
	}
	docs, _ := ix.List(ctx, "c")
	if docs[0].Title != "السطر الأول" {
		t.Errorf("Title = %q, want first line", docs[0].Title)
	}
}

func TestIngest_EmptyConversation(t *testing.T) {
	t.Parallel()
	ix, _ := newTestIndexer(t)

	_, err := ix.Ingest(context.Background(), "", "t", "content")
	if !errors.Is(err, memory.ErrEmptyConversation) {
		t.Fatalf("err = %v, want ErrEmptyConversation", err)
	}
}

func TestRetrieve(t *testing.T) {
	t.Parallel()
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	docs := []struct{ title, content string }{
		{"الطقس", "الطقس في الرياض حار"},
		{"الرياضة", "كرة القدم في الرياض"},
		{"Go", "Go channels and goroutines"},
		{"Rust", "Ownership in Rust"},
		{"Python", "Python and goroutines? no"},
	}
	for _, d := range docs {
		if _, err := ix.Ingest(ctx, "c", d.title, d.content); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"arabic term", "ما هو الطقس اليوم", []string{"الطقس"}},
		{"shared term newest first", "الرياض", []string{"الرياضة", "الطقس"}},
		{"case folded", "GOROUTINES", []string{"Python", "Go"}},
		{"no match", "kubernetes", nil},
		{"empty query", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Retrieve(ctx, "c", tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Retrieve(%q) returned %d docs, want %d", tt.query, len(got), len(tt.want))
			}
			for i, d := range got {
				if d.Title != tt.want[i] {
					t.Errorf("doc[%d].Title = %q, want %q", i, d.Title, tt.want[i])
				}
			}
		})
	}
}

func TestRetrieve_CapsAndDedupsByTitle(t *testing.T) {
	t.Parallel()
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	for i, c := range []string{"alpha one", "alpha two", "alpha three", "alpha four"} {
		if _, err := ix.Ingest(ctx, "c", string(rune('a'+i)), c); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ix.Ingest(ctx, "c", "a", "beta again"); err != nil {
		t.Fatal(err)
	}

	got := ix.Retrieve(ctx, "c", "alpha beta")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, d := range got {
		if seen[d.Title] {
			t.Errorf("duplicate title %q", d.Title)
		}
		seen[d.Title] = true
	}
}

func TestRetrieve_StoreFailure(t *testing.T) {
	t.Parallel()
	ix := NewIndexer(failingStore{memory.NewInMemoryStore(memory.Limits{})}, Config{}, nil)

	if got := ix.Retrieve(context.Background(), "c", "anything"); len(got) != 0 {
		t.Errorf("Retrieve = %v, want empty", got)
	}
}

func TestTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		max   int
		want  []string
	}{
		{"Hello, World!", 5, []string{"hello", "world"}},
		{"a b cd ef gh ij kl mn", 3, []string{"cd", "ef", "gh"}},
		{"ما هو الذكاء الاصطناعي؟", 5, []string{"ما", "هو", "الذكاء", "الاصطناعي"}},
		{"   ", 5, nil},
	}
	for _, tt := range tests {
		got := Terms(tt.query, tt.max)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("Terms(%q, %d) = %q, want %q", tt.query, tt.max, got, tt.want)
		}
	}
}

type failingStore struct{ memory.Store }

func (failingStore) SearchDocuments(context.Context, string, string, int) ([]memory.Document, error) {
	return nil, errors.New("disk on fire")
}
