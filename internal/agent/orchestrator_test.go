package agent

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	ctxengine "github.com/flemzord/majlis/internal/context"
	"github.com/flemzord/majlis/internal/discussion"
	"github.com/flemzord/majlis/internal/knowledge"
	"github.com/flemzord/majlis/internal/memory"
	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/planner"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/provider/providertest"
	"github.com/flemzord/majlis/internal/sandbox"
)

type fixture struct {
	orch  *Orchestrator
	store *memory.InMemoryStore
}

func newFixture(t *testing.T, p provider.Provider, mutate func(*Deps)) fixture {
	t.Helper()
	store := memory.NewInMemoryStore(memory.Limits{})
	indexer := knowledge.NewIndexer(store, knowledge.Config{}, nil)
	roster := multiagent.DefaultRoster()
	deps := Deps{
		Provider:     p,
		Store:        store,
		Builder:      ctxengine.NewBuilder(store, indexer, ctxengine.Config{}, nil),
		Indexer:      indexer,
		Planner:      planner.New(p, planner.Config{}, nil),
		Collaborator: multiagent.NewCollaborator(p, roster, multiagent.Config{}, nil),
	}
	if mutate != nil {
		mutate(&deps)
	}
	orch, err := New(deps, Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fixture{orch: orch, store: store}
}

func (f fixture) messages(t *testing.T, conv string) []memory.Message {
	t.Helper()
	msgs, err := f.store.RecentMessages(context.Background(), conv, 100)
	if err != nil {
		t.Fatal(err)
	}
	return msgs
}

type progressLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *progressLog) add(_ context.Context, text string) {
	l.mu.Lock()
	l.lines = append(l.lines, text)
	l.mu.Unlock()
}

func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()
	_, err := New(Deps{}, Config{}, nil)
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
	for _, name := range []string{"provider", "store", "planner", "collaborator"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestHandleText_Search(t *testing.T) {
	t.Parallel()
	p := providertest.Reply("ملخص الأخبار")
	searcher := providertest.Results(
		provider.SearchResult{Title: "نموذج جديد", Snippet: "أُعلن اليوم", URL: "https://example.com/a"},
	)
	f := newFixture(t, p, func(d *Deps) { d.Searcher = searcher })

	resp := f.orch.HandleText(context.Background(), Request{Conversation: "c1", Text: "ابحث عن آخر أخبار الذكاء الاصطناعي"})

	if resp.Route != RouteSearch {
		t.Errorf("route = %q, want search", resp.Route)
	}
	if resp.Text != "ملخص الأخبار" || resp.Persona != "خالد" {
		t.Errorf("response = %+v", resp)
	}
	if searcher.Calls() != 1 {
		t.Errorf("search calls = %d, want 1", searcher.Calls())
	}
	if prompts := p.Prompts(); len(prompts) != 1 || !strings.Contains(prompts[0], "نموذج جديد") {
		t.Errorf("prompt does not carry the results: %q", prompts)
	}

	msgs := f.messages(t, "c1")
	if len(msgs) != 2 || msgs[0].Role != memory.RoleUser || msgs[1].Role != "خالد" {
		t.Fatalf("persisted = %+v", msgs)
	}
}

func TestHandleText_SearchFallbacks(t *testing.T) {
	t.Parallel()

	t.Run("no results answers directly", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, providertest.Reply("إجابة مباشرة"), func(d *Deps) { d.Searcher = providertest.Results() })
		resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "ابحث عن شيء"})
		if resp.Text != "إجابة مباشرة" || resp.Route != RouteSearch {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("synthesis failure returns raw results", func(t *testing.T) {
		t.Parallel()
		searcher := providertest.Results(provider.SearchResult{Title: "عنوان", Snippet: "مقتطف"})
		f := newFixture(t, providertest.Fail(errors.New("down")), func(d *Deps) { d.Searcher = searcher })
		resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "ابحث عن شيء"})
		if !strings.Contains(resp.Text, "عنوان: مقتطف") {
			t.Errorf("text = %q, want formatted results", resp.Text)
		}
	})
}

func TestHandleText_TotalFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providertest.Fail(errors.New("quota")), nil)

	resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "مرحباً"})
	if resp.Text != f.orch.Language().TechnicalDifficulty {
		t.Errorf("text = %q, want technical difficulty", resp.Text)
	}
	msgs := f.messages(t, "c")
	if len(msgs) != 1 || msgs[0].Content != "مرحباً" {
		t.Errorf("persisted = %+v, want only the user message", msgs)
	}
}

func TestHandleText_EmptyReturnsHelp(t *testing.T) {
	t.Parallel()
	p := providertest.Reply("x")
	f := newFixture(t, p, nil)

	resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "   "})
	if resp.Text != f.orch.Help() {
		t.Errorf("text = %q, want help", resp.Text)
	}
	if p.Calls() != 0 {
		t.Errorf("provider called %d times", p.Calls())
	}
}

func TestHandleText_ContextCarriesHistory(t *testing.T) {
	t.Parallel()
	p := providertest.Reply("حسناً")
	f := newFixture(t, p, nil)
	ctx := context.Background()

	f.orch.HandleText(ctx, Request{Conversation: "c", Text: "اسمي ليلى"})
	f.orch.HandleText(ctx, Request{Conversation: "c", Text: "ما اسمي؟"})

	prompts := p.Prompts()
	if len(prompts) != 2 || !strings.Contains(prompts[1], "اسمي ليلى") {
		t.Errorf("second prompt lacks history: %q", prompts)
	}
}

func TestHandleText_Plan(t *testing.T) {
	t.Parallel()
	p := providertest.Script(
		`{"steps": ["جمع المصادر", "كتابة الملخص"]}`,
		"نتيجة الخطوة الأولى",
		"نتيجة الخطوة الثانية",
		"رأي 1", "رأي 2", "رأي 3", "رأي 4",
		"الخلاصة النهائية",
	)
	f := newFixture(t, p, nil)
	var progress progressLog

	resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "ضع خطة لتعلم الإحصاء", Progress: progress.add})

	if resp.Route != RouteComplex || resp.Steps != 2 {
		t.Errorf("route/steps = %q/%d", resp.Route, resp.Steps)
	}
	if resp.Text != "الخلاصة النهائية" || resp.Persona != "يوسف" {
		t.Errorf("response = %+v", resp)
	}
	if len(progress.lines) != 5 {
		t.Fatalf("progress = %d messages, want plan + 4 opinions: %q", len(progress.lines), progress.lines)
	}
	if !strings.Contains(progress.lines[0], "1. جمع المصادر") {
		t.Errorf("first progress = %q, want the plan", progress.lines[0])
	}
	if !strings.HasPrefix(progress.lines[1], "🔍 أحمد:") {
		t.Errorf("second progress = %q, want first opinion", progress.lines[1])
	}

	prompts := p.Prompts()
	if !strings.Contains(prompts[2], "نتيجة الخطوة الأولى") {
		t.Errorf("second step prompt lacks prior result: %q", prompts[2])
	}
	if !strings.Contains(prompts[3], "نتيجة الخطوة الثانية") {
		t.Errorf("deliberation prompt lacks step results: %q", prompts[3])
	}

	lessons, err := f.store.RecentLessons(context.Background(), "c", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lessons) != 2 {
		t.Errorf("lessons = %d, want one per step", len(lessons))
	}
}

func TestHandleText_ShellExecution(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p := providertest.Reply("سأنفذ الأمر:\n```bash\necho majlis-ok\n```")
	f := newFixture(t, p, func(d *Deps) { d.Sandbox = sandbox.New(sandbox.Config{}, nil, sandbox.WithTempRoot(t.TempDir())) })

	resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "نفذ الأمر echo"})

	if resp.Route != RouteShell {
		t.Errorf("route = %q, want shell", resp.Route)
	}
	if !strings.Contains(resp.Text, "majlis-ok") {
		t.Errorf("text = %q, want command output", resp.Text)
	}
	lessons, _ := f.store.RecentLessons(context.Background(), "c", 10)
	if len(lessons) != 1 || lessons[0].Outcome != memory.OutcomeSuccess {
		t.Errorf("lessons = %+v, want one success", lessons)
	}
}

func TestHandleText_CodeWithoutBlock(t *testing.T) {
	t.Parallel()
	p := providertest.Reply("لا أستطيع كتابة ذلك")
	f := newFixture(t, p, func(d *Deps) { d.Sandbox = sandbox.New(sandbox.Config{}, nil) })

	resp := f.orch.HandleText(context.Background(), Request{Conversation: "c", Text: "اكتب كود يطبع مرحبا"})
	if !strings.Contains(resp.Text, f.orch.Language().NoCode) {
		t.Errorf("text = %q, want no-code notice", resp.Text)
	}
	lessons, _ := f.store.RecentLessons(context.Background(), "c", 10)
	if len(lessons) != 0 {
		t.Errorf("lessons = %d, want none", len(lessons))
	}
}

func TestDocumentIngest_DuplicateAndListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providertest.Reply("x"), nil)
	ctx := context.Background()
	data := []byte("تقرير الربع الأول\nارتفعت المبيعات بنسبة عشرة بالمئة.")

	first := f.orch.HandleDocumentIngest(ctx, "c", "report.txt", "text/plain", data)
	if !first.Added || first.Title != "report" {
		t.Fatalf("first ingest = %+v", first)
	}
	second := f.orch.HandleDocumentIngest(ctx, "c", "report.txt", "text/plain", data)
	if second.Added {
		t.Errorf("duplicate ingest reported added: %+v", second)
	}
	if !strings.Contains(second.Text, "موجود مسبقاً") {
		t.Errorf("duplicate text = %q", second.Text)
	}

	listing := f.orch.Knowledge(ctx, "c")
	if !strings.Contains(listing, "1. report") || strings.Contains(listing, "2.") {
		t.Errorf("listing = %q, want exactly one document", listing)
	}
	if got := f.orch.Knowledge(ctx, "other"); got != f.orch.Language().KnowledgeEmpty {
		t.Errorf("other conversation listing = %q", got)
	}
}

func TestDocumentIngest_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providertest.Reply("x"), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"unsupported", "archive.zip", []byte("PK\x03\x04"), "لا يمكن قراءة"},
		{"empty", "empty.txt", []byte("   "), "لا يمكن قراءة"},
		{"too large", "big.txt", make([]byte, 11<<20), "أكبر من الحد"},
	}
	for _, tt := range tests {
		res := f.orch.HandleDocumentIngest(ctx, "c", tt.file, "", tt.data)
		if res.Added || !strings.Contains(res.Text, tt.want) {
			t.Errorf("%s: result = %+v", tt.name, res)
		}
	}
}

func TestDiscussion_Interjection(t *testing.T) {
	t.Parallel()
	p := providertest.Reply("رأيي أن نبدأ بالمصادر المفتوحة")
	var mgr *discussion.Manager
	f := newFixture(t, p, func(d *Deps) {
		mgr = discussion.NewManager(p, multiagent.DefaultRoster(), discussion.Config{
			MinInterval:       time.Hour,
			MaxInterval:       time.Hour,
			OpenerDelay:       -1,
			SearchProbability: -1,
		}, nil, nil)
		d.Discussions = mgr
	})
	t.Cleanup(func() { _ = mgr.StopAll(context.Background()) })
	ctx := context.Background()

	if got := f.orch.StartDiscussion("c"); got != f.orch.Language().StartNotice {
		t.Fatalf("StartDiscussion = %q", got)
	}
	if got := f.orch.StartDiscussion("c"); got != f.orch.Language().AlreadyActive {
		t.Errorf("second StartDiscussion = %q", got)
	}

	resp := f.orch.HandleText(ctx, Request{Conversation: "c", Text: "وماذا عن الخصوصية؟"})
	if !strings.Contains(resp.Text, "رأيي أن نبدأ") || resp.Persona == "" {
		t.Errorf("interjection response = %+v", resp)
	}
	msgs := f.messages(t, "c")
	if len(msgs) != 2 || msgs[0].Content != "وماذا عن الخصوصية؟" || msgs[1].Role != resp.Persona {
		t.Errorf("persisted = %+v", msgs)
	}
	if !strings.Contains(f.orch.Status(ctx, "c"), "نشط") {
		t.Error("status does not report the active discussion")
	}

	if got := f.orch.StopDiscussion("c"); got != f.orch.Language().StopNotice {
		t.Errorf("StopDiscussion = %q", got)
	}
	if got := f.orch.StopDiscussion("c"); got != f.orch.Language().NotActive {
		t.Errorf("second StopDiscussion = %q", got)
	}
}

func TestClearMemory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providertest.Reply("أهلاً"), nil)
	ctx := context.Background()

	f.orch.HandleText(ctx, Request{Conversation: "c", Text: "مرحباً"})
	f.orch.HandleDocumentIngest(ctx, "c", "n.txt", "", []byte("ملاحظة مهمة"))

	if got := f.orch.ClearMemory(ctx, "c"); got != f.orch.Language().Cleared {
		t.Fatalf("ClearMemory = %q", got)
	}
	stats, err := f.store.Stats(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if stats != (memory.Stats{}) {
		t.Errorf("stats after clear = %+v", stats)
	}
}

func TestMedia(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unavailable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, providertest.Reply("x"), nil)
		if got := f.orch.HandleVoice(ctx, "c", []byte{1}, "audio/ogg", nil); got.Text != f.orch.Language().MediaUnavailable {
			t.Errorf("voice = %q", got.Text)
		}
		if got := f.orch.HandleImage(ctx, "c", []byte{1}, "image/jpeg", ""); got.Text != f.orch.Language().MediaUnavailable {
			t.Errorf("image = %q", got.Text)
		}
	})

	t.Run("voice is answered as text", func(t *testing.T) {
		t.Parallel()
		media := &providertest.MockMedia{
			TranscribeFunc: func(context.Context, []byte, string) (string, error) { return "ما عاصمة مصر؟", nil },
		}
		f := newFixture(t, providertest.Reply("القاهرة"), func(d *Deps) { d.Transcriber = media })
		resp := f.orch.HandleVoice(ctx, "c", []byte{1}, "audio/ogg", nil)
		if resp.Text != "القاهرة" {
			t.Errorf("voice answer = %q", resp.Text)
		}
		if msgs := f.messages(t, "c"); len(msgs) != 2 || msgs[0].Content != "ما عاصمة مصر؟" {
			t.Errorf("persisted = %+v", msgs)
		}
	})

	t.Run("failed transcription", func(t *testing.T) {
		t.Parallel()
		media := &providertest.MockMedia{
			TranscribeFunc: func(context.Context, []byte, string) (string, error) { return "", errors.New("bad audio") },
		}
		f := newFixture(t, providertest.Reply("x"), func(d *Deps) { d.Transcriber = media })
		if got := f.orch.HandleVoice(ctx, "c", []byte{1}, "audio/ogg", nil); got.Text != f.orch.Language().NoTranscript {
			t.Errorf("text = %q", got.Text)
		}
	})

	t.Run("image without caption returns the description", func(t *testing.T) {
		t.Parallel()
		var question string
		media := &providertest.MockMedia{
			DescribeFunc: func(_ context.Context, _ []byte, _ string, q string) (string, error) {
				question = q
				return "قطة على كرسي", nil
			},
		}
		p := providertest.Reply("x")
		f := newFixture(t, p, func(d *Deps) { d.Describer = media })
		resp := f.orch.HandleImage(ctx, "c", []byte{1}, "image/jpeg", "")
		if resp.Text != "قطة على كرسي" {
			t.Errorf("text = %q", resp.Text)
		}
		if question != f.orch.Language().ImageQuestion {
			t.Errorf("question = %q, want default", question)
		}
		if p.Calls() != 0 {
			t.Errorf("provider called %d times", p.Calls())
		}
	})

	t.Run("image caption is answered", func(t *testing.T) {
		t.Parallel()
		p := providertest.Reply("لونها برتقالي")
		f := newFixture(t, p, nil)
		resp := f.orch.HandleImageDescription(ctx, "c", "قطة برتقالية على كرسي", "ما لون القطة؟")
		if resp.Text != "لونها برتقالي" {
			t.Errorf("text = %q", resp.Text)
		}
		if prompts := p.Prompts(); len(prompts) != 1 || !strings.Contains(prompts[0], "قطة برتقالية") {
			t.Errorf("prompt = %q", prompts)
		}
	})
}

func TestFormatEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providertest.Reply("x"), nil)
	roster := multiagent.DefaultRoster()

	if got := f.orch.FormatEvent(discussion.Event{Kind: discussion.EventUtterance, Persona: roster[1], Text: "فكرة"}); got != "🤖 سارة:\nفكرة" {
		t.Errorf("utterance = %q", got)
	}
	if got := f.orch.FormatEvent(discussion.Event{Kind: discussion.EventTopic, Text: "موضوع"}); !strings.Contains(got, "موضوع") {
		t.Errorf("topic = %q", got)
	}
	if got := f.orch.FormatEvent(discussion.Event{Kind: discussion.EventExpired}); got != f.orch.Language().DiscussionExpired {
		t.Errorf("expired = %q", got)
	}
}
