package authoring

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	"github.com/yungbote/arcblog-backend/internal/data/repos/testutil"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring/parse"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/platform/lock"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type scriptedProvider struct {
	key      string
	searches bool
	reply    func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (p *scriptedProvider) Key() string    { return p.key }
func (p *scriptedProvider) Searches() bool { return p.searches }

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, _ llm.Options) (llm.GeneratedText, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()
	text, err := p.reply(ctx, prompt)
	if err != nil {
		return llm.GeneratedText{}, err
	}
	return llm.GeneratedText{Text: text}, nil
}

func (p *scriptedProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

func replyWith(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return text, nil }
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	log    *logger.Logger
	repos  repos.Repos
	locker lock.Locker
	userID uuid.UUID
	post   *types.Post
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	b := testutil.SeedBlog(t, ctx, db, "writer")
	root := testutil.SeedPost(t, ctx, db, b.UserID, nil, "Resilience", time.Now().Add(-time.Hour))
	post := testutil.SeedPost(t, ctx, db, b.UserID, root, "Retry storms", time.Now())
	return &harness{
		t:      t,
		ctx:    ctx,
		log:    log,
		repos:  repos.New(db, log),
		locker: lock.NewMemoryLocker(),
		userID: b.UserID,
		post:   post,
	}
}

func (h *harness) open(reg *llm.Registry, cfg Config) *Workflow {
	h.t.Helper()
	w := newWorkflow(workflowDeps{
		Log:      h.log,
		Config:   cfg,
		Dev:      h.repos.Development,
		Posts:    h.repos.Post,
		Locker:   h.locker,
		Registry: reg,
	}, h.userID, h.post.ID)
	if err := w.load(h.ctx); err != nil {
		h.t.Fatalf("load: %v", err)
	}
	h.t.Cleanup(func() { _ = w.Close(context.Background(), false) })
	return w
}

func (h *harness) stored() *types.DevelopmentRecord {
	h.t.Helper()
	rec, err := h.repos.Development.GetLatestByPostID(h.ctx, nil, h.post.ID)
	if err != nil || rec == nil {
		h.t.Fatalf("stored record: %v %v", rec, err)
	}
	return rec
}

func registryOf(ps ...llm.Provider) *llm.Registry {
	reg := llm.NewRegistry()
	for _, p := range ps {
		reg.Register(p.Key(), p)
	}
	return reg
}

const ideationReply = "Here you go.\n\nIDEAS:\n- Use caching\n- Add retries.\n\nRELATED TOPICS:\n- Consistency\n- Backpressure\n"

func TestLoadCreatesFirstRecordOnce(t *testing.T) {
	h := newHarness(t)
	w := h.open(nil, Config{})
	v, err := w.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.StageIndex != 0 || v.Stage.Label != "Research" || v.Record.Status != "research" || v.Record.Version != 1 {
		t.Fatalf("view=%+v", v)
	}
	if v.Record.SystemPrompt != FirstStage().DefaultSystemPrompt {
		t.Fatalf("system prompt not defaulted")
	}
	for _, c := range parse.AllCategories() {
		if items, ok := v.Record.IdeaMap()[c]; !ok || len(items) != 0 {
			t.Fatalf("category %s = %v, want empty", c, items)
		}
	}

	again := h.open(nil, Config{})
	av, _ := again.View()
	if av.Record.ID != v.Record.ID {
		t.Fatalf("second load created a new record")
	}
}

func TestAdvanceAndRetreatStopAtBounds(t *testing.T) {
	h := newHarness(t)
	w := h.open(nil, Config{})

	v, err := w.Retreat(h.ctx)
	if err != nil || v.StageIndex != 0 || h.stored().Version != 1 {
		t.Fatalf("retreat at first stage: idx=%d err=%v version=%d", v.StageIndex, err, h.stored().Version)
	}
	for i := 1; i < len(Stages()); i++ {
		if v, err = w.Advance(h.ctx); err != nil || v.StageIndex != i {
			t.Fatalf("advance %d: idx=%d err=%v", i, v.StageIndex, err)
		}
	}
	last := Stages()[len(Stages())-1]
	stored := h.stored()
	if stored.Status != "review" || stored.SystemPrompt != last.DefaultSystemPrompt || stored.Version != len(Stages()) {
		t.Fatalf("stored=%+v", stored)
	}
	if v, err = w.Advance(h.ctx); err != nil || v.StageIndex != len(Stages())-1 || h.stored().Version != len(Stages()) {
		t.Fatalf("advance past last stage should be a no-op: idx=%d err=%v", v.StageIndex, err)
	}
	if v, err = w.Retreat(h.ctx); err != nil || v.Stage.Label != "Enhancement" || h.stored().Status != "enhancement" {
		t.Fatalf("retreat: %+v err=%v", v.Stage, err)
	}
}

func TestStageResumesFromStoredStatus(t *testing.T) {
	h := newHarness(t)
	w := h.open(nil, Config{})
	if _, err := w.Advance(h.ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	_ = w.Close(h.ctx, false)
	v, _ := h.open(nil, Config{}).View()
	if v.Stage.Label != "Ideation" {
		t.Fatalf("stage=%s", v.Stage.Label)
	}
}

func TestGenerateIdeationParsesAndSuppressesDuplicates(t *testing.T) {
	h := newHarness(t)
	gen := &scriptedProvider{key: llm.KeyOpenAI, reply: replyWith(ideationReply)}
	w := h.open(registryOf(gen), Config{})
	if _, err := w.Advance(h.ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	res, err := w.Generate(h.ctx, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Degraded || res.Added[parse.Ideas] != 2 || res.Added[parse.RelatedTopics] != 2 {
		t.Fatalf("result=%+v", res)
	}
	ideas := h.stored().IdeaMap()
	if !reflect.DeepEqual(ideas[parse.Ideas], []string{"Use caching", "Add retries"}) ||
		!reflect.DeepEqual(ideas[parse.RelatedTopics], []string{"Consistency", "Backpressure"}) {
		t.Fatalf("ideas=%v", ideas)
	}
	for _, c := range []string{parse.ResearchAreas, parse.Audiences, parse.ChildPosts, parse.FuturePosts} {
		if len(ideas[c]) != 0 {
			t.Fatalf("%s should stay empty: %v", c, ideas[c])
		}
	}

	ideation := Stages()[1]
	if !strings.HasPrefix(gen.lastPrompt(), ideation.DefaultSystemPrompt+"\n\nSTAGE: Ideation") {
		t.Fatalf("composite prompt:\n%s", gen.lastPrompt())
	}
	if !strings.Contains(gen.lastPrompt(), "THIS POST CONTINUES: Resilience") {
		t.Fatalf("framing lacks arc context:\n%s", gen.lastPrompt())
	}

	res, err = w.Generate(h.ctx, nil)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if len(res.Added) != 0 {
		t.Fatalf("second generate added %v", res.Added)
	}
	again := h.stored().IdeaMap()
	for c, items := range ideas {
		if len(again[c]) != len(items) {
			t.Fatalf("%s length changed: %v -> %v", c, items, again[c])
		}
	}
	if !strings.Contains(gen.lastPrompt(), "ALREADY COLLECTED IDEAS") {
		t.Fatalf("second prompt should list collected ideas")
	}
}

func TestGenerateWithoutProviderLeavesRecordUntouched(t *testing.T) {
	h := newHarness(t)
	w := h.open(llm.NewRegistry(), Config{})
	if _, err := w.AddItem(parse.ResearchAreas, "Keep me"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	_, _ = w.Save(h.ctx)
	before := h.stored()

	_, err := w.Generate(h.ctx, nil)
	if !errors.Is(err, llm.ErrNoProvider) || !llm.IsProviderError(err) {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(err.Error(), "No AI service available") {
		t.Fatalf("message=%q", err.Error())
	}
	after := h.stored()
	if after.Version != before.Version || !reflect.DeepEqual(after.IdeaMap(), before.IdeaMap()) {
		t.Fatalf("record mutated: %+v -> %+v", before, after)
	}
}

func TestGenerateWithoutProviderKeepsStoredPrompt(t *testing.T) {
	h := newHarness(t)
	w := h.open(llm.NewRegistry(), Config{AutosaveDelay: 20 * time.Millisecond})
	before := h.stored()

	prompt := "brand new intent"
	if _, err := w.Generate(h.ctx, &prompt); !errors.Is(err, llm.ErrNoProvider) {
		t.Fatalf("err=%v", err)
	}
	v, err := w.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.AutosavePending || v.Record.Original != before.Original {
		t.Fatalf("workflow changed: pending=%v original=%q", v.AutosavePending, v.Record.Original)
	}
	time.Sleep(60 * time.Millisecond)
	if got := h.stored(); got.Original != before.Original || got.Version != before.Version {
		t.Fatalf("stored record changed: %+v -> %+v", before, got)
	}
}

func TestGenerateFailureStoresNothing(t *testing.T) {
	h := newHarness(t)
	gen := &scriptedProvider{key: llm.KeyAnthropic, reply: func(context.Context, string) (string, error) {
		return "", &llm.ProviderError{Provider: llm.KeyAnthropic, Status: 500, Message: "overloaded"}
	}}
	w := h.open(registryOf(gen), Config{})
	_, err := w.Generate(h.ctx, nil)
	if !llm.IsProviderError(err) {
		t.Fatalf("err=%v", err)
	}
	if got := h.stored(); got.Version != 1 || got.ResearchFindings != "" {
		t.Fatalf("stored=%+v", got)
	}
}

func TestResearchAugmentsWithSearchProvider(t *testing.T) {
	h := newHarness(t)
	general := "RESEARCH AREAS:\n- Latency budgets: how much time a hop may use\n\nCURRENT RESEARCH:\n- eBPF tracing\n"
	searchOut := "Title: T1\nLink: https://one\nSnippet: S1"
	gen := &scriptedProvider{key: llm.KeyOpenAI, reply: replyWith(general)}
	search := &scriptedProvider{key: llm.KeySerper, searches: true, reply: replyWith(searchOut)}
	w := h.open(registryOf(gen, search), Config{})

	topic := "tail latency in retry storms"
	res, err := w.Generate(h.ctx, &topic)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings=%v", res.Warnings)
	}
	stored := h.stored()
	ideas := stored.IdeaMap()
	if !reflect.DeepEqual(ideas[parse.ResearchAreas], []string{searchOut, "Latency budgets"}) {
		t.Fatalf("researchAreas=%q", ideas[parse.ResearchAreas])
	}
	if !reflect.DeepEqual(ideas[parse.CurrentResearch], []string{"eBPF tracing"}) {
		t.Fatalf("currentResearch=%v", ideas[parse.CurrentResearch])
	}
	if stored.ResearchFindings != general || stored.Original != topic {
		t.Fatalf("stored=%+v", stored)
	}
	if !strings.Contains(stored.ResearchPrompt, "TOPIC: "+topic) || !strings.Contains(search.lastPrompt(), "Expert analysis") {
		t.Fatalf("fact-finding prompt=%q", search.lastPrompt())
	}
	if res.CurrentProvider != llm.KeyOpenAI {
		t.Fatalf("current provider changed: %s", res.CurrentProvider)
	}
}

func TestSearchFailureIsOnlyAWarning(t *testing.T) {
	h := newHarness(t)
	gen := &scriptedProvider{key: llm.KeyOpenAI, reply: replyWith(ideationReply)}
	search := &scriptedProvider{key: llm.KeyPerplexity, searches: true, reply: func(context.Context, string) (string, error) {
		return "", &llm.ProviderError{Provider: llm.KeyPerplexity, Status: 429, Message: "rate limited"}
	}}
	w := h.open(registryOf(gen, search), Config{})
	if _, err := w.Advance(h.ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	res, err := w.Generate(h.ctx, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "rate limited") {
		t.Fatalf("warnings=%v", res.Warnings)
	}
	if len(h.stored().IdeaMap()[parse.Ideas]) != 2 {
		t.Fatalf("general result should still be merged")
	}
}

func TestGenerateDegradesOnUnstructuredReply(t *testing.T) {
	h := newHarness(t)
	gen := &scriptedProvider{key: llm.KeyGrok, reply: replyWith("Sure! Caching and retries are both good ideas.")}
	w := h.open(registryOf(gen), Config{})
	res, err := w.Generate(h.ctx, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Degraded || len(res.Added) != 0 || len(res.Warnings) != 1 {
		t.Fatalf("result=%+v", res)
	}
	if h.stored().ResearchFindings == "" {
		t.Fatalf("raw text should still land in the artifact")
	}
}

func TestConcurrentActionsFailBusy(t *testing.T) {
	h := newHarness(t)
	gen := &scriptedProvider{key: llm.KeyOpenAI, reply: replyWith(ideationReply)}
	w := h.open(registryOf(gen), Config{})
	lease, err := h.locker.TryAcquire(h.ctx, "development:"+h.post.ID.String(), time.Minute)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if _, err := w.Generate(h.ctx, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("Generate err=%v", err)
	}
	if _, err := w.Advance(h.ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("Advance err=%v", err)
	}
	_ = lease.Release(h.ctx)
	if _, err := w.Advance(h.ctx); err != nil {
		t.Fatalf("Advance after release: %v", err)
	}
}

func TestItemEditsAreAutosavedWithoutVersionBump(t *testing.T) {
	h := newHarness(t)
	w := h.open(nil, Config{AutosaveDelay: 20 * time.Millisecond})
	if _, err := w.AddItem(parse.Ideas, "Y"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := w.AddItem(parse.Ideas, "X"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := w.AddItem(parse.RelatedTopics, "Z"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	v, err := w.MoveItem(parse.Ideas, 0, parse.RelatedTopics)
	if err != nil || !v.AutosavePending {
		t.Fatalf("MoveItem: pending=%v err=%v", v.AutosavePending, err)
	}
	waitFor(t, 2*time.Second, func() bool {
		ideas := h.stored().IdeaMap()
		return reflect.DeepEqual(ideas[parse.Ideas], []string{"Y"}) &&
			reflect.DeepEqual(ideas[parse.RelatedTopics], []string{"X", "Z"})
	})
	if got := h.stored().Version; got != 1 {
		t.Fatalf("autosave bumped version to %d", got)
	}
	if _, err := w.DeleteItem("bogus", 0); !IsUnknownCategory(err) {
		t.Fatalf("DeleteItem err=%v", err)
	}
}

func TestCloseCancelsOrFlushesPendingAutosave(t *testing.T) {
	h := newHarness(t)
	w := h.open(nil, Config{AutosaveDelay: time.Hour})
	if _, err := w.AddItem(parse.Ideas, "dropped"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := w.Close(h.ctx, false); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := h.stored().IdeaMap()[parse.Ideas]; len(got) != 0 {
		t.Fatalf("cancelled autosave wrote %v", got)
	}
	if _, err := w.AddItem(parse.Ideas, "late"); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("AddItem after close err=%v", err)
	}

	w2 := h.open(nil, Config{AutosaveDelay: time.Hour})
	if _, err := w2.AddItem(parse.Ideas, "kept"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := w2.Close(h.ctx, true); err != nil {
		t.Fatalf("Close(flush): %v", err)
	}
	if got := h.stored().IdeaMap()[parse.Ideas]; !reflect.DeepEqual(got, []string{"kept"}) {
		t.Fatalf("flushed ideas=%v", got)
	}
}

func TestCloseDropsInFlightGeneration(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	gen := &scriptedProvider{key: llm.KeyOpenAI, reply: func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	w := h.open(registryOf(gen), Config{})
	errc := make(chan error, 1)
	go func() {
		_, err := w.Generate(h.ctx, nil)
		errc <- err
	}()
	<-started
	if err := w.Close(h.ctx, false); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, ErrWorkflowClosed) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("generation was not cancelled")
	}
	if h.stored().Version != 1 {
		t.Fatalf("dropped result was stored")
	}
}

func TestUpdatePromptsAndSetProvider(t *testing.T) {
	h := newHarness(t)
	gen := &scriptedProvider{key: llm.KeyOpenAI, reply: replyWith("ok")}
	w := h.open(registryOf(gen), Config{AutosaveDelay: time.Hour})

	original := "Write about backoff"
	custom := "Be terse."
	v, err := w.UpdatePrompts(&original, &custom)
	if err != nil || v.Record.Original != original || v.Record.SystemPrompt != custom || !v.AutosavePending {
		t.Fatalf("view=%+v err=%v", v.Record, err)
	}
	empty := ""
	if v, _ = w.UpdatePrompts(nil, &empty); v.Record.SystemPrompt != FirstStage().DefaultSystemPrompt {
		t.Fatalf("empty system prompt should restore the default")
	}

	v, err = w.SetProvider("grok")
	if err != nil || v.CurrentProvider != llm.KeyOpenAI || len(v.Warnings) != 1 {
		t.Fatalf("SetProvider fallback: %+v err=%v", v, err)
	}
	if v, _ = w.SetProvider("OpenAI"); len(v.Warnings) != 0 {
		t.Fatalf("warnings=%v", v.Warnings)
	}
}

func TestExplicitSaveWarnsWhenVersionMoved(t *testing.T) {
	h := newHarness(t)
	core, logs := observer.New(zap.WarnLevel)
	h.log = &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	w := h.open(nil, Config{})
	rec := h.stored()

	if _, err := h.repos.Development.Update(h.ctx, nil, h.post.ID, rec.ID, types.DevelopmentPatch{BumpVersion: true}); err != nil {
		t.Fatalf("external update: %v", err)
	}
	v, err := w.Save(h.ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v.Record.Version != 3 {
		t.Fatalf("version=%d want 3", v.Record.Version)
	}
	if n := logs.FilterMessage("development record version moved").Len(); n != 1 {
		t.Fatalf("warnings logged=%d", n)
	}
	if _, err := w.Save(h.ctx); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if n := logs.FilterMessage("development record version moved").Len(); n != 1 {
		t.Fatalf("in-sync save should not warn, logged=%d", n)
	}
}
