package authoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring/parse"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring/prompts"
	"github.com/yungbote/arcblog-backend/internal/observability"
	"github.com/yungbote/arcblog-backend/internal/platform/htmltext"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/platform/lock"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type Config struct {
	ProviderTimeout time.Duration
	AutosaveDelay   time.Duration
	// LockTTL bounds how long a crashed generation can keep a post busy.
	LockTTL time.Duration
	IdleTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 45 * time.Second
	}
	if c.AutosaveDelay <= 0 {
		c.AutosaveDelay = time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.ProviderTimeout + 15*time.Second
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	return c
}

// View is the state returned to the presentation layer after every action.
type View struct {
	StageIndex      int                      `json:"stage_index"`
	StageCount      int                      `json:"stage_count"`
	Stage           Stage                    `json:"stage"`
	Record          *types.DevelopmentRecord `json:"record"`
	Providers       []string                 `json:"providers"`
	CurrentProvider string                   `json:"current_provider"`
	AutosavePending bool                     `json:"autosave_pending"`
	Warnings        []string                 `json:"warnings,omitempty"`
}

type GenerateResult struct {
	View
	Added    map[string]int `json:"added"`
	Degraded bool           `json:"degraded"`
	Usage    *llm.Usage     `json:"usage,omitempty"`
}

// Workflow is one open development session of a post. The local record is
// the working copy; category and prompt edits are autosaved, while stage
// transitions, generation results and Save are written immediately and bump
// the record version.
type Workflow struct {
	log      *logger.Logger
	cfg      Config
	dev      repos.DevelopmentRepo
	posts    repos.PostRepo
	locker   lock.Locker
	registry *llm.Registry
	metrics  *observability.Metrics

	userID uuid.UUID
	postID uuid.UUID

	// ctx lives as long as the workflow; Close cancels in-flight generations.
	ctx      context.Context
	cancel   context.CancelFunc
	autosave *Debouncer

	mu            sync.Mutex
	record        *types.DevelopmentRecord
	stageIndex    int
	loadedVersion int
	closed        bool
	lastUsed      time.Time
	now           func() time.Time
}

type workflowDeps struct {
	Log      *logger.Logger
	Config   Config
	Dev      repos.DevelopmentRepo
	Posts    repos.PostRepo
	Locker   lock.Locker
	Registry *llm.Registry
	Metrics  *observability.Metrics
}

func newWorkflow(d workflowDeps, userID, postID uuid.UUID) *Workflow {
	if d.Registry == nil {
		d.Registry = llm.NewRegistry()
	}
	if d.Locker == nil {
		d.Locker = lock.NewMemoryLocker()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workflow{
		log:      d.Log.With("service", "DevelopmentWorkflow", "post_id", postID.String()),
		cfg:      d.Config.withDefaults(),
		dev:      d.Dev,
		posts:    d.Posts,
		locker:   d.Locker,
		registry: d.Registry,
		metrics:  d.Metrics,
		userID:   userID,
		postID:   postID,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
	w.autosave = NewDebouncer(w.cfg.AutosaveDelay, w.runAutosave)
	w.lastUsed = w.now()
	return w
}

func (w *Workflow) PostID() uuid.UUID { return w.postID }

// load returns the post's most recent record, creating the first one when
// the post has none.
func (w *Workflow) load(ctx context.Context) error {
	rec, err := w.dev.GetLatestByPostID(ctx, nil, w.postID)
	if err != nil {
		return fmt.Errorf("load development record: %w", err)
	}
	if rec == nil {
		first := FirstStage()
		ideas := types.Ideas{}
		for _, c := range parse.AllCategories() {
			ideas[c] = []string{}
		}
		rec, err = w.dev.Create(ctx, nil, &types.DevelopmentRecord{
			PostID:       w.postID,
			Status:       first.Status(),
			Version:      1,
			SystemPrompt: first.DefaultSystemPrompt,
			Ideas:        datatypes.NewJSONType(ideas),
		})
		if err != nil {
			return fmt.Errorf("create development record: %w", err)
		}
		w.log.Info("Created development record", "record_id", rec.ID.String())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.record = rec
	w.stageIndex = StageIndex(rec.Status)
	w.loadedVersion = rec.Version
	if strings.TrimSpace(rec.SystemPrompt) == "" {
		rec.SystemPrompt = stageAt(w.stageIndex).DefaultSystemPrompt
	}
	return nil
}

func (w *Workflow) View() (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, ErrWorkflowClosed
	}
	w.touchLocked()
	return w.viewLocked(), nil
}

func (w *Workflow) Advance(ctx context.Context) (View, error) { return w.step(ctx, 1) }

func (w *Workflow) Retreat(ctx context.Context) (View, error) { return w.step(ctx, -1) }

// step moves one stage. Moving past either end is a no-op. The new status
// and the new stage's default system prompt are persisted together with the
// pending local edits.
func (w *Workflow) step(ctx context.Context, delta int) (View, error) {
	lease, err := w.acquire(ctx)
	if err != nil {
		return View{}, err
	}
	defer w.release(lease)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, ErrWorkflowClosed
	}
	w.touchLocked()

	next := w.stageIndex + delta
	if next < 0 || next >= len(stages) {
		return w.viewLocked(), nil
	}
	st := stages[next]
	status := st.Status()
	sp := st.DefaultSystemPrompt

	patch := w.statePatchLocked()
	patch.Status = &status
	patch.SystemPrompt = &sp
	patch.BumpVersion = true
	if err := w.saveNowLocked(ctx, patch); err != nil {
		return View{}, err
	}
	w.stageIndex = next
	w.log.Info("Stage changed", "stage", st.Label, "version", w.record.Version)
	return w.viewLocked(), nil
}

// Generate dispatches the active stage's composite prompt to the current
// provider and merges the parsed items into the record. original, when
// non-nil, is the author prompt for this call and is stored with the result.
// Nothing is stored when the provider fails.
func (w *Workflow) Generate(ctx context.Context, original *string) (GenerateResult, error) {
	lease, err := w.acquire(ctx)
	if err != nil {
		return GenerateResult{}, err
	}
	defer w.release(lease)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return GenerateResult{}, ErrWorkflowClosed
	}
	w.touchLocked()
	st := stageAt(w.stageIndex)
	snapshot := copyRecord(w.record)
	if original != nil {
		snapshot.Original = *original
	}
	reg := w.registry
	w.mu.Unlock()

	provider := reg.Current()
	if provider == nil {
		return GenerateResult{}, llm.NoProviderError()
	}

	composite, factPrompt, err := w.buildPrompts(ctx, st, snapshot)
	if err != nil {
		return GenerateResult{}, err
	}

	started := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, w.cfg.ProviderTimeout)
	defer cancel()
	stop := context.AfterFunc(w.ctx, cancel)
	defer stop()

	var search llm.Provider
	if st.SearchAugmented && !provider.Searches() && factPrompt != "" {
		search = reg.FirstSearch()
	}

	var (
		general    llm.GeneratedText
		searchText string
		searchErr  error
	)
	g, gctx := errgroup.WithContext(genCtx)
	g.Go(func() error {
		out, err := provider.Generate(gctx, composite, llm.Options{})
		if err != nil {
			return err
		}
		general = out
		return nil
	})
	if search != nil {
		g.Go(func() error {
			out, err := search.Generate(gctx, factPrompt, llm.Options{})
			if err != nil {
				searchErr = err
				return nil
			}
			searchText = strings.TrimSpace(out.Text)
			return nil
		})
	}
	genErr := g.Wait()
	if w.ctx.Err() != nil {
		w.log.Info("Dropping generation result for closed workflow", "stage", st.Label)
		return GenerateResult{}, ErrWorkflowClosed
	}
	if genErr != nil {
		w.metrics.ObserveGeneration(st.Label, provider.Key(), "error", time.Since(started), 0, 0)
		w.log.Warn("Generation failed", "stage", st.Label, "provider", provider.Key(), "error", genErr)
		return GenerateResult{}, genErr
	}

	var warnings []string
	incoming := map[string][]string{}
	degraded := false
	hasResearchAreas := containsString(st.Categories, parse.ResearchAreas)
	switch {
	case provider.Searches():
		if hasResearchAreas {
			incoming[parse.ResearchAreas] = []string{strings.TrimSpace(general.Text)}
		}
	case len(st.Categories) > 0:
		res := parse.Parse(general.Text, st.Categories)
		incoming = res.Items
		degraded = res.Degraded
		w.log.Debug("Parsed generated text", "stage", st.Label, "items", res.Total())
		if degraded {
			w.log.Warn("No sections recognized in generated text", "stage", st.Label, "provider", provider.Key())
			warnings = append(warnings, "The response had no recognizable sections; no new items were added.")
		}
	}
	if searchErr != nil {
		w.log.Warn("Search augmentation failed", "stage", st.Label, "provider", search.Key(), "error", searchErr)
		warnings = append(warnings, fmt.Sprintf("Search with %s failed: %v", search.Key(), searchErr))
	}
	if searchText != "" && hasResearchAreas {
		incoming[parse.ResearchAreas] = append([]string{searchText}, incoming[parse.ResearchAreas]...)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return GenerateResult{}, ErrWorkflowClosed
	}
	merged, added := mergeItems(w.record.IdeaMap(), incoming)
	patch := w.statePatchLocked()
	if original != nil {
		prompt := *original
		patch.Original = &prompt
	}
	patch.Ideas = merged
	patch.Artifacts = map[string]string{}
	if st.ArtifactField != "" {
		patch.Artifacts[st.ArtifactField] = general.Text
	}
	if search != nil && st.ArtifactField == types.FieldResearchFindings {
		patch.Artifacts[types.FieldResearchPrompt] = factPrompt
	}
	patch.BumpVersion = true
	if err := w.saveNowLocked(ctx, patch); err != nil {
		return GenerateResult{}, err
	}

	status := "ok"
	if degraded {
		status = "degraded"
	}
	var inTok, outTok int
	if general.Usage != nil {
		inTok, outTok = general.Usage.InputTokens, general.Usage.OutputTokens
	}
	w.metrics.ObserveGeneration(st.Label, provider.Key(), status, time.Since(started), inTok, outTok)

	total := 0
	for _, n := range added {
		total += n
	}
	w.log.Info("Generation applied", "stage", st.Label, "provider", provider.Key(), "added", total, "degraded", degraded)

	view := w.viewLocked()
	view.Warnings = warnings
	return GenerateResult{View: view, Added: added, Degraded: degraded, Usage: general.Usage}, nil
}

func (w *Workflow) buildPrompts(ctx context.Context, st Stage, rec *types.DevelopmentRecord) (string, string, error) {
	in := prompts.Input{
		StageLabel: st.Label,
		Original:   rec.Original,
	}
	if strings.TrimSpace(in.Original) == "" {
		in.Original = "Continue developing this post."
	}
	if w.posts != nil {
		post, err := w.posts.GetByID(ctx, nil, w.postID)
		if err != nil {
			return "", "", fmt.Errorf("load post: %w", err)
		}
		if post != nil {
			in.PostTitle = post.Title
			in.PostBrief = post.BriefDescription
			if strings.TrimSpace(in.PostBrief) == "" {
				in.PostBrief = htmltext.Excerpt(post.Content, 200)
			}
			if post.ParentID != nil {
				parent, err := w.posts.GetByID(ctx, nil, *post.ParentID)
				if err != nil {
					return "", "", fmt.Errorf("load parent post: %w", err)
				}
				if parent != nil {
					in.ParentTitle = parent.Title
				}
			}
		}
	}
	ideas := rec.IdeaMap()
	for _, c := range st.Categories {
		in.Sections = append(in.Sections, prompts.Section{Header: parse.Header(c), Items: ideas[c]})
	}
	for i := 0; i < StageIndex(st.Label); i++ {
		prev := stages[i]
		if prev.ArtifactField == "" {
			continue
		}
		if text := strings.TrimSpace(rec.Artifact(prev.ArtifactField)); text != "" {
			in.Artifacts = append(in.Artifacts, prompts.Artifact{Label: strings.ToUpper(prev.Label) + " NOTES", Text: text})
		}
	}

	prompts.RegisterAll()
	framing, err := prompts.Build(prompts.PromptStageFraming, in)
	if err != nil {
		return "", "", err
	}
	composite := strings.TrimSpace(rec.SystemPrompt) + "\n\n" + framing

	in.Topic = strings.TrimSpace(rec.Original)
	if in.Topic == "" {
		in.Topic = in.PostTitle
	}
	var fact string
	if st.SearchAugmented && strings.TrimSpace(in.Topic) != "" {
		fact, err = prompts.Build(prompts.PromptFactFinding, in)
		if err != nil {
			return "", "", err
		}
	}
	return composite, fact, nil
}

func (w *Workflow) AddItem(category, text string) (View, error) {
	return w.mutateIdeas(func(ideas types.Ideas) (types.Ideas, bool, error) {
		return addItem(ideas, category, text)
	})
}

func (w *Workflow) DeleteItem(category string, index int) (View, error) {
	return w.mutateIdeas(func(ideas types.Ideas) (types.Ideas, bool, error) {
		return deleteItem(ideas, category, index)
	})
}

func (w *Workflow) MoveItem(from string, index int, to string) (View, error) {
	return w.mutateIdeas(func(ideas types.Ideas) (types.Ideas, bool, error) {
		return moveItem(ideas, from, index, to)
	})
}

func (w *Workflow) mutateIdeas(fn func(types.Ideas) (types.Ideas, bool, error)) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, ErrWorkflowClosed
	}
	w.touchLocked()
	next, changed, err := fn(w.record.IdeaMap())
	if err != nil {
		return View{}, err
	}
	if changed {
		w.record.Ideas = datatypes.NewJSONType(next)
		w.autosave.Schedule()
	}
	return w.viewLocked(), nil
}

// UpdatePrompts edits the author prompt and/or the stage system prompt.
// An empty system prompt restores the stage default.
func (w *Workflow) UpdatePrompts(original, systemPrompt *string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, ErrWorkflowClosed
	}
	w.touchLocked()
	changed := false
	if original != nil && *original != w.record.Original {
		w.record.Original = *original
		changed = true
	}
	if systemPrompt != nil {
		sp := *systemPrompt
		if strings.TrimSpace(sp) == "" {
			sp = stageAt(w.stageIndex).DefaultSystemPrompt
		}
		if sp != w.record.SystemPrompt {
			w.record.SystemPrompt = sp
			changed = true
		}
	}
	if changed {
		w.autosave.Schedule()
	}
	return w.viewLocked(), nil
}

// SetProvider selects the provider for the next generation. An unknown key
// keeps the registry's fallback and reports it as a warning.
func (w *Workflow) SetProvider(key string) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, ErrWorkflowClosed
	}
	w.touchLocked()
	var warnings []string
	if err := w.registry.SetCurrent(key); err != nil {
		fallback := w.registry.CurrentKey()
		w.log.Warn("Provider selection rejected", "requested", key, "fallback", fallback, "error", err)
		if fallback == "" {
			warnings = append(warnings, "No AI service available")
		} else {
			warnings = append(warnings, fmt.Sprintf("Provider %q is not configured; using %s.", key, fallback))
		}
	}
	view := w.viewLocked()
	view.Warnings = warnings
	return view, nil
}

// Save writes the working copy now and bumps the version.
func (w *Workflow) Save(ctx context.Context) (View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return View{}, ErrWorkflowClosed
	}
	w.touchLocked()
	patch := w.statePatchLocked()
	patch.BumpVersion = true
	if err := w.saveNowLocked(ctx, patch); err != nil {
		return View{}, err
	}
	return w.viewLocked(), nil
}

// Close tears the workflow down: the pending autosave is flushed or
// dropped, and in-flight generations are cancelled and their results
// discarded. Close is idempotent.
func (w *Workflow) Close(ctx context.Context, flush bool) error {
	pending := w.autosave.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	var err error
	if flush && pending {
		err = w.persistLocked(ctx, w.statePatchLocked(), false)
	}
	w.closed = true
	w.cancel()
	w.log.Debug("Development workflow closed", "flushed", flush && pending)
	return err
}

// replaceRegistry swaps in a fresh registry, keeping the selected provider
// when it is still configured.
func (w *Workflow) replaceRegistry(reg *llm.Registry) {
	if reg == nil {
		reg = llm.NewRegistry()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev := w.registry.CurrentKey(); prev != "" && reg.Get(prev) != nil {
		_ = reg.SetCurrent(prev)
	}
	w.registry = reg
}

func (w *Workflow) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

func (w *Workflow) runAutosave() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.persistLocked(ctx, w.statePatchLocked(), false); err != nil {
		w.log.Warn("Autosave failed", "error", err)
	}
}

// saveNowLocked replaces a pending autosave with an immediate write. The
// autosave is rescheduled if the write fails.
func (w *Workflow) saveNowLocked(ctx context.Context, patch types.DevelopmentPatch) error {
	hadPending := w.autosave.Cancel()
	if err := w.persistLocked(ctx, patch, patch.BumpVersion); err != nil {
		if hadPending {
			w.autosave.Schedule()
		}
		return err
	}
	return nil
}

// persistLocked writes patch and adopts the stored row on success. Explicit
// writes warn when another session moved the version since load.
func (w *Workflow) persistLocked(ctx context.Context, patch types.DevelopmentPatch, explicit bool) error {
	if explicit {
		stored, err := w.dev.GetByID(ctx, nil, w.record.ID)
		if err == nil && stored != nil && stored.Version != w.loadedVersion {
			w.log.Warn("development record version moved",
				"record_id", w.record.ID.String(),
				"loaded_version", w.loadedVersion,
				"stored_version", stored.Version,
			)
		}
	}
	updated, err := w.dev.Update(ctx, nil, w.postID, w.record.ID, patch)
	if err != nil {
		return fmt.Errorf("save development record: %w", err)
	}
	w.record = updated
	w.loadedVersion = updated.Version
	return nil
}

func (w *Workflow) statePatchLocked() types.DevelopmentPatch {
	original := w.record.Original
	sp := w.record.SystemPrompt
	return types.DevelopmentPatch{
		Original:     &original,
		SystemPrompt: &sp,
		Ideas:        w.record.IdeaMap(),
	}
}

func (w *Workflow) viewLocked() View {
	return View{
		StageIndex:      w.stageIndex,
		StageCount:      len(stages),
		Stage:           stageAt(w.stageIndex),
		Record:          copyRecord(w.record),
		Providers:       w.registry.ListAvailable(),
		CurrentProvider: w.registry.CurrentKey(),
		AutosavePending: w.autosave.Pending(),
	}
}

func (w *Workflow) touchLocked() { w.lastUsed = w.now() }

func (w *Workflow) acquire(ctx context.Context) (*lock.Lease, error) {
	if w.ctx.Err() != nil {
		return nil, ErrWorkflowClosed
	}
	lease, err := w.locker.TryAcquire(ctx, "development:"+w.postID.String(), w.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire development lock: %w", err)
	}
	return lease, nil
}

func (w *Workflow) release(lease *lock.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		w.log.Warn("Failed to release development lock", "error", err)
	}
}

func copyRecord(rec *types.DevelopmentRecord) *types.DevelopmentRecord {
	if rec == nil {
		return nil
	}
	c := *rec
	c.Ideas = datatypes.NewJSONType(rec.IdeaMap())
	return &c
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
