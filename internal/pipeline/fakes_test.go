package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/types"
)

// memStore is an in-memory stand-in for db.DB covering the pipeline's store interfaces.
type memStore struct {
	mu       sync.Mutex
	configs  map[uuid.UUID]*types.AutopilotConfig
	articles map[uuid.UUID]*types.Article
	runs     map[uuid.UUID]*types.ScheduledRun
	locked   map[uuid.UUID]bool

	// beforeTransition runs ahead of every scheduled run transition, letting
	// tests simulate a concurrent writer.
	beforeTransition func(run *types.ScheduledRun)
	// completeErrs are returned, in order, by the next CompleteScheduledRun calls.
	completeErrs []error
	// clock stamps UpdatedAt on added and transitioned rows.
	clock func() time.Time
}

func (m *memStore) stamp() time.Time {
	if m.clock == nil {
		return time.Time{}
	}
	return m.clock()
}

func newMemStore() *memStore {
	return &memStore{
		configs:  map[uuid.UUID]*types.AutopilotConfig{},
		articles: map[uuid.UUID]*types.Article{},
		runs:     map[uuid.UUID]*types.ScheduledRun{},
		locked:   map[uuid.UUID]bool{},
	}
}

func (m *memStore) addSite(domain string) *types.AutopilotConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := &types.AutopilotConfig{
		SiteID:         uuid.New(),
		OrganizationID: uuid.New(),
		Domain:         domain,
		Enabled:        true,
		Cadence:        types.CadenceWeekly,
		ReasoningLevel: types.ReasoningMedium,
		ArticlesPerRun: 1,
	}
	m.configs[cfg.SiteID] = cfg
	return m.config(cfg.SiteID)
}

func (m *memStore) addRun(siteID uuid.UUID, date time.Time, status types.ScheduledRunStatus, keyword *types.Keyword) *types.ScheduledRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &types.ScheduledRun{ID: uuid.New(), SiteID: siteID, ScheduledDate: types.Day(date), Status: status, UpdatedAt: m.stamp()}
	if keyword != nil {
		run.KeywordID = &keyword.ID
		run.KeywordText = &keyword.Keyword
	}
	m.runs[run.ID] = run
	cp := *run
	return &cp
}

// config returns a copy of the stored config. Callers must hold mu or be single-threaded.
func (m *memStore) config(siteID uuid.UUID) *types.AutopilotConfig {
	cfg, ok := m.configs[siteID]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func (m *memStore) snapshot(siteID uuid.UUID) *types.AutopilotConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config(siteID)
}

func (m *memStore) run(id uuid.UUID) types.ScheduledRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.runs[id]
}

func (m *memStore) update(siteID uuid.UUID, fn func(cfg *types.AutopilotConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[siteID]
	if !ok {
		return db.ErrSiteNotFound
	}
	fn(cfg)
	return nil
}

func (m *memStore) SavePipelineKeyword(_ context.Context, siteID, keywordID uuid.UUID) error {
	return m.update(siteID, func(cfg *types.AutopilotConfig) {
		cfg.PipelineStep = types.PipelineStepAwaitingGeneration
		cfg.PipelineKeywordID = &keywordID
		cfg.PipelineArticleID = nil
		cfg.LastError = nil
	})
}

func (m *memStore) SavePipelineArticle(_ context.Context, siteID, articleID uuid.UUID) error {
	return m.update(siteID, func(cfg *types.AutopilotConfig) {
		cfg.PipelineArticleID = &articleID
	})
}

func (m *memStore) ClearPipelineProgress(_ context.Context, siteID uuid.UUID, lastRunAt time.Time) error {
	return m.update(siteID, func(cfg *types.AutopilotConfig) {
		cfg.PipelineStep = types.PipelineStepNone
		cfg.PipelineKeywordID = nil
		cfg.PipelineArticleID = nil
		cfg.LastRunAt = &lastRunAt
		cfg.LastError = nil
	})
}

func (m *memStore) SetLastError(_ context.Context, siteID uuid.UUID, message string) error {
	return m.update(siteID, func(cfg *types.AutopilotConfig) {
		cfg.LastError = &message
	})
}

func (m *memStore) GetArticle(_ context.Context, id uuid.UUID) (*types.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	article, ok := m.articles[id]
	if !ok {
		return nil, nil
	}
	cp := *article
	return &cp, nil
}

func (m *memStore) GetAutopilotConfig(_ context.Context, siteID uuid.UUID) (*types.AutopilotConfig, error) {
	return m.snapshot(siteID), nil
}

func (m *memStore) UpdateAutopilotConfig(_ context.Context, siteID uuid.UUID, update types.AutopilotConfigUpdate) (*types.AutopilotConfig, error) {
	err := m.update(siteID, func(cfg *types.AutopilotConfig) {
		if update.NextRunAt != nil {
			cfg.NextRunAt = update.NextRunAt
		}
		if update.ArticlesPerRun != nil {
			cfg.ArticlesPerRun = *update.ArticlesPerRun
		}
	})
	if err != nil {
		return nil, err
	}
	return m.snapshot(siteID), nil
}

func (m *memStore) ListAutopilotSites(_ context.Context) ([]types.AutopilotConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.AutopilotConfig
	for id, cfg := range m.configs {
		if cfg.Enabled {
			out = append(out, *m.config(id))
		}
	}
	return out, nil
}

func (m *memStore) ListScheduledRunsByStatus(_ context.Context, siteID uuid.UUID, date time.Time, status types.ScheduledRunStatus) ([]types.ScheduledRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ScheduledRun
	for _, run := range m.runs {
		if run.SiteID == siteID && run.ScheduledDate.Equal(types.Day(date)) && run.Status == status {
			out = append(out, *run)
		}
	}
	// Stable order for assertions.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID.String() < out[j-1].ID.String(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (m *memStore) transition(id uuid.UUID, from, to types.ScheduledRunStatus, apply func(run *types.ScheduledRun)) error {
	if !types.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", db.ErrInvalidTransition, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: expected %s", db.ErrStatusConflict, from)
	}
	if m.beforeTransition != nil {
		m.beforeTransition(run)
	}
	if run.Status != from {
		return fmt.Errorf("%w: expected %s", db.ErrStatusConflict, from)
	}
	run.Status = to
	run.UpdatedAt = m.stamp()
	if apply != nil {
		apply(run)
	}
	return nil
}

func (m *memStore) TransitionScheduledRun(_ context.Context, id uuid.UUID, from, to types.ScheduledRunStatus) error {
	return m.transition(id, from, to, nil)
}

func (m *memStore) PickScheduledRunKeyword(_ context.Context, id uuid.UUID, keyword *types.Keyword) error {
	return m.transition(id, types.ScheduledRunPending, types.ScheduledRunKeywordPicked, func(run *types.ScheduledRun) {
		run.KeywordID = &keyword.ID
		run.KeywordText = &keyword.Keyword
	})
}

func (m *memStore) CompleteScheduledRun(_ context.Context, id uuid.UUID, article *types.Article, publishedURL string) error {
	m.mu.Lock()
	if len(m.completeErrs) > 0 {
		err := m.completeErrs[0]
		m.completeErrs = m.completeErrs[1:]
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	return m.transition(id, types.ScheduledRunRunning, types.ScheduledRunCompleted, func(run *types.ScheduledRun) {
		run.ArticleID = &article.ID
		run.ArticleTitle = &article.Title
		run.PublishedURL = &publishedURL
	})
}

func (m *memStore) FailScheduledRun(_ context.Context, id uuid.UUID, from types.ScheduledRunStatus, message string) error {
	return m.transition(id, from, types.ScheduledRunFailed, func(run *types.ScheduledRun) {
		run.LastError = &message
	})
}

func (m *memStore) FailStaleScheduledRuns(_ context.Context, siteID uuid.UUID, olderThan time.Time, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, run := range m.runs {
		if run.SiteID == siteID && run.Status == types.ScheduledRunRunning && run.UpdatedAt.Before(olderThan) {
			run.Status = types.ScheduledRunFailed
			run.LastError = &message
			run.UpdatedAt = m.stamp()
			n++
		}
	}
	return n, nil
}

func (m *memStore) TryLock(_ context.Context, siteID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[siteID] {
		return false, nil
	}
	m.locked[siteID] = true
	return true, nil
}

func (m *memStore) Unlock(_ context.Context, siteID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, siteID)
	return nil
}

// MockOpportunities is a mock implementation of OpportunityService
type MockOpportunities struct {
	mu           sync.Mutex
	RefreshFunc  func(ctx context.Context, site *types.AutopilotConfig) (*types.RefreshResult, error)
	PickFunc     func(ctx context.Context, siteID uuid.UUID) (*types.Keyword, error)
	RefreshCalls int
	PickCalls    int
}

func (m *MockOpportunities) RefreshOpportunities(ctx context.Context, site *types.AutopilotConfig) (*types.RefreshResult, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, site)
	}
	return &types.RefreshResult{QueriesSynced: 120, OpportunitiesScored: 40}, nil
}

func (m *MockOpportunities) PickBestKeyword(ctx context.Context, siteID uuid.UUID) (*types.Keyword, error) {
	m.mu.Lock()
	m.PickCalls++
	n := m.PickCalls
	m.mu.Unlock()
	if m.PickFunc != nil {
		return m.PickFunc(ctx, siteID)
	}
	return &types.Keyword{
		ID:          uuid.New(),
		SiteID:      siteID,
		Keyword:     fmt.Sprintf("keyword %d", n),
		Opportunity: types.OpportunityStrikingDistance,
		Score:       0.8,
	}, nil
}

// MockGenerator is a mock implementation of ArticleGenerator
type MockGenerator struct {
	mu           sync.Mutex
	store        *memStore
	GenerateFunc func(ctx context.Context, req types.GenerateRequest) (*types.Article, error)
	Requests     []types.GenerateRequest
}

func (m *MockGenerator) Generate(ctx context.Context, req types.GenerateRequest) (*types.Article, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	var article *types.Article
	if m.GenerateFunc != nil {
		a, err := m.GenerateFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		article = a
	} else {
		article = &types.Article{Title: "Generated Article", Slug: "generated-article"}
	}
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	article.SiteID = req.SiteID
	article.KeywordID = req.KeywordID
	article.Status = types.ArticleDraft
	if m.store != nil {
		m.store.mu.Lock()
		cp := *article
		m.store.articles[article.ID] = &cp
		m.store.mu.Unlock()
	}
	return article, nil
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mu          sync.Mutex
	store       *memStore
	PublishFunc func(ctx context.Context, req types.PublishRequest) (*types.PublishResult, error)
	Requests    []types.PublishRequest
}

func (m *MockPublisher) PublishAndIndex(ctx context.Context, req types.PublishRequest) (*types.PublishResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, req)
	}
	slug := req.ArticleID.String()
	if m.store != nil {
		if article, _ := m.store.GetArticle(ctx, req.ArticleID); article != nil {
			slug = article.Slug
		}
	}
	return &types.PublishResult{
		PublishedURL:      "https://s.example/blog/" + slug,
		IndexingSubmitted: req.SubmitIndexing,
	}, nil
}

type harness struct {
	store         *memStore
	opportunities *MockOpportunities
	generator     *MockGenerator
	publisher     *MockPublisher
	orchestrator  *Orchestrator
	executor      *Executor
	now           time.Time
}

func newHarness() *harness {
	store := newMemStore()
	h := &harness{
		store:         store,
		opportunities: &MockOpportunities{},
		generator:     &MockGenerator{store: store},
		publisher:     &MockPublisher{store: store},
		now:           time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
	}
	store.clock = func() time.Time { return h.now }
	h.orchestrator = NewOrchestrator(store, h.opportunities, h.generator, h.publisher, nil)
	h.orchestrator.now = func() time.Time { return h.now }
	h.executor = NewExecutor(h.orchestrator, store, store, store, nil)
	h.executor.now = func() time.Time { return h.now }
	return h
}
