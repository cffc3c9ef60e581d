package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"splunk-log-downloader/internal/cache"
	"splunk-log-downloader/internal/config"
	"splunk-log-downloader/internal/models"
	"splunk-log-downloader/internal/splunk"
)

// stubService implements Service through optional function fields; calls to
// unset fields return zero values.
type stubService struct {
	login          func(ctx context.Context) error
	createJob      func(ctx context.Context, cfg models.SearchConfig) (string, error)
	getJob         func(ctx context.Context, sid string) (splunk.JobInfo, error)
	resultsPage    func(ctx context.Context, sid string, offset, count int) (models.ResultPage, error)
	rawResultsPage func(ctx context.Context, sid string, offset, count int) (models.ResultPage, error)
	exportBySID    func(ctx context.Context, sid string) ([]string, error)
	exportByQuery  func(ctx context.Context, cfg models.SearchConfig) ([]string, error)
}

func (s *stubService) Login(ctx context.Context) error {
	if s.login != nil {
		return s.login(ctx)
	}
	return nil
}

func (s *stubService) CreateJob(ctx context.Context, cfg models.SearchConfig) (string, error) {
	if s.createJob != nil {
		return s.createJob(ctx, cfg)
	}
	return "sid-stub", nil
}

func (s *stubService) GetJob(ctx context.Context, sid string) (splunk.JobInfo, error) {
	if s.getJob != nil {
		return s.getJob(ctx, sid)
	}
	return splunk.JobInfo{SID: sid, DispatchState: "DONE", IsDone: true}, nil
}

func (s *stubService) ResultsPage(ctx context.Context, sid string, offset, count int) (models.ResultPage, error) {
	if s.resultsPage != nil {
		return s.resultsPage(ctx, sid, offset, count)
	}
	return models.ResultPage{}, nil
}

func (s *stubService) RawResultsPage(ctx context.Context, sid string, offset, count int) (models.ResultPage, error) {
	if s.rawResultsPage != nil {
		return s.rawResultsPage(ctx, sid, offset, count)
	}
	return models.ResultPage{}, nil
}

func (s *stubService) ExportBySID(ctx context.Context, sid string) ([]string, error) {
	if s.exportBySID != nil {
		return s.exportBySID(ctx, sid)
	}
	return nil, nil
}

func (s *stubService) ExportByQuery(ctx context.Context, cfg models.SearchConfig) ([]string, error) {
	if s.exportByQuery != nil {
		return s.exportByQuery(ctx, cfg)
	}
	return nil, nil
}

// fakeClock advances instantly on Sleep so poll loops run without delay.
type fakeClock struct {
	now       time.Time
	sleeps    []time.Duration
	sleepHook func()
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.sleepHook != nil {
		c.sleepHook()
	}
	return ctx.Err()
}

// memStore is an in-memory cache.Store.
type memStore struct {
	mu     sync.Mutex
	handle models.JobHandle
	ok     bool
	saves  int
}

func (s *memStore) Load(context.Context) (models.JobHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.ok
}

func (s *memStore) Save(_ context.Context, h models.JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
	s.ok = true
	s.saves++
	return nil
}

// collectSink gathers every page the orchestrator emits.
type collectSink struct {
	pages []models.ResultPage
	fail  error
}

func (s *collectSink) Consume(page models.ResultPage) error {
	if s.fail != nil {
		return s.fail
	}
	s.pages = append(s.pages, page)
	return nil
}

func (s *collectSink) rows() []models.Row {
	var out []models.Row
	for _, p := range s.pages {
		out = append(out, p.Rows...)
	}
	return out
}

func (s *collectSink) lines() []string {
	var out []string
	for _, p := range s.pages {
		out = append(out, p.Lines...)
	}
	return out
}

func testConfig(mode string, pageSize int, debug bool) *config.Config {
	return &config.Config{
		Search: models.SearchConfig{
			Query:      "search index=main",
			Earliest:   "-1h",
			Latest:     "now",
			App:        "search",
			OutputMode: mode,
			PageSize:   pageSize,
			Debug:      debug,
		},
		SplunkURL:       "https://stub:8089",
		Username:        "admin",
		Password:        "secret",
		PollInterval:    2 * time.Second,
		PollIntervalMax: 30 * time.Second,
		PollBudget:      15 * time.Minute,
		PagesPerSecond:  0, // no pacing in tests
	}
}

func testOrchestrator(cfg *config.Config, svc Service, store *memStore) (*Orchestrator, *fakeClock) {
	var cs cache.Store
	if store != nil {
		cs = store
	}
	o := New(cfg, svc, cs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	o.clock = clock
	return o, clock
}

// statusScript feeds successive job infos per SID.
type statusScript struct {
	mu    sync.Mutex
	steps map[string][]func() (splunk.JobInfo, error)
}

func (s *statusScript) next(_ context.Context, sid string) (splunk.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.steps[sid]
	if len(queue) == 0 {
		return splunk.JobInfo{}, fmt.Errorf("no scripted status for %s", sid)
	}
	step := queue[0]
	if len(queue) > 1 {
		s.steps[sid] = queue[1:]
	}
	return step()
}

func running() func() (splunk.JobInfo, error) {
	return func() (splunk.JobInfo, error) {
		return splunk.JobInfo{DispatchState: "RUNNING", DoneProgress: 0.5}, nil
	}
}

func pending() func() (splunk.JobInfo, error) {
	return func() (splunk.JobInfo, error) {
		return splunk.JobInfo{DispatchState: "QUEUED"}, nil
	}
}

func done(resultCount int) func() (splunk.JobInfo, error) {
	return func() (splunk.JobInfo, error) {
		return splunk.JobInfo{DispatchState: "DONE", IsDone: true, ResultCount: resultCount}, nil
	}
}

func gone() func() (splunk.JobInfo, error) {
	return func() (splunk.JobInfo, error) {
		return splunk.JobInfo{}, splunk.ErrJobNotFound
	}
}
