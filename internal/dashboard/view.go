// Package dashboard holds the per-view state of the KOSPI dashboard and the polling that keeps it
// fresh. A View is owned by one open browser page; every state write goes through its mutators.
package dashboard

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kdb-labs/kospi-chat/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the cadence at which the index and the top movers are refetched.
const DefaultPollInterval = 30 * time.Second

const errLoggerKey = "err"

// Fetcher provides the remote data a View displays. Every method is an idempotent read except Ask,
// which starts a new conversational turn on the chat backend.
type Fetcher interface {
	Index(ctx context.Context) (models.IndexSnapshot, error)
	News(ctx context.Context, company string) ([]models.NewsItem, error)
	TopMovers(ctx context.Context) ([]models.RankedStock, error)
	Listings(ctx context.Context) ([]models.SecurityListing, error)
	Ask(ctx context.Context, question string) (string, error)
}

// ListingCache keeps the last known security list across views and restarts.
type ListingCache interface {
	Listings(ctx context.Context) ([]models.SecurityListing, error)
	SaveListings(ctx context.Context, listings []models.SecurityListing) error
}

// Part names the region of the page affected by a state change.
type Part string

// Parts of the page, each rendered by its own template.
const (
	PartChat   Part = "chat"
	PartInput  Part = "input"
	PartMarket Part = "market"
	PartNews   Part = "news"
	PartPicker Part = "picker"
	PartPlans  Part = "plans"
)

// ChangeFunc is called after a state change, outside of the View's lock.
type ChangeFunc func(viewID string, part Part)

// State is everything the page renders. Values returned by View.Snapshot are copies and may be read
// freely.
type State struct {
	Transcript []models.ChatMessage
	Input      string
	Sending    bool

	Index       models.IndexSnapshot
	IndexLoaded bool

	TopMovers        []models.RankedStock
	LoadingTopMovers bool

	Listings       []models.SecurityListing
	ListingsLoaded bool

	Companies []string
	News      models.CompanyNews

	PlansOpen bool
}

// Options configures a View.
type Options struct {
	PollInterval time.Duration
	Companies    []string
	Listings     ListingCache
	OnChange     ChangeFunc
}

// mountRun is the loading started by one 0 to 1 mount transition.
type mountRun struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// View is the state container of one open dashboard page.
type View struct {
	id       string
	fetcher  Fetcher
	interval time.Duration
	listings ListingCache
	onChange ChangeFunc

	mu    sync.Mutex
	state State

	// Generations order overlapping fetches by issue time: a result is applied only when it is
	// newer than the last applied one.
	indexIssued, indexApplied   uint64
	moversIssued, moversApplied uint64

	// mounts counts the open streams of the view; loading runs while it is positive.
	mounts int
	run    *mountRun

	logger *slog.Logger
}

// NewView creates an unmounted view. Its transcript starts with the assistant greeting and the top
// movers are marked as loading until the first fetch settles.
func NewView(id string, fetcher Fetcher, opts Options, logger *slog.Logger) *View {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	companies := opts.Companies
	if len(companies) == 0 {
		companies = models.DefaultCompanies
	}

	return &View{
		id:       id,
		fetcher:  fetcher,
		interval: interval,
		listings: opts.Listings,
		onChange: opts.OnChange,
		state: State{
			Transcript:       []models.ChatMessage{models.NewChatMessage(models.RoleAssistant, models.Greeting)},
			Index:            models.InitialIndex,
			LoadingTopMovers: true,
			Companies:        slices.Clone(companies),
			News:             models.CompanyNews{},
		},
		logger: logger.With(slog.String("module", "view"), slog.String("viewID", id)),
	}
}

// ID returns the view identifier.
func (v *View) ID() string {
	return v.id
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.state
	s.Transcript = slices.Clone(v.state.Transcript)
	s.TopMovers = slices.Clone(v.state.TopMovers)
	s.Listings = slices.Clone(v.state.Listings)
	s.Companies = slices.Clone(v.state.Companies)
	s.News = make(models.CompanyNews, len(v.state.News))
	for company, items := range v.state.News {
		s.News[company] = slices.Clone(items)
	}
	return s
}

// SetInput replaces the chat input buffer.
func (v *View) SetInput(text string) {
	v.update(PartInput, func(s *State) bool {
		s.Input = text
		return true
	})
}

// SelectSecurity prefills the chat input with a question about the security with the given code. It
// does not send anything. Unknown codes are ignored.
func (v *View) SelectSecurity(code string) bool {
	return v.update(PartInput, func(s *State) bool {
		idx := slices.IndexFunc(s.Listings, func(l models.SecurityListing) bool { return l.Code == code })
		if idx == -1 {
			return false
		}
		s.Input = s.Listings[idx].Query()
		return true
	})
}

// SetPlansOpen shows or hides the plan modal.
func (v *View) SetPlansOpen(open bool) {
	v.update(PartPlans, func(s *State) bool {
		s.PlansOpen = open
		return true
	})
}

// Submit sends the input buffer to the chat backend. It is a no-op returning false when the buffer is
// blank or a send is already in flight. Otherwise the user message is appended and the buffer cleared
// right away, and exactly one assistant message, the answer or the fallback, is appended once the
// round trip settles. Submit blocks until then.
func (v *View) Submit(ctx context.Context) bool {
	question, ok := v.beginSend()
	if !ok {
		return false
	}
	v.finishSend(ctx, question)
	return true
}

// SubmitAsync is Submit returning as soon as the user message is appended. The round trip continues
// in the background.
func (v *View) SubmitAsync(ctx context.Context) bool {
	question, ok := v.beginSend()
	if !ok {
		return false
	}
	go v.finishSend(ctx, question)
	return true
}

// SendAsync puts text in the input buffer and submits it as one step, so a concurrent send cannot
// replace the text in between. While a send is in flight it returns false and leaves the buffer as
// it was.
func (v *View) SendAsync(ctx context.Context, text string) bool {
	question, ok := v.beginSendText(&text)
	if !ok {
		return false
	}
	go v.finishSend(ctx, question)
	return true
}

func (v *View) beginSend() (string, bool) {
	return v.beginSendText(nil)
}

// beginSendText enters the sending state with text, or with the input buffer when text is nil.
func (v *View) beginSendText(text *string) (string, bool) {
	var question string
	ok := v.update(PartChat, func(s *State) bool {
		if s.Sending {
			return false
		}
		question = s.Input
		if text != nil {
			question = *text
		}
		if strings.TrimSpace(question) == "" {
			return false
		}
		s.Transcript = append(s.Transcript, models.NewChatMessage(models.RoleUser, question))
		s.Input = ""
		s.Sending = true
		return true
	})
	return question, ok
}

func (v *View) finishSend(ctx context.Context, question string) {
	answer, err := v.fetcher.Ask(ctx, question)
	if err != nil {
		v.logger.Error("Chat request failed", slog.String(errLoggerKey, err.Error()))
		answer = models.ChatFallback
	}

	v.update(PartChat, func(s *State) bool {
		s.Transcript = append(s.Transcript, models.NewChatMessage(models.RoleAssistant, answer))
		s.Sending = false
		return true
	})
}

// Mount starts loading the view: the security list, the news of every company, and the polling loop
// that refreshes the index and the top movers immediately and then on every poll interval. Mounts are
// counted: only the first one starts loading, and the view stays mounted until every Mount has been
// matched by an Unmount. Cancellation of ctx does not unmount the view; its values are kept.
func (v *View) Mount(ctx context.Context) {
	v.mu.Lock()
	v.mounts++
	if v.mounts > 1 {
		v.mu.Unlock()
		return
	}
	run := &mountRun{}
	ctx, run.cancel = context.WithCancel(context.WithoutCancel(ctx))
	v.run = run
	run.wg.Add(3)
	v.mu.Unlock()

	v.logger.Debug("View mounted", slog.Duration("interval", v.interval))

	go func() {
		defer run.wg.Done()
		v.loadListings(ctx)
	}()
	go func() {
		defer run.wg.Done()
		v.loadNews(ctx)
	}()
	go func() {
		defer run.wg.Done()
		v.poll(ctx, &run.wg)
	}()
}

// Unmount releases one Mount. Releasing the last one stops the polling loop and cancels in-flight
// fetches; it returns once every goroutine started by the view has exited, and no state change is
// made or reported afterwards.
func (v *View) Unmount() {
	v.mu.Lock()
	if v.mounts == 0 {
		v.mu.Unlock()
		return
	}
	v.mounts--
	if v.mounts > 0 {
		v.mu.Unlock()
		return
	}
	run := v.run
	v.run = nil
	v.mu.Unlock()

	v.stop(run)
}

// Close unmounts the view however many times it was mounted.
func (v *View) Close() {
	v.mu.Lock()
	if v.mounts == 0 {
		v.mu.Unlock()
		return
	}
	v.mounts = 0
	run := v.run
	v.run = nil
	v.mu.Unlock()

	v.stop(run)
}

func (v *View) stop(run *mountRun) {
	run.cancel()
	run.wg.Wait()

	v.logger.Debug("View unmounted")
}

// Mounted reports whether the view is currently mounted.
func (v *View) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounts > 0
}

func (v *View) poll(ctx context.Context, wg *sync.WaitGroup) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	v.refresh(ctx, wg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh(ctx, wg)
		}
	}
}

// refresh starts one fetch cycle without waiting for the previous one to settle.
func (v *View) refresh(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		v.refreshIndex(ctx)
	}()
	go func() {
		defer wg.Done()
		v.refreshTopMovers(ctx)
	}()
}

func (v *View) refreshIndex(ctx context.Context) {
	v.mu.Lock()
	v.indexIssued++
	gen := v.indexIssued
	v.mu.Unlock()

	snap, err := v.fetcher.Index(ctx)
	if err != nil {
		// The stale value stays on screen until the next cycle succeeds
		if ctx.Err() == nil {
			v.logger.Warn("Failed to fetch index", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	v.updateLive(ctx, PartMarket, func(s *State) bool {
		if gen <= v.indexApplied {
			return false
		}
		v.indexApplied = gen
		s.Index = snap
		s.IndexLoaded = true
		return true
	})
}

func (v *View) refreshTopMovers(ctx context.Context) {
	var gen uint64
	v.updateLive(ctx, PartMarket, func(s *State) bool {
		v.moversIssued++
		gen = v.moversIssued
		changed := !s.LoadingTopMovers
		s.LoadingTopMovers = true
		return changed
	})

	stocks, err := v.fetcher.TopMovers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		v.logger.Warn("Failed to fetch top movers", slog.String(errLoggerKey, err.Error()))
		stocks = []models.RankedStock{}
	}

	v.updateLive(ctx, PartMarket, func(s *State) bool {
		if gen == v.moversIssued {
			s.LoadingTopMovers = false
		}
		if gen <= v.moversApplied {
			return false
		}
		v.moversApplied = gen
		s.TopMovers = stocks
		return true
	})
}

func (v *View) loadListings(ctx context.Context) {
	if v.listings != nil {
		cached, err := v.listings.Listings(ctx)
		if err != nil {
			v.logger.Warn("Failed to read cached listings", slog.String(errLoggerKey, err.Error()))
		}
		if len(cached) > 0 {
			v.updateLive(ctx, PartPicker, func(s *State) bool {
				if s.ListingsLoaded {
					return false
				}
				s.Listings = cached
				return true
			})
		}
	}

	listings, err := v.fetcher.Listings(ctx)
	if err != nil {
		// Whatever the picker shows now stays
		if ctx.Err() == nil {
			v.logger.Error("Failed to fetch listings", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	v.updateLive(ctx, PartPicker, func(s *State) bool {
		s.Listings = listings
		s.ListingsLoaded = true
		return true
	})

	if v.listings != nil {
		if err := v.listings.SaveListings(ctx, listings); err != nil {
			v.logger.Warn("Failed to cache listings", slog.String(errLoggerKey, err.Error()))
		}
	}
}

// loadNews fetches the news of every company concurrently and merges them in one write once all have
// settled. A company whose fetch failed gets an empty list.
func (v *View) loadNews(ctx context.Context) {
	v.mu.Lock()
	companies := slices.Clone(v.state.Companies)
	v.mu.Unlock()

	results := make([][]models.NewsItem, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	for i, company := range companies {
		g.Go(func() error {
			items, err := v.fetcher.News(gctx, company)
			if err != nil {
				if gctx.Err() == nil {
					v.logger.Warn("Failed to fetch news",
						slog.String("company", company),
						slog.String(errLoggerKey, err.Error()))
				}
				results[i] = []models.NewsItem{}
				return nil // the company shows no news
			}
			results[i] = items
			return nil
		})
	}
	// Every fetch returns nil, so Wait only joins them
	_ = g.Wait()

	v.updateLive(ctx, PartNews, func(s *State) bool {
		news := make(models.CompanyNews, len(companies))
		for i, company := range companies {
			news[company] = results[i]
		}
		s.News = news
		return true
	})
}

// update applies fn under the lock and reports the change when fn returns true.
func (v *View) update(part Part, fn func(s *State) bool) bool {
	v.mu.Lock()
	changed := fn(&v.state)
	v.mu.Unlock()

	if changed && v.onChange != nil {
		v.onChange(v.id, part)
	}
	return changed
}

// updateLive is update for fetch results: nothing is applied once ctx, the mount context, is done.
func (v *View) updateLive(ctx context.Context, part Part, fn func(s *State) bool) bool {
	return v.update(part, func(s *State) bool {
		if ctx.Err() != nil {
			return false
		}
		return fn(s)
	})
}
