package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kdb-labs/kospi-chat/internal/models"
)

// gatedMovers answers the n-th top movers call with stocks[n] once gates[n] is closed.
type gatedMovers struct {
	mu     sync.Mutex
	calls  int
	gates  []chan struct{}
	stocks [][]models.RankedStock
}

func (g *gatedMovers) TopMovers(ctx context.Context) ([]models.RankedStock, error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()

	select {
	case <-g.gates[n]:
		return g.stocks[n], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedMovers) started() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *gatedMovers) Index(context.Context) (models.IndexSnapshot, error) {
	return models.IndexSnapshot{}, errors.New("not used")
}

func (g *gatedMovers) News(context.Context, string) ([]models.NewsItem, error) {
	return nil, errors.New("not used")
}

func (g *gatedMovers) Listings(context.Context) ([]models.SecurityListing, error) {
	return nil, errors.New("not used")
}

func (g *gatedMovers) Ask(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func TestStaleTopMoversResultIsDiscarded(t *testing.T) {
	oldList := []models.RankedStock{{Rank: 1, Name: "old", Code: "000001", ChangeRate: -3}}
	newList := []models.RankedStock{{Rank: 1, Name: "new", Code: "000002", ChangeRate: 5}}
	f := &gatedMovers{
		gates:  []chan struct{}{make(chan struct{}), make(chan struct{})},
		stocks: [][]models.RankedStock{oldList, newList},
	}
	v := NewView("view-1", f, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		v.refreshTopMovers(ctx)
	}()
	waitFor(t, func() bool { return f.started() == 1 }, "first fetch issued")

	// The newer fetch settles first
	close(f.gates[1])
	v.refreshTopMovers(ctx)

	s := v.Snapshot()
	if len(s.TopMovers) != 1 || s.TopMovers[0].Name != "new" {
		t.Errorf("TopMovers = %+v, want newer list", s.TopMovers)
	}
	if s.LoadingTopMovers {
		t.Error("LoadingTopMovers = true after the newest fetch settled")
	}

	close(f.gates[0])
	<-firstDone

	s = v.Snapshot()
	if len(s.TopMovers) != 1 || s.TopMovers[0].Name != "new" {
		t.Errorf("TopMovers = %+v, stale list applied", s.TopMovers)
	}
	if s.LoadingTopMovers {
		t.Error("LoadingTopMovers = true after the stale fetch settled")
	}
}

func TestTopMoversLoadingUntilNewestSettles(t *testing.T) {
	oldList := []models.RankedStock{{Rank: 1, Name: "old", Code: "000001", ChangeRate: -3}}
	newList := []models.RankedStock{{Rank: 1, Name: "new", Code: "000002", ChangeRate: 5}}
	f := &gatedMovers{
		gates:  []chan struct{}{make(chan struct{}), make(chan struct{})},
		stocks: [][]models.RankedStock{oldList, newList},
	}
	v := NewView("view-1", f, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v.refreshTopMovers(ctx)
	}()
	waitFor(t, func() bool { return f.started() == 1 }, "first fetch issued")
	go func() {
		defer wg.Done()
		v.refreshTopMovers(ctx)
	}()
	waitFor(t, func() bool { return f.started() == 2 }, "second fetch issued")

	// The older fetch settles first: its list is newer than anything shown, but loading goes on
	close(f.gates[0])
	waitFor(t, func() bool { return len(v.Snapshot().TopMovers) == 1 }, "older list applied")

	s := v.Snapshot()
	if s.TopMovers[0].Name != "old" {
		t.Errorf("TopMovers = %+v, want older list", s.TopMovers)
	}
	if !s.LoadingTopMovers {
		t.Error("LoadingTopMovers = false while the newest fetch is pending")
	}

	close(f.gates[1])
	wg.Wait()

	s = v.Snapshot()
	if len(s.TopMovers) != 1 || s.TopMovers[0].Name != "new" {
		t.Errorf("TopMovers = %+v, want newer list", s.TopMovers)
	}
	if s.LoadingTopMovers {
		t.Error("LoadingTopMovers = true after the newest fetch settled")
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
