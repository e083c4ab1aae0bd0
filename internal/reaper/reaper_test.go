package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fweigel/mordspiel/internal/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	deleted int64
	calls   int
	errs    []error
}

func (f *fakeRepo) ReapExpired(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	return f.deleted, nil
}

func (f *fakeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRepo) CreateGame(context.Context, *domain.Game) error { return nil }
func (f *fakeRepo) GetGame(context.Context, string) (*domain.Game, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateGame(context.Context, *domain.Game) error       { return nil }
func (f *fakeRepo) DeleteGame(context.Context, string) error             { return nil }
func (f *fakeRepo) InsertMessage(context.Context, *domain.ChatMessage) error { return nil }
func (f *fakeRepo) ListMessages(context.Context, string) ([]*domain.ChatMessage, error) {
	return nil, nil
}
func (f *fakeRepo) ListConversation(context.Context, string, string) ([]*domain.ChatMessage, error) {
	return nil, nil
}
func (f *fakeRepo) DeleteMessages(context.Context, string) error { return nil }
func (f *fakeRepo) Ping(context.Context) error                   { return nil }
func (f *fakeRepo) Close() error                                 { return nil }

func TestRunOnceReportsCount(t *testing.T) {
	repo := &fakeRepo{deleted: 3}

	deleted, err := RunOnce(context.Background(), repo)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
}

func TestRunOnceNothingExpired(t *testing.T) {
	repo := &fakeRepo{}

	deleted, err := RunOnce(context.Background(), repo)
	if err != nil {
		t.Fatalf("an empty sweep is not an error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", deleted)
	}
}

func TestRunOnceRetriesOnBusy(t *testing.T) {
	repo := &fakeRepo{
		deleted: 2,
		errs:    []error{errors.New("SQLITE_BUSY: database is locked")},
	}

	deleted, err := RunOnce(context.Background(), repo)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted after retry, got %d", deleted)
	}
	if repo.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", repo.callCount())
	}
}

func TestRunOnceGivesUpOnPersistentError(t *testing.T) {
	repo := &fakeRepo{
		errs: []error{
			errors.New("database corrupt"),
		},
	}

	if _, err := RunOnce(context.Background(), repo); err == nil {
		t.Fatal("expected a non-retryable error to surface")
	}
	if repo.callCount() != 1 {
		t.Errorf("non-retryable errors must not be retried, got %d attempts", repo.callCount())
	}
}

func TestStartWorkerSweepsPeriodically(t *testing.T) {
	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartWorker(ctx, repo, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if repo.callCount() >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least 2 sweeps, got %d", repo.callCount())
}
