package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"packls/internal/checker"
)

type fakeLister struct {
	calls    atomic.Int32
	failures int32
	defs     []checker.Definition
	err      error
}

func (f *fakeLister) ListDefinitions(ctx context.Context) ([]checker.Definition, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if n <= f.failures {
		return nil, errors.New("bundler still booting")
	}
	return f.defs, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshPopulatesStore(t *testing.T) {
	s := memStore(t)
	lister := &fakeLister{
		defs: []checker.Definition{{Constant: "::Billing::Invoice", Path: "a.rb"}},
	}

	r := NewRefresher(s, lister, discard())
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok, _ := s.Lookup(context.Background(), "::Billing::Invoice"); !ok {
		t.Error("definitions not stored after refresh")
	}
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	s := memStore(t)
	lister := &fakeLister{
		failures: 2,
		defs:     []checker.Definition{{Constant: "::X", Path: "x.rb"}},
	}

	r := NewRefresher(s, lister, discard())
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := lister.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3 (two failures then success)", got)
	}
}

func TestRefreshMissingCommandIsPermanent(t *testing.T) {
	s := memStore(t)
	lister := &fakeLister{err: &checker.NotFoundError{Command: "bin/packwerk"}}

	r := NewRefresher(s, lister, discard())
	err := r.Refresh(context.Background())

	var notFound *checker.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if got := lister.calls.Load(); got != 1 {
		t.Errorf("calls = %d, a missing command must not be retried", got)
	}
}
