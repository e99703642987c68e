/*
simulator.go - The posting simulator

PURPOSE:
  Poster.Post is the single entry point: it guards against duplicate and
  concurrent postings, waits out the simulated latency, assigns the next
  ledger document number, and appends the immutable posting to the log.

NUMBERING:
  The ledger document number is a process-wide monotonic counter seeded
  at 209000001. The counter is injected, never a hidden module-level
  global, so tests can seed and assert on it. It advances exactly once
  per successful post; refused posts do not consume a number.

LATENCY:
  The downstream system takes ~1.5s to respond. The delay is awaited
  through an injectable sleeper that honors context cancellation; tests
  install a no-op sleeper.

GUARDS:
  - one posting per source document, ever (ErrDuplicatePosting)
  - at most one posting in flight per document ID (ErrPostingInFlight),
    closing the double-submit race the source left open
*/
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/meridian/finrequest/document"
)

// =============================================================================
// SEQUENCE
// =============================================================================

// Sequence hands out ledger document numbers.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// MemorySequence is a process-local monotonic counter.
type MemorySequence struct {
	mu   sync.Mutex
	next int64
}

// NewMemorySequence seeds the counter; the first Next returns seed.
func NewMemorySequence(seed int64) *MemorySequence {
	return &MemorySequence{next: seed}
}

func (s *MemorySequence) Next(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n, nil
}

// =============================================================================
// POSTING LOG
// =============================================================================

// Log is the append-only collection of postings.
type Log interface {
	Append(ctx context.Context, p Posting) error
	// BySource returns the posting for a source record, or (nil, nil).
	BySource(ctx context.Context, id document.DocumentID) (*Posting, error)
	List(ctx context.Context) ([]Posting, error)
}

// MemoryLog is the in-memory Log.
type MemoryLog struct {
	mu       sync.RWMutex
	postings []Posting
	bySource map[document.DocumentID]int
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{bySource: make(map[document.DocumentID]int)}
}

func (l *MemoryLog) Append(_ context.Context, p Posting) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.bySource[p.SourceRecordID]; exists {
		return document.ErrDuplicatePosting
	}
	l.bySource[p.SourceRecordID] = len(l.postings)
	l.postings = append(l.postings, p)
	return nil
}

func (l *MemoryLog) BySource(_ context.Context, id document.DocumentID) (*Posting, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.bySource[id]
	if !ok {
		return nil, nil
	}
	p := l.postings[i]
	return &p, nil
}

func (l *MemoryLog) List(_ context.Context) ([]Posting, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Posting(nil), l.postings...), nil
}

// =============================================================================
// POSTER
// =============================================================================

// Sleeper waits out the simulated downstream latency.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep is a Sleeper for tests.
func NoSleep(context.Context, time.Duration) error { return nil }

// Poster produces postings. Construct with NewPoster.
type Poster struct {
	seq     Sequence
	log     Log
	now     func() time.Time
	sleep   Sleeper
	latency time.Duration

	mu       sync.Mutex
	inflight map[document.DocumentID]struct{}
}

// PosterOption configures a Poster.
type PosterOption func(*Poster)

func WithClock(now func() time.Time) PosterOption {
	return func(p *Poster) { p.now = now }
}

func WithSleeper(s Sleeper) PosterOption {
	return func(p *Poster) { p.sleep = s }
}

func WithLatency(d time.Duration) PosterOption {
	return func(p *Poster) { p.latency = d }
}

func NewPoster(seq Sequence, log Log, opts ...PosterOption) *Poster {
	p := &Poster{
		seq:      seq,
		log:      log,
		now:      time.Now,
		sleep:    ContextSleep,
		latency:  1500 * time.Millisecond,
		inflight: make(map[document.DocumentID]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Log exposes the posting log for read-side queries.
func (p *Poster) Log() Log { return p.log }

// Post produces the posting for a document. The caller is responsible
// for the workflow guard (document.CanPost); Post enforces uniqueness
// and the in-flight limit.
func (p *Poster) Post(ctx context.Context, t document.DocType, doc *document.Document) (*Posting, error) {
	if err := p.acquire(ctx, doc.ID); err != nil {
		return nil, err
	}
	defer p.release(doc.ID)

	if err := p.sleep(ctx, p.latency); err != nil {
		return nil, fmt.Errorf("posting interrupted: %w", err)
	}

	n, err := p.seq.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger sequence: %w", err)
	}

	now := p.now()
	posting := Posting{
		DocumentNumber: strconv.FormatInt(n, 10),
		CompanyCode:    ResolveCompanyCode(doc),
		FiscalYear:     FiscalYear,
		PostingDate:    now.Format("2006-01-02"),
		Period:         int(now.Month()),
		Currency:       Currency,
		Reference:      doc.DocNumber,
		DocumentType:   docTypeCode(t),
		LineItems:      buildLines(t, doc),
		Status:         "Posted",
		CreatedAt:      now,
		SourceModule:   t,
		SourceRecordID: doc.ID,
	}

	if err := p.log.Append(ctx, posting); err != nil {
		return nil, err
	}
	return &posting, nil
}

// acquire checks for an existing posting and marks the document as
// in flight.
func (p *Poster) acquire(ctx context.Context, id document.DocumentID) error {
	existing, err := p.log.BySource(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return document.ErrDuplicatePosting
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return document.ErrPostingInFlight
	}
	p.inflight[id] = struct{}{}
	return nil
}

func (p *Poster) release(id document.DocumentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}
