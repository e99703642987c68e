/*
numbering.go - Human-readable document numbers

PURPOSE:
  Assigns sequential document numbers scoped to document type and year,
  e.g. ADV-2026-0001. A number is assigned exactly once at creation and
  never regenerated on edit.

  The sequence is an interface so stores can persist it and tests can
  control it. The in-memory implementation is the default.
*/
package document

import (
	"context"
	"fmt"
	"sync"
)

// Sequence hands out the next ordinal for a (type, year) scope.
type Sequence interface {
	Next(ctx context.Context, t DocType, year int) (int, error)
}

// FormatDocNumber renders a document number like "ADV-2026-0001".
func FormatDocNumber(t DocType, year, n int) string {
	return fmt.Sprintf("%s-%d-%04d", t.Prefix(), year, n)
}

// =============================================================================
// IN-MEMORY SEQUENCE
// =============================================================================

type seqKey struct {
	t    DocType
	year int
}

// MemorySequence is a process-local Sequence. Safe for concurrent use.
type MemorySequence struct {
	mu   sync.Mutex
	next map[seqKey]int
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{next: make(map[seqKey]int)}
}

func (s *MemorySequence) Next(_ context.Context, t DocType, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seqKey{t, year}
	s.next[k]++
	return s.next[k], nil
}
