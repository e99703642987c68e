// Package store provides the in-memory document.Store implementation.
package store

import (
	"context"
	"sync"

	"github.com/meridian/finrequest/document"
)

// =============================================================================
// MEMORY STORE - The authoritative in-memory implementation
// =============================================================================

// Memory keeps one ordered collection per document type. All state is
// process-local and reset on restart, matching the source system.
type Memory struct {
	mu      sync.RWMutex
	byID    map[document.DocType]map[document.DocumentID]*document.Document
	ordered map[document.DocType][]document.DocumentID
}

func NewMemory() *Memory {
	m := &Memory{
		byID:    make(map[document.DocType]map[document.DocumentID]*document.Document),
		ordered: make(map[document.DocType][]document.DocumentID),
	}
	for _, t := range document.AllDocTypes() {
		m.byID[t] = make(map[document.DocumentID]*document.Document)
	}
	return m
}

// Add appends to the end of the type's collection.
func (m *Memory) Add(_ context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(doc)
}

func (m *Memory) addLocked(doc *document.Document) error {
	coll := m.byID[doc.Type]
	if _, exists := coll[doc.ID]; exists {
		return document.ErrDuplicateID
	}
	coll[doc.ID] = doc.Clone()
	m.ordered[doc.Type] = append(m.ordered[doc.Type], doc.ID)
	return nil
}

// Get returns a copy, or (nil, nil) when missing.
func (m *Memory) Get(_ context.Context, t document.DocType, id document.DocumentID) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.byID[t][id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

// List returns copies of matching records in insertion order.
func (m *Memory) List(_ context.Context, t document.DocType, f document.ListFilter) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*document.Document
	for _, id := range m.ordered[t] {
		doc := m.byID[t][id]
		if f.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Update applies mutate while preserving identity and audit fields.
func (m *Memory) Update(_ context.Context, t document.DocType, id document.DocumentID, mutate func(*document.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(t, id, mutate)
}

func (m *Memory) updateLocked(t document.DocType, id document.DocumentID, mutate func(*document.Document)) error {
	doc, ok := m.byID[t][id]
	if !ok {
		return document.ErrNotFound
	}
	next := doc.Clone()
	mutate(next)
	// Identity and audit fields are never writable through Update.
	next.ID = doc.ID
	next.Type = doc.Type
	next.DocNumber = doc.DocNumber
	next.CreatedAt = doc.CreatedAt
	next.Approvals = append([]document.Approval(nil), doc.Approvals...)
	m.byID[t][id] = next
	return nil
}

// SetStatus sets only the status field. The workflow service is the
// sole caller.
func (m *Memory) SetStatus(ctx context.Context, t document.DocType, id document.DocumentID, s document.Status) error {
	return m.Update(ctx, t, id, func(d *document.Document) { d.Status = s })
}

// AppendApproval appends one audit entry. Entries are never edited,
// removed, or reordered.
func (m *Memory) AppendApproval(_ context.Context, t document.DocType, id document.DocumentID, a document.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendApprovalLocked(t, id, a)
}

func (m *Memory) appendApprovalLocked(t document.DocType, id document.DocumentID, a document.Approval) error {
	doc, ok := m.byID[t][id]
	if !ok {
		return document.ErrNotFound
	}
	doc.Approvals = append(doc.Approvals, a)
	return nil
}

// UpdateBatch applies all operations under one lock. Every target is
// verified before any write, so the batch is all-or-nothing.
func (m *Memory) UpdateBatch(_ context.Context, ops []document.BatchOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pendingAdds := make(map[document.DocType]map[document.DocumentID]struct{})
	for _, op := range ops {
		if op.Add != nil {
			if _, exists := m.byID[op.Add.Type][op.Add.ID]; exists {
				return document.ErrDuplicateID
			}
			// Two Adds for the same ID inside one batch collide too.
			if _, dup := pendingAdds[op.Add.Type][op.Add.ID]; dup {
				return document.ErrDuplicateID
			}
			if pendingAdds[op.Add.Type] == nil {
				pendingAdds[op.Add.Type] = make(map[document.DocumentID]struct{})
			}
			pendingAdds[op.Add.Type][op.Add.ID] = struct{}{}
			continue
		}
		if _, ok := m.byID[op.Type][op.ID]; !ok {
			return document.ErrNotFound
		}
	}

	for _, op := range ops {
		if op.Add != nil {
			if err := m.addLocked(op.Add); err != nil {
				return err
			}
			continue
		}
		if op.Mutate != nil {
			if err := m.updateLocked(op.Type, op.ID, op.Mutate); err != nil {
				return err
			}
		}
		if op.SetStatus != nil {
			s := *op.SetStatus
			if err := m.updateLocked(op.Type, op.ID, func(d *document.Document) { d.Status = s }); err != nil {
				return err
			}
		}
		if op.Approval != nil {
			if err := m.appendApprovalLocked(op.Type, op.ID, *op.Approval); err != nil {
				return err
			}
		}
	}
	return nil
}
