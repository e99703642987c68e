/*
store.go - Persistence contract for document collections

PURPOSE:
  Defines the interface between the engine and storage. One authoritative
  collection per document type; all mutation goes through the operations
  below. Implementations exist for memory (document/store) and SQLite
  (store/sqlite).

CONTRACT:
  - Add rejects duplicate IDs within a collection.
  - Get returns (nil, nil) for a missing ID; writes on a missing ID
    return ErrNotFound.
  - Mutations never touch identity or audit fields: ID, Type, DocNumber,
    CreatedAt, and the approval trail are preserved across Update calls
    regardless of what the mutate function does. Approvals grow only
    through AppendApproval.
  - UpdateBatch applies every operation atomically: all succeed or none
    do. The advance-clear-on-reconciliation-post update depends on this.
  - Stores do not validate workflow transitions; Service is the sole
    gate. SetStatus exists for Service's use only.

SEE ALSO:
  - store/memory.go: in-memory implementation
  - store/sqlite: persistent implementation
*/
package document

import "context"

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status      Status
	RequesterID UserID
	AdvanceID   DocumentID
}

// Matches reports whether the document passes the filter.
func (f ListFilter) Matches(d *Document) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.RequesterID != "" && d.RequesterID != f.RequesterID {
		return false
	}
	if f.AdvanceID != "" && d.AdvanceID != f.AdvanceID {
		return false
	}
	return true
}

// BatchOp is one operation inside an atomic batch. Exactly one of Add
// or (ID + some combination of SetStatus/Approval/Mutate) is used.
type BatchOp struct {
	// Add inserts a new record into its type's collection.
	Add *Document

	// Target of a mutation.
	Type DocType
	ID   DocumentID

	// SetStatus, when non-nil, sets the status field.
	SetStatus *Status

	// Approval, when non-nil, is appended to the audit trail.
	Approval *Approval

	// Mutate, when non-nil, edits other fields of the record.
	Mutate func(*Document)
}

// Store holds the five document collections.
type Store interface {
	// Add appends a record to its type's collection. Insertion order is
	// preserved by List. Returns ErrDuplicateID if the ID exists.
	Add(ctx context.Context, doc *Document) error

	// Get returns a copy of the record, or (nil, nil) when missing.
	Get(ctx context.Context, t DocType, id DocumentID) (*Document, error)

	// List returns copies of matching records in insertion order.
	List(ctx context.Context, t DocType, f ListFilter) ([]*Document, error)

	// Update applies mutate to the record. Identity and audit fields are
	// preserved. Returns ErrNotFound when missing.
	Update(ctx context.Context, t DocType, id DocumentID, mutate func(*Document)) error

	// SetStatus sets only the status field. Callers other than the
	// workflow service must not use this.
	SetStatus(ctx context.Context, t DocType, id DocumentID, s Status) error

	// AppendApproval appends one audit-trail entry.
	AppendApproval(ctx context.Context, t DocType, id DocumentID, a Approval) error

	// UpdateBatch applies all operations atomically.
	UpdateBatch(ctx context.Context, ops []BatchOp) error
}
