/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements document.Store, ledger.Log, and both sequence interfaces
  on SQLite, so the engine can survive restarts when given a database
  path. The in-memory implementations remain the reference behavior;
  this store mirrors their contracts exactly.

INTERFACES IMPLEMENTED:
  document.Store:    The five document collections
  ledger.Log:        Append-only posting log
  document.Sequence: Per (type, year) document numbering (DocSequence)
  ledger.Sequence:   Monotonic ledger document numbers (LedgerSequence)

STORAGE MODEL:
  Documents are stored as one JSON payload per record plus a few
  indexed columns (status, requester, advance link) for filtering.
  The payload is authoritative; columns are rewritten on every update.
  Insertion order is preserved via an autoincrementing position column,
  matching the memory store's List order.

CONTRACT ENFORCEMENT:
  - Identity and audit fields (ID, Type, DocNumber, CreatedAt, the
    approval trail) are restored after every mutate, same as the
    memory store.
  - UpdateBatch runs inside one SQL transaction: all or nothing.
  - The posting log refuses UPDATE and DELETE; source_record_id is
    UNIQUE, backing the duplicate-posting guard.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/finrequest.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  docs := document.NewService(store, store.DocSequence())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - document/store.go: Store contract
  - document/store/memory.go: In-memory reference implementation
  - ledger/simulator.go: Log and Sequence contracts
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meridian/finrequest/document"
	"github.com/meridian/finrequest/ledger"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Documents: one row per record, JSON payload authoritative.
	CREATE TABLE IF NOT EXISTS documents (
		position     INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_type     TEXT NOT NULL,
		id           TEXT NOT NULL,
		doc_number   TEXT NOT NULL,
		status       TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		advance_id   TEXT NOT NULL DEFAULT '',
		payload      TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		UNIQUE(doc_type, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_type_status
		ON documents(doc_type, status);
	CREATE INDEX IF NOT EXISTS idx_documents_requester
		ON documents(requester_id);
	CREATE INDEX IF NOT EXISTS idx_documents_advance
		ON documents(advance_id) WHERE advance_id != '';

	-- Postings: append-only simulated ledger log.
	CREATE TABLE IF NOT EXISTS postings (
		position         INTEGER PRIMARY KEY AUTOINCREMENT,
		source_record_id TEXT NOT NULL UNIQUE,
		payload          TEXT NOT NULL,
		created_at       TEXT NOT NULL
	);

	-- Sequences: named monotonic counters. value is the next number
	-- to hand out.
	CREATE TABLE IF NOT EXISTS sequences (
		name  TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// Add appends a record to its type's collection.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := addTx(ctx, tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func addTx(ctx context.Context, tx *sql.Tx, doc *document.Document) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE doc_type = ? AND id = ?`,
		string(doc.Type), string(doc.ID)).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return document.ErrDuplicateID
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (doc_type, id, doc_number, status, requester_id, advance_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(doc.Type), string(doc.ID), doc.DocNumber, string(doc.Status),
		string(doc.RequesterID), string(doc.AdvanceID), string(payload),
		doc.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// Get returns a copy of the record, or (nil, nil) when missing.
func (s *Store) Get(ctx context.Context, t document.DocType, id document.DocumentID) (*document.Document, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE doc_type = ? AND id = ?`,
		string(t), string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(payload)
}

// List returns matching records in insertion order.
func (s *Store) List(ctx context.Context, t document.DocType, f document.ListFilter) ([]*document.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM documents WHERE doc_type = ? ORDER BY position`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*document.Document
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(payload)
		if err != nil {
			return nil, err
		}
		// Filtering happens on the decoded payload so the semantics
		// match the memory store exactly.
		if f.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out, rows.Err()
}

// Update applies mutate to the record, preserving identity and audit
// fields.
func (s *Store) Update(ctx context.Context, t document.DocType, id document.DocumentID, mutate func(*document.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateTx(ctx, tx, t, id, mutate); err != nil {
		return err
	}
	return tx.Commit()
}

func updateTx(ctx context.Context, tx *sql.Tx, t document.DocType, id document.DocumentID, mutate func(*document.Document)) error {
	var payload string
	err := tx.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE doc_type = ? AND id = ?`,
		string(t), string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return document.ErrNotFound
	}
	if err != nil {
		return err
	}

	current, err := decodeDocument(payload)
	if err != nil {
		return err
	}

	next := current.Clone()
	mutate(next)
	// Identity and audit fields are never writable through Update.
	next.ID = current.ID
	next.Type = current.Type
	next.DocNumber = current.DocNumber
	next.CreatedAt = current.CreatedAt
	next.Approvals = append([]document.Approval(nil), current.Approvals...)

	return writeTx(ctx, tx, next)
}

// writeTx rewrites the payload and the indexed columns of an existing
// row.
func writeTx(ctx context.Context, tx *sql.Tx, doc *document.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, requester_id = ?, advance_id = ?, payload = ?
		WHERE doc_type = ? AND id = ?`,
		string(doc.Status), string(doc.RequesterID), string(doc.AdvanceID),
		string(payload), string(doc.Type), string(doc.ID))
	return err
}

// SetStatus sets only the status field. The workflow service is the
// sole caller.
func (s *Store) SetStatus(ctx context.Context, t document.DocType, id document.DocumentID, st document.Status) error {
	return s.Update(ctx, t, id, func(d *document.Document) { d.Status = st })
}

// AppendApproval appends one audit-trail entry.
func (s *Store) AppendApproval(ctx context.Context, t document.DocType, id document.DocumentID, a document.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := appendApprovalTx(ctx, tx, t, id, a); err != nil {
		return err
	}
	return tx.Commit()
}

func appendApprovalTx(ctx context.Context, tx *sql.Tx, t document.DocType, id document.DocumentID, a document.Approval) error {
	var payload string
	err := tx.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE doc_type = ? AND id = ?`,
		string(t), string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return document.ErrNotFound
	}
	if err != nil {
		return err
	}
	doc, err := decodeDocument(payload)
	if err != nil {
		return err
	}
	doc.Approvals = append(doc.Approvals, a)
	return writeTx(ctx, tx, doc)
}

// UpdateBatch applies all operations inside one SQL transaction.
func (s *Store) UpdateBatch(ctx context.Context, ops []document.BatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Verify every target before writing anything, matching the memory
	// store's all-or-nothing check. The SQL transaction would roll back
	// regardless; the early check keeps error precedence identical.
	pendingAdds := make(map[string]struct{})
	for _, op := range ops {
		if op.Add != nil {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM documents WHERE doc_type = ? AND id = ?`,
				string(op.Add.Type), string(op.Add.ID)).Scan(&exists); err != nil {
				return err
			}
			if exists > 0 {
				return document.ErrDuplicateID
			}
			// Two Adds for the same ID inside one batch collide too.
			key := string(op.Add.Type) + "\x00" + string(op.Add.ID)
			if _, dup := pendingAdds[key]; dup {
				return document.ErrDuplicateID
			}
			pendingAdds[key] = struct{}{}
			continue
		}
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE doc_type = ? AND id = ?`,
			string(op.Type), string(op.ID)).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return document.ErrNotFound
		}
	}

	for _, op := range ops {
		if op.Add != nil {
			if err := addTx(ctx, tx, op.Add); err != nil {
				return err
			}
			continue
		}
		if op.Mutate != nil {
			if err := updateTx(ctx, tx, op.Type, op.ID, op.Mutate); err != nil {
				return err
			}
		}
		if op.SetStatus != nil {
			st := *op.SetStatus
			if err := updateTx(ctx, tx, op.Type, op.ID, func(d *document.Document) { d.Status = st }); err != nil {
				return err
			}
		}
		if op.Approval != nil {
			if err := appendApprovalTx(ctx, tx, op.Type, op.ID, *op.Approval); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func decodeDocument(payload string) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("corrupt document payload: %w", err)
	}
	return &doc, nil
}

// =============================================================================
// POSTING LOG
// =============================================================================

type postingLog struct{ s *Store }

// PostingLog returns the persistent posting log.
func (s *Store) PostingLog() ledger.Log {
	return postingLog{s}
}

// Append adds one posting. The UNIQUE constraint on source_record_id
// backs the duplicate-posting guard; the guard itself lives in the
// Poster, which checks BySource first.
func (l postingLog) Append(ctx context.Context, p ledger.Posting) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO postings (source_record_id, payload, created_at)
		VALUES (?, ?, ?)`,
		string(p.SourceRecordID), string(payload), p.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// BySource returns the posting for a source document, or (nil, nil).
func (l postingLog) BySource(ctx context.Context, id document.DocumentID) (*ledger.Posting, error) {
	var payload string
	err := l.s.db.QueryRowContext(ctx,
		`SELECT payload FROM postings WHERE source_record_id = ?`, string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p ledger.Posting
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("corrupt posting payload: %w", err)
	}
	return &p, nil
}

// List returns all postings, oldest first.
func (l postingLog) List(ctx context.Context) ([]ledger.Posting, error) {
	rows, err := l.s.db.QueryContext(ctx, `SELECT payload FROM postings ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Posting
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p ledger.Posting
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("corrupt posting payload: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// SEQUENCES
// =============================================================================

// nextValue returns the current value of a named counter and advances
// it, initializing to seed on first use.
func (s *Store) nextValue(ctx context.Context, name string, seed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`, name, seed); err != nil {
		return 0, err
	}

	var value int64
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM sequences WHERE name = ?`, name).Scan(&value); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sequences SET value = value + 1 WHERE name = ?`, name); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return value, nil
}

type docSequence struct{ s *Store }

// Next hands out the next ordinal for a (type, year) scope, 1-based.
func (q docSequence) Next(ctx context.Context, t document.DocType, year int) (int, error) {
	n, err := q.s.nextValue(ctx, fmt.Sprintf("doc:%s:%d", t, year), 1)
	return int(n), err
}

// DocSequence returns the persistent document-number sequence.
func (s *Store) DocSequence() document.Sequence {
	return docSequence{s}
}

type ledgerSequence struct {
	s    *Store
	seed int64
}

// Next hands out the next ledger document number; the first call
// returns the seed.
func (q ledgerSequence) Next(ctx context.Context) (int64, error) {
	return q.s.nextValue(ctx, "ledger", q.seed)
}

// LedgerSequence returns the persistent ledger-number sequence.
func (s *Store) LedgerSequence(seed int64) ledger.Sequence {
	return ledgerSequence{s, seed}
}
