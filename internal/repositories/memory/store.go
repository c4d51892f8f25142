// Package memory provides deterministic in-process implementations of the
// repository interfaces. They back the unit tests and the service's fake
// mode, and keep the same conflict semantics as the Postgres layer:
// bounded CAS on versioned rows, one-way transaction statuses, an
// exactly-once rental claim and an append-only audit log.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/models"
)

// Store owns all in-memory state. Construct one per process (or per test)
// and hand out the typed repository views.
type Store struct {
	mu           sync.Mutex
	properties   map[uuid.UUID]*models.Property
	shares       map[shareKey]*models.Share
	transactions map[uuid.UUID]*models.Transaction
	byReference  map[string]uuid.UUID
	rentals      map[rentalKey]*models.RentalRecord
	balances     map[uuid.UUID]*models.AccountBalance
	audit        []*models.AuditLogEntry

	// failAudit makes the next audit append fail; tests use it to verify
	// that audit failures abort the whole operation.
	failAudit bool

	now func() time.Time
}

type shareKey struct {
	userID     uuid.UUID
	propertyID uuid.UUID
}

type rentalKey struct {
	propertyID uuid.UUID
	monthYear  string
}

func NewStore() *Store {
	return &Store{
		properties:   make(map[uuid.UUID]*models.Property),
		shares:       make(map[shareKey]*models.Share),
		transactions: make(map[uuid.UUID]*models.Transaction),
		byReference:  make(map[string]uuid.UUID),
		rentals:      make(map[rentalKey]*models.RentalRecord),
		balances:     make(map[uuid.UUID]*models.AccountBalance),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// FailNextAuditAppend arms a one-shot audit failure.
func (s *Store) FailNextAuditAppend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAudit = true
}

// SetClock overrides the store's notion of now. Tests use it to age
// pending transactions past the reconciliation cutoff.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Properties() *PropertyRepo        { return &PropertyRepo{s: s} }
func (s *Store) Shares() *ShareRepo               { return &ShareRepo{s: s} }
func (s *Store) Transactions() *TransactionRepo   { return &TransactionRepo{s: s} }
func (s *Store) RentalRecords() *RentalRecordRepo { return &RentalRecordRepo{s: s} }
func (s *Store) Balances() *BalanceRepo           { return &BalanceRepo{s: s} }
func (s *Store) AuditLog() *AuditLogRepo          { return &AuditLogRepo{s: s} }

// ---- copy helpers: callers never see store-owned pointers ----

func copyProperty(p *models.Property) *models.Property {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func copyShare(sh *models.Share) *models.Share {
	if sh == nil {
		return nil
	}
	cp := *sh
	return &cp
}

func copyTransaction(t *models.Transaction) *models.Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	if t.PropertyID != nil {
		pid := *t.PropertyID
		cp.PropertyID = &pid
	}
	if t.TokenAmount != nil {
		ta := *t.TokenAmount
		cp.TokenAmount = &ta
	}
	if t.FailureReason != nil {
		fr := *t.FailureReason
		cp.FailureReason = &fr
	}
	if t.Metadata != nil {
		cp.Metadata = append([]byte(nil), t.Metadata...)
	}
	return &cp
}

func copyRentalRecord(r *models.RentalRecord) *models.RentalRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.DistributedAt != nil {
		d := *r.DistributedAt
		cp.DistributedAt = &d
	}
	return &cp
}

func copyBalance(b *models.AccountBalance) *models.AccountBalance {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}
