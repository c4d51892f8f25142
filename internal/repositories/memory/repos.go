package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/utils"
)

// ---------------- PropertyRepo ----------------

type PropertyRepo struct {
	s *Store
}

func (r *PropertyRepo) Create(ctx context.Context, p *models.Property) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := copyProperty(p)
	cp.RowVersion = 1
	cp.CreatedAt = r.s.now()
	cp.UpdatedAt = cp.CreatedAt
	r.s.properties[cp.ID] = cp
	p.RowVersion = 1
	return nil
}

func (r *PropertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyProperty(r.s.properties[id]), nil
}

func (r *PropertyRepo) List(ctx context.Context) ([]*models.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var props []*models.Property
	for _, p := range r.s.properties {
		props = append(props, copyProperty(p))
	}
	sort.Slice(props, func(i, j int) bool { return props[i].CreatedAt.Before(props[j].CreatedAt) })
	return props, nil
}

func (r *PropertyRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Property) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.properties[id]
	if !ok {
		return utils.ErrNotFound
	}
	working := copyProperty(stored)
	if err := mutate(working); err != nil {
		return err
	}
	working.RowVersion = stored.RowVersion + 1
	working.UpdatedAt = r.s.now()
	r.s.properties[id] = working
	return nil
}

// ---------------- ShareRepo ----------------

type ShareRepo struct {
	s *Store
}

func (r *ShareRepo) GetByUserAndProperty(ctx context.Context, userID, propertyID uuid.UUID) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyShare(r.s.shares[shareKey{userID, propertyID}]), nil
}

func (r *ShareRepo) Upsert(ctx context.Context, userID, propertyID uuid.UUID, deltaTokens, deltaCostCents int64) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := shareKey{userID, propertyID}
	sh, ok := r.s.shares[key]
	if !ok {
		sh = &models.Share{
			ID:         uuid.New(),
			UserID:     userID,
			PropertyID: propertyID,
			CreatedAt:  r.s.now(),
		}
		r.s.shares[key] = sh
	}
	sh.TokensOwned = max64(sh.TokensOwned+deltaTokens, 0)
	sh.PurchasePriceCents = max64(sh.PurchasePriceCents+deltaCostCents, 0)
	sh.CurrentValueCents = max64(sh.CurrentValueCents+deltaCostCents, 0)
	sh.RowVersion++
	sh.UpdatedAt = r.s.now()
	return copyShare(sh), nil
}

func (r *ShareRepo) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var shares []*models.Share
	for _, sh := range r.s.shares {
		if sh.PropertyID == propertyID && sh.TokensOwned > 0 {
			shares = append(shares, copyShare(sh))
		}
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].TokensOwned != shares[j].TokensOwned {
			return shares[i].TokensOwned > shares[j].TokensOwned
		}
		return strings.Compare(shares[i].UserID.String(), shares[j].UserID.String()) < 0
	})
	return shares, nil
}

func (r *ShareRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var shares []*models.Share
	for _, sh := range r.s.shares {
		if sh.UserID == userID && sh.TokensOwned > 0 {
			shares = append(shares, copyShare(sh))
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].CreatedAt.Before(shares[j].CreatedAt) })
	return shares, nil
}

// ---------------- TransactionRepo ----------------

type TransactionRepo struct {
	s *Store
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.byReference[t.ReferenceID]; exists {
		return utils.ErrDuplicateReference
	}
	cp := copyTransaction(t)
	cp.CreatedAt = r.s.now()
	cp.UpdatedAt = cp.CreatedAt
	r.s.transactions[cp.ID] = cp
	r.s.byReference[cp.ReferenceID] = cp.ID
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyTransaction(r.s.transactions[id]), nil
}

func (r *TransactionRepo) GetByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byReference[referenceID]
	if !ok {
		return nil, nil
	}
	return copyTransaction(r.s.transactions[id]), nil
}

func (r *TransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatusType, failureReason *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || !t.CanTransitionTo(status) {
		return utils.ErrNoRowsUpdated
	}
	t.Status = status
	t.FailureReason = failureReason
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *TransactionRepo) SetMetadata(ctx context.Context, id uuid.UUID, metadata []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return utils.ErrNotFound
	}
	t.Metadata = append([]byte(nil), metadata...)
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *TransactionRepo) FindByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var txns []*models.Transaction
	for _, t := range r.s.transactions {
		if t.UserID == userID {
			txns = append(txns, copyTransaction(t))
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (r *TransactionRepo) FindRentalIncomeTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, t := range r.s.transactions {
		if t.UserID == userID && t.Type == models.TransactionTypeRentalIncome && t.Status == models.TransactionStatusCompleted {
			total += t.AmountCents
		}
	}
	return total, nil
}

func (r *TransactionRepo) FindPendingOlderThan(ctx context.Context, txType models.TransactionType, cutoff time.Time) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var txns []*models.Transaction
	for _, t := range r.s.transactions {
		if t.Type == txType && t.Status == models.TransactionStatusPending && t.UpdatedAt.Before(cutoff) {
			txns = append(txns, copyTransaction(t))
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
	return txns, nil
}

func (r *TransactionRepo) FindNeedingReconciliation(ctx context.Context) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var txns []*models.Transaction
	for _, t := range r.s.transactions {
		if t.Metadata != nil && strings.Contains(string(t.Metadata), models.MetadataKeyNeedsReconciliation) {
			txns = append(txns, copyTransaction(t))
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
	return txns, nil
}

// ---------------- RentalRecordRepo ----------------

type RentalRecordRepo struct {
	s *Store
}

func (r *RentalRecordRepo) Create(ctx context.Context, rec *models.RentalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := rentalKey{rec.PropertyID, rec.MonthYear}
	if _, exists := r.s.rentals[key]; exists {
		return utils.ErrDuplicateReference
	}
	cp := copyRentalRecord(rec)
	cp.CreatedAt = r.s.now()
	r.s.rentals[key] = cp
	return nil
}

func (r *RentalRecordRepo) GetByPropertyAndMonth(ctx context.Context, propertyID uuid.UUID, monthYear string) (*models.RentalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyRentalRecord(r.s.rentals[rentalKey{propertyID, monthYear}]), nil
}

func (r *RentalRecordRepo) Claim(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.rentals {
		if rec.ID == id {
			if rec.DistributedAt != nil {
				return utils.ErrAlreadyDistributed
			}
			now := r.s.now()
			rec.DistributedAt = &now
			return nil
		}
	}
	return utils.ErrNotFound
}

// FindDistributedWithoutPayouts flags claimed months whose payout count
// falls short of the holder count, which catches both a crash right after
// the claim and a run that stopped partway through the holders.
func (r *RentalRecordRepo) FindDistributedWithoutPayouts(ctx context.Context) ([]*models.RentalRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.RentalRecord
	for key, rec := range r.s.rentals {
		if rec.DistributedAt == nil {
			continue
		}
		var paid int
		for _, t := range r.s.transactions {
			if t.Type == models.TransactionTypeRentalIncome && t.Status == models.TransactionStatusCompleted &&
				t.PropertyID != nil && *t.PropertyID == key.propertyID &&
				strings.Contains(string(t.Metadata), key.monthYear) {
				paid++
			}
		}
		var holders int
		for _, sh := range r.s.shares {
			if sh.PropertyID == key.propertyID && sh.TokensOwned > 0 {
				holders++
			}
		}
		if paid < holders || paid == 0 {
			out = append(out, copyRentalRecord(rec))
		}
	}
	return out, nil
}

// ---------------- BalanceRepo ----------------

type BalanceRepo struct {
	s *Store
}

func (r *BalanceRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.AccountBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyBalance(r.s.balances[userID]), nil
}

func (r *BalanceRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, currency, email string) (*models.AccountBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[userID]
	if !ok {
		b = &models.AccountBalance{
			ID:        uuid.New(),
			UserID:    userID,
			Email:     email,
			Currency:  currency,
			CreatedAt: r.s.now(),
			UpdatedAt: r.s.now(),
		}
		b.RowVersion = 1
		r.s.balances[userID] = b
	}
	if email != "" {
		b.Email = email
	}
	return copyBalance(b), nil
}

func (r *BalanceRepo) Credit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[userID]
	if !ok {
		return utils.ErrNotFound
	}
	b.BalanceCents += amountCents
	b.RowVersion++
	b.UpdatedAt = r.s.now()
	return nil
}

func (r *BalanceRepo) Debit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[userID]
	if !ok {
		return utils.ErrNotFound
	}
	if b.BalanceCents < amountCents {
		return utils.ErrInsufficientFunds
	}
	b.BalanceCents -= amountCents
	b.RowVersion++
	b.UpdatedAt = r.s.now()
	return nil
}

// ---------------- AuditLogRepo ----------------

type AuditLogRepo struct {
	s *Store
}

func (r *AuditLogRepo) Append(ctx context.Context, e *models.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failAudit {
		r.s.failAudit = false
		return utils.ErrAuditWriteFailed
	}
	cp := *e
	cp.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func (r *AuditLogRepo) FindByTarget(ctx context.Context, targetType models.AuditTargetType, targetID uuid.UUID) ([]*models.AuditLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLogEntry
	for _, e := range r.s.audit {
		if e.TargetType == targetType && e.TargetID == targetID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
