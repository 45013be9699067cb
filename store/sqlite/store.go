package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	leasing "github.com/xraph/leasing"
	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
	leasingstore "github.com/xraph/leasing/store"
)

// compile-time interface check
var _ leasingstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("leasing/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("leasing/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Lease Store ====================

func (s *Store) InsertLease(ctx context.Context, l *lease.Lease) error {
	m := toLeaseModel(l)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return s.classifyInsertError(ctx, l, err)
	}
	return nil
}

func (s *Store) GetLease(ctx context.Context, leaseID id.LeaseID) (*lease.Lease, error) {
	m := new(leaseModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", leaseID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, leasing.ErrLeaseNotFound
		}
		return nil, err
	}
	return fromLeaseModel(m)
}

func (s *Store) GetLeaseByPaymentRef(ctx context.Context, paymentRef string) (*lease.Lease, error) {
	m := new(leaseModel)
	err := s.sdb.NewSelect(m).
		Where("payment_ref = ?", paymentRef).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, leasing.ErrLeaseNotFound
		}
		return nil, err
	}
	return fromLeaseModel(m)
}

func (s *Store) GetActiveLeaseByAddress(ctx context.Context, address string) (*lease.Lease, error) {
	m := new(leaseModel)
	err := s.sdb.NewSelect(m).
		Where("address = ?", address).
		Where("status = ?", string(lease.StatusActive)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, leasing.ErrLeaseNotFound
		}
		return nil, err
	}
	return fromLeaseModel(m)
}

func (s *Store) UpdateLeaseStatus(ctx context.Context, leaseID id.LeaseID, expected lease.Status, apply func(*lease.Lease)) (*lease.Lease, error) {
	current, err := s.GetLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, leasing.ErrStatusConflict
	}

	apply(current)
	current.UpdatedAt = now()

	m := toLeaseModel(current)
	res, err := s.sdb.NewUpdate(m).
		Where("id = ?", leaseID.String()).
		Where("status = ?", string(expected)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// The row moved between our read and the guarded update.
		return nil, leasing.ErrStatusConflict
	}
	return current, nil
}

func (s *Store) ListActiveExpired(ctx context.Context, nowAt time.Time) ([]*lease.Lease, error) {
	var models []leaseModel
	err := s.sdb.NewSelect(&models).
		Where("status = ?", string(lease.StatusActive)).
		Where("expires_at <= ?", nowAt.UTC()).
		OrderExpr("expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromLeaseModels(models)
}

func (s *Store) ListLeases(ctx context.Context, address string, opts lease.ListOpts) ([]*lease.Lease, error) {
	var models []leaseModel
	q := s.sdb.NewSelect(&models)

	if address != "" {
		q = q.Where("address = ?", address)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromLeaseModels(models)
}

func (s *Store) CountLeasesByStatus(ctx context.Context) (map[lease.Status]int64, error) {
	var rows []statusCount
	err := s.sdb.NewRaw(`
		SELECT status, COUNT(*) AS total FROM leasing_leases GROUP BY status
	`).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[lease.Status]int64, len(rows))
	for _, r := range rows {
		counts[lease.Status(r.Status)] = r.Total
	}
	return counts, nil
}

// ==================== Helpers ====================

type statusCount struct {
	Status string `grove:"status"`
	Total  int64  `grove:"total"`
}

// classifyInsertError resolves a failed insert into the conflict
// sentinels. The partial unique indexes make the insert the real guard;
// follow-up reads identify which constraint fired without parsing
// driver-specific messages.
func (s *Store) classifyInsertError(ctx context.Context, l *lease.Lease, insertErr error) error {
	if l.PaymentRef != lease.ManualPaymentRef {
		if _, err := s.GetLeaseByPaymentRef(ctx, l.PaymentRef); err == nil {
			return leasing.ErrPaymentSeen
		}
	}

	var open int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM leasing_leases
		WHERE address = ? AND status IN (?, ?)
	`, l.Address, string(lease.StatusPending), string(lease.StatusActive)).Scan(ctx, &open)
	if err == nil && open > 0 {
		return leasing.ErrLeaseConflict
	}

	return insertErr
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
