package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	leasing "github.com/xraph/leasing"
	"github.com/xraph/leasing/id"
	"github.com/xraph/leasing/lease"
	leasingstore "github.com/xraph/leasing/store"
)

// Collection name constants.
const (
	colLeases = "leasing_leases"
)

// compile-time interface check
var _ leasingstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all leasing collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("leasing/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.classifyDuplicate(ctx, l)
		}
		return fmt.Errorf("leasing/mongo: insert lease: %w", err)
	}
	return nil
}

func (s *Store) GetLease(ctx context.Context, leaseID id.LeaseID) (*lease.Lease, error) {
	var m leaseModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": leaseID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, leasing.ErrLeaseNotFound
		}
		return nil, fmt.Errorf("leasing/mongo: get lease: %w", err)
	}
	return fromLeaseModel(&m)
}

func (s *Store) GetLeaseByPaymentRef(ctx context.Context, paymentRef string) (*lease.Lease, error) {
	var m leaseModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"payment_ref": paymentRef}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, leasing.ErrLeaseNotFound
		}
		return nil, fmt.Errorf("leasing/mongo: get lease by payment ref: %w", err)
	}
	return fromLeaseModel(&m)
}

func (s *Store) GetActiveLeaseByAddress(ctx context.Context, address string) (*lease.Lease, error) {
	var m leaseModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"address": address, "status": string(lease.StatusActive)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, leasing.ErrLeaseNotFound
		}
		return nil, fmt.Errorf("leasing/mongo: get active lease by address: %w", err)
	}
	return fromLeaseModel(&m)
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
	res, err := s.mdb.Collection(colLeases).ReplaceOne(ctx,
		bson.M{"_id": leaseID.String(), "status": string(expected)}, m)
	if err != nil {
		return nil, fmt.Errorf("leasing/mongo: update lease status: %w", err)
	}
	if res.MatchedCount == 0 {
		// The document moved between our read and the guarded replace.
		return nil, leasing.ErrStatusConflict
	}
	return current, nil
}

func (s *Store) ListActiveExpired(ctx context.Context, nowAt time.Time) ([]*lease.Lease, error) {
	var models []leaseModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":     string(lease.StatusActive),
			"expires_at": bson.M{"$lte": nowAt.UTC()},
		}).
		Sort(bson.D{{Key: "expires_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leasing/mongo: list active expired: %w", err)
	}
	return fromLeaseModels(models)
}

func (s *Store) ListLeases(ctx context.Context, address string, opts lease.ListOpts) ([]*lease.Lease, error) {
	filter := bson.M{}
	if address != "" {
		filter["address"] = address
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []leaseModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("leasing/mongo: list leases: %w", err)
	}
	return fromLeaseModels(models)
}

func (s *Store) CountLeasesByStatus(ctx context.Context) (map[lease.Status]int64, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$status", "total": bson.M{"$sum": 1}}},
	}

	cursor, err := s.mdb.Collection(colLeases).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("leasing/mongo: count leases by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Total  int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("leasing/mongo: decode status counts: %w", err)
	}

	counts := make(map[lease.Status]int64, len(rows))
	for _, r := range rows {
		counts[lease.Status(r.Status)] = r.Total
	}
	return counts, nil
}

// ==================== Helpers ====================

// classifyDuplicate resolves a duplicate-key insert into the conflict
// sentinels by inspecting which document already exists.
func (s *Store) classifyDuplicate(ctx context.Context, l *lease.Lease) error {
	if l.PaymentRef != lease.ManualPaymentRef {
		if _, err := s.GetLeaseByPaymentRef(ctx, l.PaymentRef); err == nil {
			return leasing.ErrPaymentSeen
		}
	}
	return leasing.ErrLeaseConflict
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all leasing collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLeases: {
			{
				Keys: bson.D{{Key: "address", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(
					bson.M{"status": bson.M{"$in": bson.A{
						string(lease.StatusPending), string(lease.StatusActive),
					}}},
				),
			},
			{
				Keys: bson.D{{Key: "payment_ref", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(
					bson.M{"payment_ref": bson.M{"$ne": lease.ManualPaymentRef}},
				),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}
