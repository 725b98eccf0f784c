package mongo

import (
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cidRecordCollectionName = "cid_records"

// mongoCidRecordRepository implements repository.CidRecordRepository
type mongoCidRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoCidRecordRepository creates a new CidRecord repository backed by MongoDB.
func NewMongoCidRecordRepository(db *mongo.Database) repository.CidRecordRepository {
	return &mongoCidRecordRepository{
		collection: db.Collection(cidRecordCollectionName),
	}
}

// Create inserts a new content-address record. The partial unique index on
// sha256 (status=pinned) is the authoritative guard against two pinned
// records for the same content; a violation surfaces as ErrDuplicatePinned
// so callers can fall back to the record that won the race.
func (r *mongoCidRecordRepository) Create(ctx context.Context, record *domain.CidRecord) (primitive.ObjectID, error) {
	if record.Cid == "" || record.Sha256 == "" {
		return primitive.NilObjectID, errors.New("cid record requires cid and sha256")
	}
	if record.Status == "" {
		record.Status = domain.CidStatusUnconfirmed
	}

	record.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicatePinned
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByCid retrieves a record by its content identifier.
func (r *mongoCidRecordRepository) GetByCid(ctx context.Context, cid string) (*domain.CidRecord, error) {
	var record domain.CidRecord
	filter := bson.M{"cid": cid}

	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetPinnedBySha256 retrieves the pinned record for a content hash.
// Only pinned records participate in dedup; unconfirmed or failed records
// must never cause a new asset to be linked to content that did not land.
func (r *mongoCidRecordRepository) GetPinnedBySha256(ctx context.Context, sha256 string) (*domain.CidRecord, error) {
	var record domain.CidRecord
	filter := bson.M{"sha256": sha256, "status": domain.CidStatusPinned}

	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetBySha256 retrieves the most recently updated record for a hash,
// regardless of status.
func (r *mongoCidRecordRepository) GetBySha256(ctx context.Context, sha256 string) (*domain.CidRecord, error) {
	var record domain.CidRecord
	filter := bson.M{"sha256": sha256}
	findOneOptions := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, findOneOptions).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Update replaces the stored record, refreshing updatedAt.
func (r *mongoCidRecordRepository) Update(ctx context.Context, record *domain.CidRecord) error {
	if record.ID == primitive.NilObjectID {
		return errors.New("cid record ID is required for update")
	}
	record.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": record.ID}
	result, err := r.collection.ReplaceOne(ctx, filter, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicatePinned
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountBySha256 counts records for a hash (any status).
func (r *mongoCidRecordRepository) CountBySha256(ctx context.Context, sha256 string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"sha256": sha256})
}

// EnsureCidRecordIndexes creates necessary indexes for the cid_records collection.
func EnsureCidRecordIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Lookup by content identifier (rehydration path).
			Keys:    bson.D{{Key: "cid", Value: 1}},
			Options: options.Index(),
		},
		{
			// At most one pinned record per content hash. Partial so that
			// failed/unconfirmed attempts for the same hash can coexist
			// with the record that eventually lands.
			Keys: bson.D{{Key: "sha256", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: string(domain.CidStatusPinned)}}),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
