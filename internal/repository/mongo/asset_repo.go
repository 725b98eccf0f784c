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

const assetCollectionName = "assets"

// mongoAssetRepository implements repository.AssetRepository
type mongoAssetRepository struct {
	collection *mongo.Collection
}

// NewMongoAssetRepository creates a new Asset repository backed by MongoDB.
func NewMongoAssetRepository(db *mongo.Database) repository.AssetRepository {
	return &mongoAssetRepository{
		collection: db.Collection(assetCollectionName),
	}
}

// Create inserts a new asset record. The asset starts with backedUp=false;
// only the backup flow flips it.
func (r *mongoAssetRepository) Create(ctx context.Context, asset *domain.Asset) (primitive.ObjectID, error) {
	if asset.CourseID == "" {
		return primitive.NilObjectID, errors.New("asset requires a courseId")
	}

	asset.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	asset.BackedUp = false

	result, err := r.collection.InsertOne(ctx, asset)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves an asset by its ID.
func (r *mongoAssetRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Asset, error) {
	var asset domain.Asset
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// Update replaces the stored asset document, refreshing updatedAt.
func (r *mongoAssetRepository) Update(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == primitive.NilObjectID {
		return errors.New("asset ID is required for update")
	}
	asset.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": asset.ID}
	result, err := r.collection.ReplaceOne(ctx, filter, asset)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListPendingBackup returns up to limit assets awaiting backup, oldest first.
// Oldest-first keeps the sweep fair: assets that have been failing the
// longest are always retried before newer arrivals. Abandoned assets are
// excluded so they cannot occupy the window forever.
func (r *mongoAssetRepository) ListPendingBackup(ctx context.Context, limit, offset int) ([]domain.Asset, error) {
	// $ne:true also matches documents written before the abandoned flag existed.
	filter := bson.M{"backedUp": false, "abandoned": bson.M{"$ne": true}}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assets []domain.Asset
	if err := cursor.All(ctx, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// EnsureAssetIndexes creates necessary indexes for the assets collection.
func EnsureAssetIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// The sweep query: pending, not abandoned, ordered by age.
			Keys:    bson.D{{Key: "backedUp", Value: 1}, {Key: "abandoned", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
		{
			// Listing assets per course.
			Keys:    bson.D{{Key: "courseId", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
