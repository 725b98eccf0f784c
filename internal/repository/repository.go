package repository

import (
	"alcyxob/coursevault/internal/domain" // Import our defined domain models
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound        = RepositoryError("not found")
	ErrUpdateFailed    = RepositoryError("update failed")
	ErrDuplicatePinned = RepositoryError("pinned record already exists for this hash")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// AssetRepository defines the interface for interacting with asset metadata.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Asset, error)
	Update(ctx context.Context, asset *domain.Asset) error
	// ListPendingBackup returns up to limit assets with backedUp=false and
	// abandoned=false, oldest first so long-failing assets are not starved.
	// offset skips that many matching assets, letting callers page past
	// entries they cannot act on yet.
	ListPendingBackup(ctx context.Context, limit, offset int) ([]domain.Asset, error)
}

// CidRecordRepository defines the interface for interacting with
// content-address records. The implementation must enforce the
// one-pinned-record-per-hash invariant: Create returns ErrDuplicatePinned
// when a pinned record for the same sha256 already exists.
type CidRecordRepository interface {
	Create(ctx context.Context, record *domain.CidRecord) (primitive.ObjectID, error)
	GetByCid(ctx context.Context, cid string) (*domain.CidRecord, error)
	// GetPinnedBySha256 is the dedup lookup: only status=pinned records match.
	GetPinnedBySha256(ctx context.Context, sha256 string) (*domain.CidRecord, error)
	// GetBySha256 returns the most recently updated record for a hash
	// regardless of status (used by the sweeper to read attempt counts).
	GetBySha256(ctx context.Context, sha256 string) (*domain.CidRecord, error)
	Update(ctx context.Context, record *domain.CidRecord) error
	CountBySha256(ctx context.Context, sha256 string) (int64, error)
}
