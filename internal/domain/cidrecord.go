package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CidStatus tracks the lifecycle of a piece of content on the
// content-addressed network.
type CidStatus string

const (
	// CidStatusPinned means the network confirmed the content is retained.
	CidStatusPinned CidStatus = "pinned"
	// CidStatusUnconfirmed means the content was added but the pin was not confirmed.
	CidStatusUnconfirmed CidStatus = "unconfirmed"
	// CidStatusFailed means upload attempts were exhausted; the record is terminal.
	CidStatusFailed CidStatus = "failed"
	// CidStatusArchived means the content was explicitly retired.
	CidStatusArchived CidStatus = "archived"
)

// CidRecord represents one piece of content known to the content-addressed
// store. Exactly one pinned record may exist per content hash; additional
// assets with identical bytes link to the same record rather than creating
// a new one.
type CidRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Cid       string             `bson:"cid" json:"cid"`             // Content identifier returned by the store
	AssetID   primitive.ObjectID `bson:"assetId" json:"assetId"`     // Asset that first caused this record to be created
	Filename  string             `bson:"filename" json:"filename"`   // As observed at upload time
	MimeType  string             `bson:"mimeType" json:"mimeType"`
	Size      int64              `bson:"size" json:"size"`           // Size reported by the content store
	Status    CidStatus          `bson:"status" json:"status"`
	Attempts  int                `bson:"attempts" json:"attempts"`   // Upload attempts that produced or confirmed this record
	Sha256    string             `bson:"sha256" json:"sha256"`       // The dedup key
	LastError string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
