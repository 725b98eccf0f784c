package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Asset stores metadata about one binary file owned by a course.
// The actual bytes live in the content-addressed store once backed up;
// OriginalPath points at the location the retry sweep re-reads them from.
type Asset struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CourseID        string             `bson:"courseId" json:"courseId"`                 // Owning course reference
	OriginalPath    string             `bson:"originalPath,omitempty" json:"-"`          // Source location for retries - internal use
	Filename        string             `bson:"filename" json:"filename"`                 // Original filename provided by the caller
	MimeType        string             `bson:"mimeType" json:"mimeType"`                 // MIME type (e.g., "video/mp4")
	Size            int64              `bson:"size" json:"size"`                         // Declared size in bytes at registration time
	Sha256          string             `bson:"sha256,omitempty" json:"sha256,omitempty"` // Content hash; empty until first successful hash computation
	BackedUp        bool               `bson:"backedUp" json:"backedUp"`                 // True only once a pinned CidRecord is durably linked
	Abandoned       bool               `bson:"abandoned" json:"abandoned"`               // Retries exhausted or content retired; the sweep no longer selects it
	LastBackupError string             `bson:"lastBackupError,omitempty" json:"lastBackupError,omitempty"` // Last failure message; cleared on success
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
