package service

import (
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/repository"
	"context"
	"errors"
)

// DedupIndex answers "is this content already stored?" by content hash.
// It only ever matches pinned records: linking a new asset to an
// unconfirmed or failed record would point it at content that never
// actually landed on the network. The cid_records collection is the single
// source of truth here; there is deliberately no in-memory cache, since a
// cache shared across processes could not be kept authoritative.
type DedupIndex struct {
	cidRecords repository.CidRecordRepository
}

// NewDedupIndex creates a dedup index over the cid record repository.
func NewDedupIndex(cidRecords repository.CidRecordRepository) *DedupIndex {
	return &DedupIndex{cidRecords: cidRecords}
}

// FindPinnedByHash returns the pinned record for a content hash, if any.
// The boolean distinguishes "no pinned record" from a lookup failure.
func (d *DedupIndex) FindPinnedByHash(ctx context.Context, sha256 string) (*domain.CidRecord, bool, error) {
	record, err := d.cidRecords.GetPinnedBySha256(ctx, sha256)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}
