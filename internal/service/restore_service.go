package service

import (
	"alcyxob/coursevault/internal/contentstore"
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/repository"
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrCidNotFound = errors.New("no content record for this cid")

// --- Service Interface ---

// RestoreService resolves content identifiers back to bytes and metadata.
// It is a pure read path: no dedup, no state mutation, no locking, and it
// may be called concurrently and arbitrarily often.
type RestoreService interface {
	GetByCid(ctx context.Context, cid string) (*domain.CidRecord, error)
	// Download returns the content bytes together with the stored filename
	// and MIME type.
	Download(ctx context.Context, cid string) ([]byte, string, string, error)
}

// --- Service Implementation ---

type restoreService struct {
	cidRecords repository.CidRecordRepository
	store      contentstore.ContentStore
}

// NewRestoreService creates a new instance of restoreService.
func NewRestoreService(cidRecords repository.CidRecordRepository, store contentstore.ContentStore) RestoreService {
	return &restoreService{
		cidRecords: cidRecords,
		store:      store,
	}
}

// GetByCid looks up the local record for a cid. An unknown cid is a
// NotFound, never a store-level error: the store is not consulted.
func (s *restoreService) GetByCid(ctx context.Context, cid string) (*domain.CidRecord, error) {
	if cid == "" {
		return nil, ErrCidNotFound
	}
	record, err := s.cidRecords.GetByCid(ctx, cid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCidNotFound
		}
		return nil, err
	}
	return record, nil
}

// Download rehydrates the content behind a cid from the store.
func (s *restoreService) Download(ctx context.Context, cid string) ([]byte, string, string, error) {
	record, err := s.GetByCid(ctx, cid)
	if err != nil {
		return nil, "", "", err
	}

	rc, err := s.store.Cat(ctx, record.Cid)
	if err != nil {
		return nil, "", "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read content for cid %s: %w", record.Cid, err)
	}
	return data, record.Filename, record.MimeType, nil
}
