package service

import (
	"alcyxob/coursevault/internal/contentstore"
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/repository"
	"alcyxob/coursevault/internal/source"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
)

// --- Error Definitions ---
var (
	ErrCourseIDRequired = errors.New("course ID is required")
	ErrSourceRequired   = errors.New("upload requires content bytes or an original path")
	ErrAssetRequired    = errors.New("asset is required")
)

// Default cap on persisted error messages when none is configured.
const defaultMaxErrorLength = 500

// --- Service Interface ---

// BackupService drives the backup of course assets into the
// content-addressed store: hashing, dedup against already-pinned content,
// streaming uploads and asset/record state transitions.
type BackupService interface {
	// Upload registers a new asset for a course and immediately attempts to
	// back it up. Inline payloads are staged so a failed attempt stays
	// retryable by the sweep. Store failures are recorded on the asset and
	// propagated to the caller (interactive path).
	Upload(ctx context.Context, courseID, originalPath string, data []byte, filename, mimeType string) (*domain.Asset, *domain.CidRecord, error)

	// UploadForAsset backs up an existing asset from src. The content hash
	// is computed in the same pass that streams bytes to the store, so
	// memory stays bounded regardless of payload size.
	UploadForAsset(ctx context.Context, asset *domain.Asset, src io.Reader, declaredFilename string) (*domain.CidRecord, error)
}

// --- Service Implementation ---

type backupService struct {
	assets      repository.AssetRepository
	cidRecords  repository.CidRecordRepository
	dedup       *DedupIndex
	store       contentstore.ContentStore
	sources     source.Store
	pinAfterAdd bool // True when the store does not pin atomically on add
	maxErrorLen int
}

// NewBackupService creates a new instance of backupService.
// pinOnWrite mirrors the store configuration: when false, a separate Pin
// call is issued before any record is marked pinned.
func NewBackupService(
	assets repository.AssetRepository,
	cidRecords repository.CidRecordRepository,
	dedup *DedupIndex,
	store contentstore.ContentStore,
	sources source.Store,
	pinOnWrite bool,
	maxErrorLen int,
) BackupService {
	if maxErrorLen <= 0 {
		maxErrorLen = defaultMaxErrorLength
	}
	return &backupService{
		assets:      assets,
		cidRecords:  cidRecords,
		dedup:       dedup,
		store:       store,
		sources:     sources,
		pinAfterAdd: !pinOnWrite,
		maxErrorLen: maxErrorLen,
	}
}

// Upload registers the asset and drives the first backup attempt.
func (s *backupService) Upload(ctx context.Context, courseID, originalPath string, data []byte, filename, mimeType string) (*domain.Asset, *domain.CidRecord, error) {
	// 1. Validate before any I/O.
	if courseID == "" {
		return nil, nil, ErrCourseIDRequired
	}
	if len(data) == 0 && originalPath == "" {
		return nil, nil, ErrSourceRequired
	}

	// 2. Stage inline payloads so the sweep can re-read them on retry.
	if len(data) > 0 && originalPath == "" {
		staged, err := s.sources.Stash(data, filename)
		if err != nil {
			// The upload can still proceed; only retries lose their source.
			log.Printf("WARN: Failed to stage inline payload for course %s: %v", courseID, err)
		} else {
			originalPath = staged
		}
	}

	asset := &domain.Asset{
		CourseID:     courseID,
		OriginalPath: originalPath,
		Filename:     filename,
		MimeType:     mimeType,
		Size:         int64(len(data)),
	}

	// 3. For inline payloads the hash is cheap to compute up front, which
	// lets UploadForAsset short-circuit the network write entirely on a
	// dedup hit.
	if len(data) > 0 {
		sum := sha256.Sum256(data)
		asset.Sha256 = hex.EncodeToString(sum[:])
	}

	id, err := s.assets.Create(ctx, asset)
	if err != nil {
		return nil, nil, err
	}
	asset.ID = id

	// 4. Resolve the byte source.
	var src io.Reader
	if len(data) > 0 {
		src = bytes.NewReader(data)
	} else {
		rc, err := s.sources.Open(originalPath)
		if err != nil {
			s.recordAssetFailure(ctx, asset, err)
			return asset, nil, err
		}
		defer rc.Close()
		src = rc
	}

	record, err := s.UploadForAsset(ctx, asset, src, filename)
	if err != nil {
		// State is already recorded on the asset; the interactive caller
		// still gets the error.
		return asset, nil, err
	}
	return asset, record, nil
}

// UploadForAsset implements the core backup algorithm:
//  1. If the content hash is already known, check the dedup index first and
//     skip the network entirely on a hit.
//  2. Otherwise stream the bytes to the store while hashing them in the
//     same pass (io.TeeReader), then check the dedup index with the now
//     known hash. If another upload of identical bytes won in the
//     meantime, the redundant network write is harmless (the store is
//     idempotent for identical content) and the existing record is reused.
//  3. Exactly one pinned record per hash; the repository's unique
//     constraint backs this up against races the in-memory check misses.
func (s *backupService) UploadForAsset(ctx context.Context, asset *domain.Asset, src io.Reader, declaredFilename string) (*domain.CidRecord, error) {
	// Malformed input never reaches the content store.
	if asset == nil {
		return nil, ErrAssetRequired
	}
	if asset.CourseID == "" {
		return nil, ErrCourseIDRequired
	}
	if src == nil {
		return nil, ErrSourceRequired
	}
	if declaredFilename == "" {
		declaredFilename = asset.Filename
	}

	// 1. Pre-stream dedup short-circuit.
	if asset.Sha256 != "" {
		existing, hit, err := s.dedup.FindPinnedByHash(ctx, asset.Sha256)
		if err != nil {
			return nil, err
		}
		if hit {
			if err := s.linkAsset(ctx, asset, existing.Sha256); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}

	// 2. Single pass: hash while streaming to the store.
	hasher := sha256.New()
	tee := io.TeeReader(src, hasher)

	cid, size, err := s.store.Add(ctx, tee)
	if err != nil {
		s.recordAssetFailure(ctx, asset, err)
		return nil, err
	}
	contentHash := hex.EncodeToString(hasher.Sum(nil))

	// 3. Post-stream dedup: the hash may only now be known, and a
	// concurrent upload of the same bytes may have landed first. A failed
	// lookup only loses the shortcut; step 5 still resolves the record.
	existing, hit, dedupErr := s.dedup.FindPinnedByHash(ctx, contentHash)
	if dedupErr != nil {
		log.Printf("WARN: Dedup lookup failed for hash %s: %v", contentHash, dedupErr)
	} else if hit {
		return s.reuseRecord(ctx, asset, existing, cid)
	}

	// 4. Pin before the record may claim pinned status, unless the add
	// already pinned atomically.
	if s.pinAfterAdd {
		if err := s.store.Pin(ctx, cid); err != nil {
			s.recordUnconfirmed(ctx, asset, cid, contentHash, declaredFilename, size, err)
			s.recordAssetFailure(ctx, asset, err)
			return nil, err
		}
	}

	// 5. Confirm the record for this hash. A hash that failed or went
	// unconfirmed on an earlier attempt already has a row; it is mutated,
	// never duplicated. On a constraint race, reuse the winner.
	record, err := s.cidRecords.GetBySha256(ctx, contentHash)
	switch {
	case err == nil:
		record.Cid = cid
		record.Size = size
		record.Status = domain.CidStatusPinned
		record.Attempts++
		record.LastError = ""
		if updateErr := s.cidRecords.Update(ctx, record); updateErr != nil {
			if errors.Is(updateErr, repository.ErrDuplicatePinned) {
				return s.recoverFromRace(ctx, asset, contentHash, cid)
			}
			s.recordAssetFailure(ctx, asset, updateErr)
			return nil, updateErr
		}
	case errors.Is(err, repository.ErrNotFound):
		record = &domain.CidRecord{
			Cid:      cid,
			AssetID:  asset.ID,
			Filename: declaredFilename,
			MimeType: asset.MimeType,
			Size:     size,
			Status:   domain.CidStatusPinned,
			Attempts: 1,
			Sha256:   contentHash,
		}
		if _, createErr := s.cidRecords.Create(ctx, record); createErr != nil {
			if errors.Is(createErr, repository.ErrDuplicatePinned) {
				return s.recoverFromRace(ctx, asset, contentHash, cid)
			}
			s.recordAssetFailure(ctx, asset, createErr)
			return nil, createErr
		}
	default:
		s.recordAssetFailure(ctx, asset, err)
		return nil, err
	}

	// 6. Link the asset to the now durable content.
	if err := s.linkAsset(ctx, asset, contentHash); err != nil {
		return nil, err
	}
	return record, nil
}

// reuseRecord links the asset to an already pinned record, bumping its
// attempt counter instead of creating a second row for the same content.
func (s *backupService) reuseRecord(ctx context.Context, asset *domain.Asset, existing *domain.CidRecord, observedCid string) (*domain.CidRecord, error) {
	if observedCid != "" && observedCid != existing.Cid {
		// Identical sha256 but a different cid from the store means the
		// bytes were not actually identical; the existing record wins.
		log.Printf("WARN: Store returned cid %s for hash %s, but record %s holds cid %s", observedCid, existing.Sha256, existing.ID.Hex(), existing.Cid)
	}

	existing.Attempts++
	existing.LastError = ""
	if err := s.cidRecords.Update(ctx, existing); err != nil {
		log.Printf("WARN: Failed to bump attempts on cid record %s: %v", existing.ID.Hex(), err)
	}

	if err := s.linkAsset(ctx, asset, existing.Sha256); err != nil {
		return nil, err
	}
	return existing, nil
}

// recoverFromRace resolves a lost race on the pinned unique constraint by
// adopting the record that won.
func (s *backupService) recoverFromRace(ctx context.Context, asset *domain.Asset, contentHash, observedCid string) (*domain.CidRecord, error) {
	existing, err := s.cidRecords.GetPinnedBySha256(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	return s.reuseRecord(ctx, asset, existing, observedCid)
}

// recordUnconfirmed persists a record for content that was added but whose
// pin did not go through. It never claims pinned status, so it stays
// invisible to dedup until a later attempt confirms the pin. A record for
// the same hash from an earlier attempt is mutated, not duplicated.
func (s *backupService) recordUnconfirmed(ctx context.Context, asset *domain.Asset, cid, contentHash, filename string, size int64, cause error) {
	if existing, err := s.cidRecords.GetBySha256(ctx, contentHash); err == nil {
		existing.Cid = cid
		existing.Attempts++
		existing.LastError = truncateError(cause, s.maxErrorLen)
		if updateErr := s.cidRecords.Update(ctx, existing); updateErr != nil {
			log.Printf("WARN: Failed to update unconfirmed cid record for %s: %v", cid, updateErr)
		}
		return
	}

	record := &domain.CidRecord{
		Cid:       cid,
		AssetID:   asset.ID,
		Filename:  filename,
		MimeType:  asset.MimeType,
		Size:      size,
		Status:    domain.CidStatusUnconfirmed,
		Attempts:  1,
		Sha256:    contentHash,
		LastError: truncateError(cause, s.maxErrorLen),
	}
	if _, err := s.cidRecords.Create(ctx, record); err != nil {
		log.Printf("WARN: Failed to persist unconfirmed cid record for %s: %v", cid, err)
	}
}

// linkAsset marks the asset as durably backed up. Success always clears the
// last backup error and any abandoned marker from earlier give-ups.
func (s *backupService) linkAsset(ctx context.Context, asset *domain.Asset, contentHash string) error {
	asset.Sha256 = contentHash
	asset.BackedUp = true
	asset.Abandoned = false
	asset.LastBackupError = ""
	return s.assets.Update(ctx, asset)
}

// recordAssetFailure persists a truncated failure message on the asset and
// leaves it pending so the sweep retries it later.
func (s *backupService) recordAssetFailure(ctx context.Context, asset *domain.Asset, cause error) {
	asset.BackedUp = false
	asset.LastBackupError = truncateError(cause, s.maxErrorLen)
	if err := s.assets.Update(ctx, asset); err != nil {
		log.Printf("ERROR: Failed to record backup failure on asset %s: %v", asset.ID.Hex(), err)
	}
}

// truncateError caps persisted error messages so storage cannot grow
// unbounded on repeated failures.
func truncateError(err error, maxLen int) string {
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
