package service

import (
	"alcyxob/coursevault/internal/config"
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/repository"
	"alcyxob/coursevault/internal/source"
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// --- Service Interface ---

// SweeperService periodically retries assets that are not yet backed up.
type SweeperService interface {
	// ProcessPending re-drives the backup for up to limit pending assets,
	// oldest first. Assets skipped by the hardening policy do not count
	// against the limit. Per-asset failures are recorded on the asset and
	// never abort the batch; the return value is the number of assets
	// attempted, not the number that succeeded. A sweep that finds another
	// sweep still in flight returns (0, nil) immediately.
	ProcessPending(ctx context.Context, limit int) (int, error)

	// RunScheduler blocks, running ProcessPending on a fixed interval until
	// ctx is cancelled.
	RunScheduler(ctx context.Context)
}

// --- Service Implementation ---

type sweeperService struct {
	assets     repository.AssetRepository
	cidRecords repository.CidRecordRepository
	backup     BackupService
	sources    source.Store
	cfg        config.BackupConfig

	// Single-flight guard: two sweeps racing over the same pending set
	// could both try to confirm the same hash. TryLock makes an
	// overlapping run skip instead of queueing behind the current one.
	sweepMu sync.Mutex
}

// NewSweeperService creates a new instance of sweeperService.
func NewSweeperService(
	assets repository.AssetRepository,
	cidRecords repository.CidRecordRepository,
	backup BackupService,
	sources source.Store,
	cfg config.BackupConfig,
) SweeperService {
	if cfg.MaxErrorLength <= 0 {
		cfg.MaxErrorLength = defaultMaxErrorLength
	}
	return &sweeperService{
		assets:     assets,
		cidRecords: cidRecords,
		backup:     backup,
		sources:    sources,
		cfg:        cfg,
	}
}

func (s *sweeperService) ProcessPending(ctx context.Context, limit int) (int, error) {
	if !s.sweepMu.TryLock() {
		log.Printf("INFO: Backup sweep skipped, previous sweep still in flight")
		return 0, nil
	}
	defer s.sweepMu.Unlock()

	if limit <= 0 {
		limit = s.cfg.BatchLimit
	}

	// Skipped assets must not eat the window: keep paging through the
	// pending set until limit assets were actually attempted or nothing
	// attemptable is left.
	processed := 0
	offset := 0
	for processed < limit {
		want := limit - processed
		page, err := s.assets.ListPendingBackup(ctx, want, offset)
		if err != nil {
			return processed, err
		}
		if len(page) == 0 {
			break
		}

		// Assets that will still match the pending query on the next page:
		// skipped but not abandoned, or attempted and failed again. The
		// offset advances past exactly those; everything else either left
		// the query (backed up, abandoned) or was never fetched.
		stillPending := 0
		for i := range page {
			asset := &page[i]

			if s.shouldSkip(ctx, asset) {
				if !asset.Abandoned {
					stillPending++
				}
				continue
			}

			processed++
			if err := s.sweepOne(ctx, asset); err != nil {
				// Already recorded on the asset; the batch moves on.
				log.Printf("ERROR: Backup retry failed for asset %s: %v", asset.ID.Hex(), err)
				stillPending++
			}
		}
		offset += stillPending

		if len(page) < want {
			break
		}
	}
	return processed, nil
}

// shouldSkip applies the hardening policy to assets whose content hash is
// already known from an earlier attempt: terminal records are never
// retried, attempt counts are capped, and recent failures wait out an
// exponential backoff before the next try.
func (s *sweeperService) shouldSkip(ctx context.Context, asset *domain.Asset) bool {
	if asset.Sha256 == "" {
		return false
	}

	record, err := s.cidRecords.GetBySha256(ctx, asset.Sha256)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("WARN: Could not read cid record for asset %s: %v", asset.ID.Hex(), err)
		}
		return false
	}

	switch record.Status {
	case domain.CidStatusPinned:
		// The backup will short-circuit to a dedup link; no reason to skip.
		return false
	case domain.CidStatusFailed:
		s.abandonAsset(ctx, asset, "backup attempts exhausted")
		return true
	case domain.CidStatusArchived:
		s.abandonAsset(ctx, asset, "content archived")
		return true
	}

	if s.cfg.MaxAttempts > 0 && record.Attempts >= s.cfg.MaxAttempts {
		record.Status = domain.CidStatusFailed
		if err := s.cidRecords.Update(ctx, record); err != nil {
			log.Printf("WARN: Failed to mark cid record %s as failed: %v", record.ID.Hex(), err)
		}
		log.Printf("WARN: Giving up on content hash %s after %d attempts", record.Sha256, record.Attempts)
		s.abandonAsset(ctx, asset, "backup attempts exhausted")
		return true
	}

	if wait := s.backoffDelay(record.Attempts); wait > 0 && time.Since(record.UpdatedAt) < wait {
		return true
	}
	return false
}

// abandonAsset takes a terminally-failed asset out of the sweep's selection
// so it cannot occupy the window that healthy assets need.
func (s *sweeperService) abandonAsset(ctx context.Context, asset *domain.Asset, reason string) {
	if asset.Abandoned {
		return
	}
	asset.Abandoned = true
	asset.LastBackupError = reason
	if err := s.assets.Update(ctx, asset); err != nil {
		// Still matches the pending query; the caller must page past it.
		asset.Abandoned = false
		log.Printf("WARN: Failed to mark asset %s as abandoned: %v", asset.ID.Hex(), err)
	}
}

// sweepOne re-reads the asset's source and drives one backup attempt.
func (s *sweeperService) sweepOne(ctx context.Context, asset *domain.Asset) error {
	src, err := s.sources.Open(asset.OriginalPath)
	if err != nil {
		asset.LastBackupError = truncateError(err, s.cfg.MaxErrorLength)
		if updateErr := s.assets.Update(ctx, asset); updateErr != nil {
			log.Printf("WARN: Failed to record missing source on asset %s: %v", asset.ID.Hex(), updateErr)
		}
		return err
	}
	defer src.Close()

	_, err = s.backup.UploadForAsset(ctx, asset, src, asset.Filename)
	return err
}

// backoffDelay returns how long to wait after the given number of failed
// attempts: base doubling per attempt, capped.
func (s *sweeperService) backoffDelay(attempts int) time.Duration {
	if attempts <= 0 || s.cfg.BackoffBase <= 0 {
		return 0
	}
	delay := s.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if s.cfg.BackoffMax > 0 && delay >= s.cfg.BackoffMax {
			return s.cfg.BackoffMax
		}
	}
	return delay
}

func (s *sweeperService) RunScheduler(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Printf("INFO: Backup sweep scheduler started (every %s, batch limit %d)", interval, s.cfg.BatchLimit)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("INFO: Backup sweep scheduler stopped")
			return
		case <-ticker.C:
			processed, err := s.ProcessPending(ctx, s.cfg.BatchLimit)
			if err != nil {
				log.Printf("ERROR: Backup sweep failed: %v", err)
			} else if processed > 0 {
				log.Printf("INFO: Backup sweep attempted %d asset(s)", processed)
			}
		}
	}
}
