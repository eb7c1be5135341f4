// Package retention prunes sessions and frames past the configured
// retention window and reconciles the frames/videos directories against
// the store so neither orphaned rows nor orphaned files accumulate
// indefinitely.
package retention

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("RETENTION")

// Service owns the data directories so Sweep can unlink files once the
// store's rows have been deleted.
type Service struct {
	framesDir string
	videosDir string
	dbPath    string
}

func New(framesDir, videosDir, dbPath string) *Service {
	return &Service{framesDir: framesDir, videosDir: videosDir, dbPath: dbPath}
}

// Sweep prunes every session whose end time is older than retentionDays,
// then scans for frames that were captured but never bound to a session
// (e.g. a crash mid-segmentation). Each step is independently interruptible
// and idempotent: re-running it after a partial failure only re-examines
// whatever is still there to prune.
func (s *Service) Sweep(ctx context.Context, retentionDays int) error {
	cutoffMs := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()

	ids, err := db.ListSessionsOlderThan(cutoffMs)
	if err != nil {
		return err
	}

	pruned := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.pruneSession(id); err != nil {
			logger.Warn().Err(err).Int64("session_id", id).Msg("failed to prune session")
			continue
		}
		pruned++
	}
	if pruned > 0 {
		logger.Info().Int("count", pruned).Int("retention_days", retentionDays).Msg("pruned sessions past retention window")
	}

	if err := s.pruneOrphanFrames(cutoffMs); err != nil {
		logger.Warn().Err(err).Msg("failed to prune orphan frames")
	}

	return nil
}

// DeleteSession prunes one session on demand, behind delete_session(id) —
// the same row-then-file ordering as a retention-window sweep, just
// triggered by the caller instead of the cutoff clock.
func (s *Service) DeleteSession(sessionID int64) error {
	return s.pruneSession(sessionID)
}

// Cleanup runs an out-of-band orphan sweep behind cleanup_storage(): orphan
// frame rows older than now (nothing is exempt, unlike a retention sweep's
// cutoff) plus the orphan-file scan in both directions.
func (s *Service) Cleanup(ctx context.Context) (filesRemoved int, err error) {
	if err := s.pruneOrphanFrames(time.Now().UnixMilli()); err != nil {
		return 0, err
	}
	return s.ScanOrphanFiles()
}

// pruneSession unlinks a session's files before deleting its rows: the
// files go first and the row deletion commits last, so a crash in between
// leaves an orphan row rather than a dangling file.
func (s *Service) pruneSession(sessionID int64) error {
	framePaths, videoPath, err := db.SessionFilePaths(sessionID)
	if err != nil {
		return err
	}

	for _, p := range framePaths {
		s.unlinkQuiet(filepath.Join(s.framesDir, p))
	}
	if videoPath != nil {
		s.unlinkQuiet(filepath.Join(s.videosDir, *videoPath))
	}

	return db.DeleteSessionRows(sessionID)
}

// pruneOrphanFrames unlinks the orphan frames' files before deleting their
// rows, for the same crash-safety reason as pruneSession.
func (s *Service) pruneOrphanFrames(cutoffMs int64) error {
	paths, err := db.OrphanFramePaths(cutoffMs)
	if err != nil {
		return err
	}
	for _, p := range paths {
		s.unlinkQuiet(filepath.Join(s.framesDir, p))
	}
	if err := db.DeleteOrphanFrameRows(cutoffMs); err != nil {
		return err
	}
	if len(paths) > 0 {
		logger.Info().Int("count", len(paths)).Msg("pruned orphan frame rows")
	}
	return nil
}

func (s *Service) unlinkQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("failed to remove file")
	}
}

// ScanOrphanFiles walks the frames and videos directories looking for files
// with no corresponding row — the mirror image of the store's own startup
// reconciliation, which drops rows whose files are missing. A file found
// here survived the store's crash-before-row-write window without ever
// being referenced, so it is safe to delete outright.
func (s *Service) ScanOrphanFiles() (removed int, err error) {
	knownFrames, err := frameFileSet()
	if err != nil {
		return 0, err
	}

	err = filepath.WalkDir(s.framesDir, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(s.framesDir, path)
		if rerr != nil {
			return nil
		}
		if !knownFrames[rel] {
			s.unlinkQuiet(path)
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}

	knownVideos, err := videoFileSet()
	if err != nil {
		return removed, err
	}
	err = filepath.WalkDir(s.videosDir, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(s.videosDir, path)
		if rerr != nil {
			return nil
		}
		if !knownVideos[rel] {
			s.unlinkQuiet(path)
			removed++
		}
		return nil
	})
	return removed, err
}

func frameFileSet() (map[string]bool, error) {
	out := make(map[string]bool)
	const batch = 5000
	offset := int64(0)
	for {
		paths, err := db.ListFramePathsPage(offset, batch)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			out[p] = true
		}
		if len(paths) < batch {
			break
		}
		offset += int64(batch)
	}
	return out, nil
}

func videoFileSet() (map[string]bool, error) {
	paths, err := db.ListVideoPaths()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out, nil
}

// Stats assembles get_storage_stats: row counts from the store plus byte
// totals read straight off disk.
func (s *Service) Stats() (models.StorageStats, error) {
	sessionCount, frameCount, byDevice, err := db.QueryStorageCounts()
	if err != nil {
		return models.StorageStats{}, err
	}

	framesBytes, err := dirSize(s.framesDir)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to size frames dir")
	}
	videosBytes, err := dirSize(s.videosDir)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to size videos dir")
	}
	dbBytes := int64(0)
	if fi, err := os.Stat(s.dbPath); err == nil {
		dbBytes = fi.Size()
	}

	return models.StorageStats{
		DBBytes:            dbBytes,
		FramesBytes:        framesBytes,
		VideosBytes:        videosBytes,
		SessionCount:       sessionCount,
		FrameCount:         frameCount,
		FramesByDeviceType: byDevice,
	}, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return nil
		}
		if !d.IsDir() {
			if info, ierr := d.Info(); ierr == nil {
				total += info.Size()
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return total, err
	}
	return total, nil
}
