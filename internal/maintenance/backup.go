package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// backupSuffix separates live database files from their snapshots. The
// timestamp layout sorts lexically, so pruning can order by name.
const (
	backupSuffix     = ".backup-"
	backupTimeLayout = "20060102-150405"
)

// runBackup snapshots the database to a timestamped sibling and prunes the
// oldest snapshots beyond the retention count.
func (s *Scheduler) runBackup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	dest := s.backupPath + backupSuffix + start.UTC().Format(backupTimeLayout)

	if err := s.backup.Backup(ctx, dest); err != nil {
		slog.Error("maintenance: database backup failed",
			"dest", dest,
			"error", err,
		)
		return
	}

	pruned, err := pruneBackups(s.backupPath, s.backupKeep)
	if err != nil {
		slog.Warn("maintenance: pruning old backups failed", "error", err)
	}

	slog.Info("maintenance: database backup written",
		"dest", dest,
		"pruned", pruned,
		"took", time.Since(start).Round(time.Millisecond),
	)
}

// pruneBackups deletes the oldest snapshots of dbPath beyond keep, returning
// how many were removed. Snapshot age is taken from the filename timestamp.
func pruneBackups(dbPath string, keep int) (int, error) {
	matches, err := filepath.Glob(dbPath + backupSuffix + "*")
	if err != nil {
		return 0, fmt.Errorf("glob backups of %q: %w", dbPath, err)
	}
	if len(matches) <= keep {
		return 0, nil
	}

	sort.Strings(matches) // timestamp layout sorts oldest first
	excess := matches[:len(matches)-keep]

	pruned := 0
	for _, path := range excess {
		if err := os.Remove(path); err != nil {
			return pruned, fmt.Errorf("remove old backup %q: %w", path, err)
		}
		pruned++
	}
	return pruned, nil
}
