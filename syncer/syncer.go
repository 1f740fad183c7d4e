package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/standards/graph"
	"github.com/c360studio/standards/parser"
	"github.com/c360studio/standards/standards"
)

// Store is the graph surface the syncer reconciles against. Satisfied
// by *graph.Client.
type Store interface {
	ImportStandard(ctx context.Context, draft *standards.Draft, fileSource string) (*standards.Standard, error)
	DeleteStandardsWithSource(ctx context.Context, filePath string) (int, error)
	FindByCriteria(ctx context.Context, crit graph.Criteria) []*standards.Standard
}

// changeKind classifies a detected file change.
type changeKind int

const (
	changeAdded changeKind = iota
	changeModified
	changeDeleted
)

// change is one reconciliation action. A rename is not detectable and
// shows up as delete+add.
type change struct {
	kind changeKind
	file discovered // zero for deletions
	path string
}

// Stats reports the outcome of one sync run.
type Stats struct {
	FilesScanned      int           `json:"files_scanned"`
	Added             int           `json:"added"`
	Modified          int           `json:"modified"`
	Deleted           int           `json:"deleted"`
	StandardsImported int           `json:"standards_imported"`
	StandardsRemoved  int           `json:"standards_removed"`
	Errors            int           `json:"errors"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
}

// Status is the current synchronization snapshot.
type Status struct {
	FilesTracked     int       `json:"files_tracked"`
	StandardsInFiles int       `json:"standards_in_files"`
	StandardsInDB    int       `json:"standards_in_db"`
	LastSync         time.Time `json:"last_sync"`
	Synchronized     bool      `json:"synchronized"`
}

// Syncer reconciles a standards directory tree with the graph.
type Syncer struct {
	root     string
	excludes []string
	store    Store
	parser   *parser.Parser
	logger   *slog.Logger
	now      func() time.Time

	// runMu serializes sync runs; a scheduled tick that cannot take it
	// is skipped.
	runMu sync.Mutex

	mu       sync.Mutex
	lastSync time.Time
	lastErr  error
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExcludes sets glob patterns (relative, slash-separated) whose
// matches are ignored during discovery.
func WithExcludes(patterns []string) Option {
	return func(s *Syncer) { s.excludes = patterns }
}

// New creates a syncer over the given standards root.
func New(root string, store Store, p *parser.Parser, opts ...Option) *Syncer {
	s := &Syncer{
		root:   root,
		store:  store,
		parser: p,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncAll runs a full discovery/detection/reconciliation pass. With
// force, every discovered file is treated as modified. The sidecar index
// is rewritten atomically only after a successful pass.
func (s *Syncer) SyncAll(ctx context.Context, force bool) (*Stats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.syncLocked(ctx, force)
}

// trySync runs a sync unless one is already in progress, in which case
// it reports skipped=true.
func (s *Syncer) trySync(ctx context.Context, force bool) (*Stats, bool, error) {
	if !s.runMu.TryLock() {
		return nil, true, nil
	}
	defer s.runMu.Unlock()
	stats, err := s.syncLocked(ctx, force)
	return stats, false, err
}

func (s *Syncer) syncLocked(ctx context.Context, force bool) (*Stats, error) {
	stats := &Stats{StartedAt: s.now().UTC()}

	idx, err := loadIndex(s.root)
	if err != nil {
		return nil, s.fail(stats, err)
	}

	files, err := s.discover()
	if err != nil {
		return nil, s.fail(stats, err)
	}
	stats.FilesScanned = len(files)

	changes, next := s.detect(idx, files, force)

	// Deletions first: a rename surfaces as delete+add, and the delete
	// must not remove the re-added standards.
	for _, ch := range changes {
		if ch.kind != changeDeleted {
			continue
		}
		removed, err := s.store.DeleteStandardsWithSource(ctx, ch.path)
		if err != nil {
			s.logger.Error("sync delete failed", "file", ch.path, "error", err)
			stats.Errors++
			continue
		}
		stats.Deleted++
		stats.StandardsRemoved += removed
	}

	for _, ch := range changes {
		switch ch.kind {
		case changeAdded:
			count, err := s.importFile(ctx, ch.file)
			if err != nil {
				s.logger.Error("sync import failed", "file", ch.path, "error", err)
				stats.Errors++
				delete(next, ch.path)
				continue
			}
			stats.Added++
			stats.StandardsImported += count
			setCount(next, ch.path, count)
		case changeModified:
			removed, err := s.store.DeleteStandardsWithSource(ctx, ch.path)
			if err != nil {
				s.logger.Error("sync replace failed", "file", ch.path, "error", err)
				stats.Errors++
				delete(next, ch.path)
				continue
			}
			stats.StandardsRemoved += removed

			count, err := s.importFile(ctx, ch.file)
			if err != nil {
				s.logger.Error("sync import failed", "file", ch.path, "error", err)
				stats.Errors++
				delete(next, ch.path)
				continue
			}
			stats.Modified++
			stats.StandardsImported += count
			setCount(next, ch.path, count)
		}
	}

	if err := next.save(s.root); err != nil {
		return nil, s.fail(stats, err)
	}

	stats.Duration = s.now().UTC().Sub(stats.StartedAt)

	s.mu.Lock()
	s.lastSync = stats.StartedAt
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("sync completed",
		"files", stats.FilesScanned,
		"added", stats.Added,
		"modified", stats.Modified,
		"deleted", stats.Deleted,
		"imported", stats.StandardsImported,
		"removed", stats.StandardsRemoved,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (s *Syncer) fail(stats *Stats, err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Error("sync failed", "error", err)
	return fmt.Errorf("sync: %w", err)
}

// detect classifies each discovered file against the index and builds
// the next index (hashes refreshed, deleted entries dropped).
func (s *Syncer) detect(idx index, files []discovered, force bool) ([]change, index) {
	next := index{}
	seen := make(map[string]bool, len(files))
	var changes []change

	for _, f := range files {
		seen[f.relPath] = true

		data, err := s.readFile(f.relPath)
		if err != nil {
			s.logger.Warn("unreadable file skipped", "file", f.relPath, "error", err)
			continue
		}
		hash := hashBytes(data)

		entry := FileEntry{
			Path:         f.relPath,
			LastModified: f.modTime,
			ContentHash:  hash,
		}

		prev, tracked := idx[f.relPath]
		switch {
		case !tracked:
			changes = append(changes, change{kind: changeAdded, file: f, path: f.relPath})
		case force || prev.ContentHash != hash || !prev.LastModified.Equal(f.modTime):
			changes = append(changes, change{kind: changeModified, file: f, path: f.relPath})
			entry.StandardsCount = prev.StandardsCount
		default:
			entry.StandardsCount = prev.StandardsCount
		}
		next[f.relPath] = entry
	}

	for path := range idx {
		if !seen[path] {
			changes = append(changes, change{kind: changeDeleted, path: path})
		}
	}
	return changes, next
}

// importFile parses one file and upserts every draft with its source
// path stamped.
func (s *Syncer) importFile(ctx context.Context, f discovered) (int, error) {
	data, err := s.readFile(f.relPath)
	if err != nil {
		return 0, err
	}

	drafts := s.parser.Parse(data, f.language)
	imported := 0
	for i := range drafts {
		if _, err := s.store.ImportStandard(ctx, &drafts[i], f.relPath); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func setCount(idx index, path string, count int) {
	entry := idx[path]
	entry.StandardsCount = count
	idx[path] = entry
}

// Status reports tracked files, standard counts on both sides, and
// whether the tree matches the index.
func (s *Syncer) Status(ctx context.Context) (*Status, error) {
	idx, err := loadIndex(s.root)
	if err != nil {
		return nil, err
	}

	status := &Status{FilesTracked: len(idx)}
	for _, entry := range idx {
		status.StandardsInFiles += entry.StandardsCount
	}

	for _, std := range s.store.FindByCriteria(ctx, graph.Criteria{}) {
		if std.FileSource != "" {
			status.StandardsInDB++
		}
	}

	files, err := s.discover()
	if err != nil {
		return nil, err
	}
	changes, _ := s.detect(idx, files, false)

	s.mu.Lock()
	status.LastSync = s.lastSync
	lastErr := s.lastErr
	s.mu.Unlock()

	status.Synchronized = len(changes) == 0 && lastErr == nil
	return status, nil
}
