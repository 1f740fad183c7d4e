package syncer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// archiveDirName holds superseded standard versions inside a language
// directory; its contents never re-enter the sync pipeline.
const archiveDirName = "archive"

// discovered is one markdown file found under the standards root.
type discovered struct {
	// relPath is slash-separated and relative to the root.
	relPath string

	// language is the immediate child directory name under the root.
	language string

	modTime time.Time
}

// discover walks the standards root. The first path segment is the
// language; deeper directory names are organizational only. Hidden files
// and directories are skipped, as are archive directories holding
// superseded versions and anything matching an exclude glob.
func (s *Syncer) discover() ([]discovered, error) {
	var files []discovered

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()

		if d.IsDir() {
			if path != s.root && (strings.HasPrefix(name, ".") || name == archiveDirName) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		segments := strings.Split(rel, "/")
		if len(segments) < 2 {
			// Root-level files carry no language directory.
			return nil
		}
		if s.excluded(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, discovered{
			relPath:  rel,
			language: segments[0],
			modTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}
	return files, nil
}

// excluded matches the relative path against the configured glob
// patterns.
func (s *Syncer) excluded(rel string) bool {
	for _, pattern := range s.excludes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// readFile loads a tracked file's bytes.
func (s *Syncer) readFile(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
}
