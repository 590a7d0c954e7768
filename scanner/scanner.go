// Package scanner lists the source files of a Move package.
package scanner

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gnolang/moveaudit/internal/trie"
)

// buildDir holds compiler output, including copies of dependency sources.
const buildDir = "build"

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions []string
	ignore     *trie.Trie
}

func New(rootDir string, extensions ...string) *Scanner {
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
		ignore:     trie.New(),
	}
}

// Ignore excludes paths, and everything below them, from the scan.
// Relative paths are resolved against the working directory.
func (s *Scanner) Ignore(paths ...string) *Scanner {
	for _, p := range paths {
		s.ignore.Insert(absPath(p))
	}
	return s
}

// Ignored reports whether path was excluded with Ignore.
func (s *Scanner) Ignored(path string) bool {
	return s.ignore.Covers(absPath(path))
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Scan walks the root directory and returns the target files sorted by
// path. Hidden directories and build output are skipped.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.rootDir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if s.Ignored(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.isTargetFile(path) || s.Ignored(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	slices.SortFunc(files, func(a, b FileInfo) int { return strings.Compare(a.Path, b.Path) })
	return files, err
}

func skipDir(name string) bool {
	return name == buildDir || strings.HasPrefix(name, ".")
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}

	ext := filepath.Ext(path)
	return slices.Contains(s.extensions, ext)
}
