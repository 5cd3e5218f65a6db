package pack

import (
	"path/filepath"
	"strings"
)

// Predicate reports whether the file at an absolute path belongs in an archive.
type Predicate func(path string) bool

// Extensions that never ship in a Release archive.
var releaseExcludedExt = []string{".pdb", ".iobj", ".ipdb", ".exp", ".lib"}

const symbolExt = ".pdb"

// PredicateFor returns the inclusion rule of kind.
func PredicateFor(kind Kind) Predicate {
	switch kind {
	case Release:
		return includeRelease
	case Symbols:
		return includeSymbols
	}
	return includeAll
}

func includeAll(string) bool { return true }

func includeRelease(path string) bool {
	if hasExt(path, releaseExcludedExt...) {
		return false
	}
	return !inDebugOutput(dirSegments(path))
}

func includeSymbols(path string) bool {
	if !hasExt(path, symbolExt) {
		return false
	}
	dirs := dirSegments(path)
	return !inDebugOutput(dirs) && !hasSegment(dirs, "obj") && !hasSegment(dirs, "tests")
}

func hasExt(path string, exts ...string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// dirSegments splits the directory part of path into its elements.
func dirSegments(path string) []string {
	dir := filepath.ToSlash(filepath.Dir(filepath.Clean(path)))
	var out []string
	for _, s := range strings.Split(dir, "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

func hasSegment(dirs []string, name string) bool {
	for _, d := range dirs {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// inDebugOutput reports a "bin" directory directly followed by a debug
// configuration directory such as Debug or Debug64.
func inDebugOutput(dirs []string) bool {
	for i := 0; i+1 < len(dirs); i++ {
		if strings.EqualFold(dirs[i], "bin") && hasPrefixFold(dirs[i+1], "debug") {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
