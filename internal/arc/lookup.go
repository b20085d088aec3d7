package arc

import (
	"errors"
	"hash/crc32"
	"iter"
	"path"
	"strings"
)

// ErrNotFound is returned when a path has no entry in the archive.
var ErrNotFound = errors.New("arc: entry not found")

// NormalizePath lowercases p and converts it to the container's backslash
// separator, the form used for lookups and asset keys.
func NormalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, "/", `\`))
}

// AssetKey is the CRC-32 (IEEE) of the normalized path. The game's global
// asset index keys its entries this way.
func AssetKey(p string) uint32 {
	return crc32.ChecksumIEEE([]byte(NormalizePath(p)))
}

// SlashPath converts a stored backslash path to a cleaned slash path
// relative to the archive root, suitable for fs.FS and for joining under a
// host directory. It returns false when the path is empty or escapes the root.
func SlashPath(p string) (string, bool) {
	s := strings.ReplaceAll(p, `\`, "/")
	s = strings.TrimLeft(s, "/")
	if s == "" {
		return "", false
	}
	s = path.Clean(s)
	if s == "." || s == ".." || strings.HasPrefix(s, "../") {
		return "", false
	}
	return s, true
}

// Find returns the index of the entry matching name, ignoring case and
// separator style. The first of several matching entries wins.
func (a *Archive) Find(name string) (int, bool) {
	i, ok := a.lookup[NormalizePath(name)]
	return i, ok
}

// Entries iterates over all entries in table order.
func (a *Archive) Entries() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i, e := range a.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Match returns the indices of entries whose normalized path contains substr
// (also normalized). An empty substr matches everything.
func (a *Archive) Match(substr string) []int {
	needle := NormalizePath(substr)
	var out []int
	for i, e := range a.entries {
		if strings.Contains(NormalizePath(e.Path), needle) {
			out = append(out, i)
		}
	}
	return out
}
