package arc

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// archiveFS exposes an archive as a read-only fs.FS with slash paths.
type archiveFS struct {
	arc   *Archive
	files []fsFileInfo
}

type fsFileInfo struct {
	path  string
	index int
	size  uint32
}

// FS returns a filesystem view of the archive. Stored backslash paths become
// slash paths; entries whose path is empty or escapes the root are omitted.
// File contents are extracted on first read.
func (a *Archive) FS() fs.FS {
	files := make([]fsFileInfo, 0, len(a.entries))
	for i, e := range a.entries {
		p, ok := SlashPath(e.Path)
		if !ok {
			a.logger.Warn("Skipping entry with unusable path", "archive", a.name, "index", i, "path", e.Path)
			continue
		}
		files = append(files, fsFileInfo{path: p, index: i, size: e.RealSize})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].path < files[j].path
	})

	// duplicates keep the lowest entry index
	deduped := files[:0]
	for _, f := range files {
		if n := len(deduped); n > 0 && deduped[n-1].path == f.path {
			continue
		}
		deduped = append(deduped, f)
	}

	return &archiveFS{arc: a, files: deduped}
}

func (afs *archiveFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	files := afs.files

	if name == "." {
		return &fsDir{fs: afs, prefix: "", offset: 0}, nil
	}

	idx := sort.Search(len(files), func(i int) bool {
		return files[i].path >= name
	})

	if idx < len(files) && files[idx].path == name {
		return &fsFile{fs: afs, info: &files[idx]}, nil
	}

	dirName := name + "/"
	idx += sort.Search(len(files)-idx, func(i int) bool {
		return files[idx+i].path >= dirName
	})

	if idx < len(files) && strings.HasPrefix(files[idx].path, dirName) {
		return &fsDir{fs: afs, prefix: dirName, offset: idx}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadFile extracts the named file in one step.
func (afs *archiveFS) ReadFile(name string) ([]byte, error) {
	f, err := afs.Open(name)
	if err != nil {
		return nil, err
	}
	file, ok := f.(*fsFile)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fmt.Errorf("is a directory")}
	}
	data, err := afs.arc.Extract(file.info.index)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

type fsFile struct {
	fs     *archiveFS
	info   *fsFileInfo
	reader *bytes.Reader
}

func (f *fsFile) initReader() error {
	if f.reader != nil {
		return nil
	}
	data, err := f.fs.arc.Extract(f.info.index)
	if err != nil {
		return &fs.PathError{Op: "read", Path: f.info.path, Err: err}
	}
	f.reader = bytes.NewReader(data)
	return nil
}

func (f *fsFile) Read(p []byte) (int, error) {
	if err := f.initReader(); err != nil {
		return 0, err
	}
	return f.reader.Read(p)
}

func (f *fsFile) Close() error {
	return nil
}

func (f *fsFile) Stat() (fs.FileInfo, error) {
	return &fsFileStat{f}, nil
}

type fsFileStat struct {
	*fsFile
}

func (s fsFileStat) Name() string       { return path.Base(s.info.path) }
func (s fsFileStat) Size() int64        { return int64(s.info.size) }
func (s fsFileStat) Mode() fs.FileMode  { return 0o444 }
func (s fsFileStat) ModTime() time.Time { return time.Unix(0, 0) }
func (s fsFileStat) IsDir() bool        { return false }
func (s fsFileStat) Sys() any           { return s.info.index }

type fsDir struct {
	fs     *archiveFS
	prefix string
	offset int
}

func (d *fsDir) Read(p []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.prefix, Err: fmt.Errorf("is a directory")}
}

func (d *fsDir) Close() error {
	return nil
}

func (d *fsDir) Stat() (fs.FileInfo, error) {
	return &fsDirStat{d}, nil
}

func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	files := d.fs.files
	prefixLen := len(d.prefix)

	dirents := []fs.DirEntry{}

	for d.offset < len(files) {
		fi := &files[d.offset]
		if !strings.HasPrefix(fi.path, d.prefix) {
			break
		}

		slashIdx := strings.Index(fi.path[prefixLen:], "/")
		if slashIdx != -1 {
			dir := fi.path[:prefixLen+slashIdx]
			dirents = append(dirents, &fsDirEntry{fs: d.fs, path: dir})
			d.offset += sort.Search(len(files)-d.offset, func(i int) bool {
				return files[d.offset+i].path >= dir+"/\xff"
			})
		} else {
			dirents = append(dirents, &fsDirEntry{
				fs:   d.fs,
				path: fi.path,
				file: &fsFile{fs: d.fs, info: fi},
			})
			d.offset++
		}

		if n > 0 && len(dirents) >= n {
			return dirents, nil
		}
	}

	if n > 0 && len(dirents) == 0 {
		return dirents, io.EOF
	}

	return dirents, nil
}

type fsDirStat struct {
	*fsDir
}

func (s fsDirStat) Name() string {
	if s.prefix == "" {
		return "."
	}
	return path.Base(s.prefix)
}
func (s fsDirStat) Size() int64        { return 0 }
func (s fsDirStat) Mode() fs.FileMode  { return 0o555 | fs.ModeDir }
func (s fsDirStat) ModTime() time.Time { return time.Unix(0, 0) }
func (s fsDirStat) IsDir() bool        { return true }
func (s fsDirStat) Sys() any           { return nil }

type fsDirEntry struct {
	fs   *archiveFS
	path string
	file *fsFile
}

func (e *fsDirEntry) Name() string {
	return path.Base(e.path)
}

func (e *fsDirEntry) IsDir() bool {
	return e.file == nil
}

func (e *fsDirEntry) Type() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (e *fsDirEntry) Info() (fs.FileInfo, error) {
	if e.IsDir() {
		return &fsDirStat{&fsDir{fs: e.fs, prefix: e.path + "/", offset: -1}}, nil
	}
	return &fsFileStat{e.file}, nil
}
