package util

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/brogergvhs/bibe/internal/errs"
)

// TempSuffix marks files that are still being written.
const TempSuffix = ".tmp"

// pending holds the temp files this process is writing right now.
var pending = struct {
	sync.Mutex
	paths map[string]struct{}
}{paths: map[string]struct{}{}}

func trackTemp(path string) {
	pending.Lock()
	pending.paths[path] = struct{}{}
	pending.Unlock()
}

func untrackTemp(path string) {
	pending.Lock()
	delete(pending.paths, path)
	pending.Unlock()
}

// AtomicWrite writes data next to path and renames it into place, so a
// partially written file is never visible at path.
func AtomicWrite(path string, data []byte) error {
	tmp := path + TempSuffix
	trackTemp(tmp)
	defer untrackTemp(tmp)

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		_ = os.Remove(tmp)
		return errs.Filesystem("write", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errs.Filesystem("rename", path, err)
	}

	return nil
}

// MkdirAll is os.MkdirAll reporting a filesystem error.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errs.Filesystem("mkdir", path, err)
	}

	return nil
}

// Exists reports whether something is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateCBZ packs the regular files of dir (sorted by name, temp files
// skipped) into a zip archive at output. The archive itself is written
// atomically.
func CreateCBZ(dir, output string) (err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.Filesystem("readdir", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), TempSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return fmt.Errorf("cbz: no pages in %s", dir)
	}

	tmp := output + TempSuffix
	trackTemp(tmp)
	defer untrackTemp(tmp)

	out, err := os.Create(tmp)
	if err != nil {
		return errs.Filesystem("create", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	z := zip.NewWriter(out)
	for _, file := range files {
		if err = addFileToZip(z, file); err != nil {
			return err
		}
	}

	if err = z.Close(); err != nil {
		return errs.Filesystem("write", tmp, err)
	}
	if err = out.Close(); err != nil {
		return errs.Filesystem("close", tmp, err)
	}
	if err = os.Rename(tmp, output); err != nil {
		return errs.Filesystem("rename", output, err)
	}

	return nil
}

func addFileToZip(z *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return errs.Filesystem("open", file, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return errs.Filesystem("stat", file, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(file)
	// Images are already compressed.
	header.Method = zip.Store

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, f); err != nil {
		return errs.Filesystem("write", file, err)
	}

	return nil
}
