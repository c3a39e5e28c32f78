// Package archive reads stylesheet and document sources out of zip
// containers. It wraps "archive/zip" with prefix walking and single member
// access, rejecting entry names that could climb out of the archive root.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// WalkFunc is called by Walk for every matched archive member. The archive
// argument is the container path passed to Walk, file is the matched member.
// Returning an error stops the walk.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits every regular file in the archive whose name starts with
// pattern, in archive order. An empty pattern visits everything. Any member
// with an absolute name or a ".." component fails the whole walk, such
// archives cannot be trusted.
func Walk(archive, pattern string, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, pattern) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile returns the content of a single archive member. The name is a
// slash path relative to the archive root, which is how linked stylesheet
// references resolve against a document member.
func ReadFile(archive, name string) ([]byte, error) {
	if !isSafePath(name) {
		return nil, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// isSafePath rejects member names that could escape the extraction root.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
