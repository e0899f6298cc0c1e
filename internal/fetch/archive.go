package fetch

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// sniffLen is how many leading bytes are used to detect the format.
const sniffLen = 3072

// ErrUnsafePath is returned for archive entries that would land outside
// the destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks the tar archive at name, optionally gzip, bzip2 or
// zstd compressed, into dest. It returns the archive's single top-level
// directory, or dest when the entries do not share one.
func Extract(name, dest string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, closeFn, err := decompress(bufio.NewReaderSize(f, sniffLen))
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	defer closeFn()

	top, err := untar(r, dest)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if top == "" {
		return dest, nil
	}
	return filepath.Join(dest, top), nil
}

func decompress(br *bufio.Reader) (io.Reader, func(), error) {
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, nil, err
	}
	mt := mimetype.Detect(head)
	switch {
	case mt.Is("application/gzip"):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case mt.Is("application/zstd"):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case mt.Is("application/x-bzip2"):
		return bzip2.NewReader(br), func() {}, nil
	case mt.Is("application/x-tar"):
		return br, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported archive format %s", mt.String())
}

func untar(r io.Reader, dest string) (string, error) {
	tr := tar.NewReader(r)
	top, shared := "", true
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if name == "." || filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			if name == "." {
				continue
			}
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}
		first, _, _ := strings.Cut(filepath.ToSlash(name), "/")
		switch {
		case top == "" && shared:
			top = first
		case first != top:
			shared = false
		}

		target := filepath.Join(dest, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			link := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if rel, err := filepath.Rel(dest, link); err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(hdr.Linkname) {
				return "", fmt.Errorf("%w: %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return "", err
			}
		}
	}
	if !shared {
		return "", nil
	}
	if fi, err := os.Stat(filepath.Join(dest, top)); err != nil || !fi.IsDir() {
		return "", nil
	}
	return top, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
