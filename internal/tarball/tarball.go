// tarball measures the apparent on-disk footprint of the disk image carried
// inside a (optionally gzip-compressed) tarball, without extracting it. The
// measurement drives the minimum size of the EBS volume the image is written
// onto.
package tarball

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
)

const gib = 1 << 30

var (
	ErrOpen    = fmt.Errorf("failed to open image tarball")
	ErrRead    = fmt.Errorf("failed to read image tarball")
	ErrNoImage = fmt.Errorf("image tarball contains no regular files")
)

// MeasuredGiB returns the summed apparent size of all regular files within
// the tarball at 'path', rounded up to whole gibibytes.
//
// Apparent size is the tar header size, which for sparse raw disk images is
// the full image size rather than the allocated blocks. That is the number
// that matters: the destination volume must hold the written-out image.
func MeasuredGiB(path string) (int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()

	var payload io.Reader = f
	gz, err := gzip.NewReader(f)
	switch {
	case err == nil:
		defer gz.Close()
		payload = gz
	case errors.Is(err, gzip.ErrHeader), errors.Is(err, io.ErrUnexpectedEOF):
		// Plain uncompressed tar. Rewind past the sniffed bytes.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrRead, err)
		}
	default:
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}

	var total int64
	tr := tar.NewReader(payload)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrRead, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			total += hdr.Size
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoImage, path)
	}
	return ceilGiB(total), nil
}

func ceilGiB(n int64) int32 {
	return int32((n + gib - 1) / gib)
}
