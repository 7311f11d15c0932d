// Package xbrl implements the annual-report pipeline over already-downloaded
// archive bytes: hardened ZIP extraction, iXBRL fact parsing, and field
// mapping into the canonical FinancialPeriod / XBRLFact shapes persisted by
// the Store.
package xbrl

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	maxUncompressedBytes = 50 * 1024 * 1024 // 50 MiB
	maxCompressionRatio  = 100
)

var (
	// ErrZipTooLarge is returned when the archive's declared uncompressed
	// size exceeds maxUncompressedBytes.
	ErrZipTooLarge = errors.New("xbrl: zip exceeds maximum uncompressed size")
	// ErrZipBomb is returned when an entry's compression ratio exceeds
	// maxCompressionRatio.
	ErrZipBomb = errors.New("xbrl: zip entry exceeds maximum compression ratio")
	// ErrUnsafeEntryName is returned for a path-traversal or otherwise
	// disallowed entry name.
	ErrUnsafeEntryName = errors.New("xbrl: unsafe zip entry name")
	// ErrNoDocument is returned when no .xhtml/.html entry (nor a nested
	// archive containing one) could be found.
	ErrNoDocument = errors.New("xbrl: no xhtml/html document found in archive")
)

var forbiddenNameChars = []string{":", "*", "?", "\"", "<", ">", "|"}

// validateEntryName rejects absolute paths, traversal sequences, and a
// fixed set of characters disallowed on common filesystems. Entries under
// __MACOSX are valid names but the caller skips them separately.
func validateEntryName(name string) error {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return fmt.Errorf("%w: %q begins with a path separator", ErrUnsafeEntryName, name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains a traversal sequence", ErrUnsafeEntryName, name)
	}
	for _, c := range forbiddenNameChars {
		if strings.Contains(name, c) {
			return fmt.Errorf("%w: %q contains forbidden character %q", ErrUnsafeEntryName, name, c)
		}
	}
	return nil
}

func isMacOSXEntry(name string) bool {
	return strings.HasPrefix(name, "__MACOSX")
}

// safeZipReader wraps archive/zip.Reader with the size/ratio/name checks
// applied up front, before any entry is opened for reading.
type safeZipReader struct {
	reader *zip.Reader
}

func newSafeZipReader(data []byte) (*safeZipReader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("xbrl: open zip: %w", err)
	}

	var totalUncompressed uint64
	for _, f := range r.File {
		if isMacOSXEntry(f.Name) {
			continue
		}
		if err := validateEntryName(f.Name); err != nil {
			return nil, err
		}
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > maxUncompressedBytes {
			return nil, ErrZipTooLarge
		}
		if f.CompressedSize64 > 0 && f.UncompressedSize64 > maxCompressionRatio*f.CompressedSize64 {
			ratio := float64(f.UncompressedSize64) / float64(f.CompressedSize64)
			return nil, fmt.Errorf("%w: entry %q ratio %.1f:1", ErrZipBomb, f.Name, ratio)
		}
	}

	return &safeZipReader{reader: r}, nil
}

// findHTMLDocument returns the bytes of the first .xhtml or .html entry,
// ignoring __MACOSX entries. If none is found but a nested .zip entry is
// present, it is opened and searched once (no further nesting).
func findHTMLDocument(data []byte, depth int) ([]byte, error) {
	zr, err := newSafeZipReader(data)
	if err != nil {
		return nil, err
	}

	for _, f := range zr.reader.File {
		if isMacOSXEntry(f.Name) {
			continue
		}
		lower := strings.ToLower(f.Name)
		if strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") {
			return readZipEntry(f)
		}
	}

	if depth >= 1 {
		return nil, ErrNoDocument
	}

	for _, f := range zr.reader.File {
		if isMacOSXEntry(f.Name) {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			nested, err := readZipEntry(f)
			if err != nil {
				return nil, err
			}
			return findHTMLDocument(nested, depth+1)
		}
	}

	return nil, ErrNoDocument
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("xbrl: open entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	limited := &bytes.Buffer{}
	// The total-size check in newSafeZipReader bounds this read by the
	// entries' declared sizes; archive/zip itself fails the read if an
	// entry inflates past its declared size.
	if _, err := limited.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("xbrl: read entry %q: %w", f.Name, err)
	}
	return limited.Bytes(), nil
}

// ExtractDocument validates and extracts the first HTML/XHTML document
// from a ZIP archive's raw bytes, per the ZIP safety rules.
func ExtractDocument(zipData []byte) ([]byte, error) {
	return findHTMLDocument(zipData, 0)
}
