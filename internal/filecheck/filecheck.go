// Package filecheck validates files before they are offered for upload. The
// backend re-validates everything; this layer exists to fail fast on the
// obvious cases without burning an upload.
package filecheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// MaxUploadSize is the hard size ceiling; files at or above it are rejected.
const MaxUploadSize = 200 << 20 // 200 MiB

var (
	ErrUnsupportedType = errors.New("unsupported file type (want .pdf, .docx or .txt)")
	ErrTooLarge        = fmt.Errorf("file exceeds the %d MiB limit", MaxUploadSize>>20)
)

// AllowedExt reports whether ext (with leading dot, any case) is accepted.
func AllowedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".txt":
		return true
	}
	return false
}

// Validate checks extension and size without touching file content.
func Validate(filename string, size int64) error {
	if !AllowedExt(filepath.Ext(filename)) {
		return ErrUnsupportedType
	}
	if size >= MaxUploadSize {
		return ErrTooLarge
	}
	return nil
}

// Sniff opens the file and verifies its content matches the extension, so a
// renamed binary doesn't get as far as the backend.
func Sniff(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return sniffPDF(path)
	case ".docx":
		return sniffDOCX(path)
	case ".txt":
		return sniffText(path)
	default:
		return ErrUnsupportedType
	}
}

func sniffPDF(path string) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("not a readable PDF: %w", err)
	}
	defer f.Close()
	if r.NumPage() < 1 {
		return errors.New("PDF has no pages")
	}
	return nil
}

func sniffDOCX(path string) error {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return fmt.Errorf("not a readable DOCX: %w", err)
	}
	r.Close()
	return nil
}

// sniffText rejects files with NUL bytes in the first 8 KiB; real text files
// don't have them, renamed binaries usually do.
func sniffText(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 8<<10)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	if bytes.IndexByte(buf[:n], 0) >= 0 {
		return errors.New("file contains binary data, not text")
	}
	return nil
}
