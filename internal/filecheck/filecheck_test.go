package filecheck

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestAllowedExt(t *testing.T) {
	allowed := []string{".pdf", ".PDF", ".docx", ".DocX", ".txt", ".TXT"}
	for _, ext := range allowed {
		if !AllowedExt(ext) {
			t.Errorf("AllowedExt(%q) = false, want true", ext)
		}
	}
	rejected := []string{".exe", ".doc", ".md", ".pdf.exe", "", ".tx"}
	for _, ext := range rejected {
		if AllowedExt(ext) {
			t.Errorf("AllowedExt(%q) = true, want false", ext)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("report.pdf", 1024); err != nil {
		t.Errorf("valid file rejected: %v", err)
	}
	if err := Validate("Report.PDF", 1024); err != nil {
		t.Errorf("extension check should be case-insensitive: %v", err)
	}
	if err := Validate("setup.exe", 1024); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
	if err := Validate("big.txt", MaxUploadSize); !errors.Is(err, ErrTooLarge) {
		t.Errorf("size at the limit should be rejected, got %v", err)
	}
	if err := Validate("ok.txt", MaxUploadSize-1); err != nil {
		t.Errorf("size just under the limit should pass, got %v", err)
	}
}

func TestSniff_TextFile(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("perfectly ordinary text\nwith lines\n"))
	if err := Sniff(path); err != nil {
		t.Errorf("plain text rejected: %v", err)
	}
}

func TestSniff_TextWithNulBytes(t *testing.T) {
	path := writeFile(t, "fake.txt", []byte("starts fine\x00then binary"))
	if err := Sniff(path); err == nil {
		t.Error("NUL bytes should fail the text sniff")
	}
}

func TestSniff_GarbagePDF(t *testing.T) {
	path := writeFile(t, "renamed.pdf", []byte("this is not a pdf at all"))
	if err := Sniff(path); err == nil {
		t.Error("garbage content should fail the PDF sniff")
	}
}

func TestSniff_GarbageDOCX(t *testing.T) {
	path := writeFile(t, "renamed.docx", []byte("not a zip archive"))
	if err := Sniff(path); err == nil {
		t.Error("garbage content should fail the DOCX sniff")
	}
}

func TestSniff_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "notes.md", []byte("# heading"))
	if err := Sniff(path); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestSniff_LargeTextOnlyReadsHead(t *testing.T) {
	// NUL past the 8 KiB window is out of scope for the sniff.
	content := strings.Repeat("a", 9<<10) + "\x00"
	path := writeFile(t, "long.txt", []byte(content))
	if err := Sniff(path); err != nil {
		t.Errorf("NUL beyond the sniff window should pass: %v", err)
	}
}
