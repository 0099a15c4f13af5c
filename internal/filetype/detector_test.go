package filetype

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectPDF(t *testing.T) {
	path := writeFile(t, "doc.pdf", []byte("%PDF-1.4\n%%EOF\n"))
	info, err := New().Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindPDF || !info.Supported() || info.RequiresConversion() {
		t.Errorf("info = %+v, want direct pdf", info)
	}
}

func TestDetectImage(t *testing.T) {
	// Minimal PNG signature plus IHDR start.
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	path := writeFile(t, "scan.png", png)
	info, err := New().Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindImage {
		t.Errorf("kind = %q, want image", info.Kind)
	}
}

func TestDetectZipContainerResolvedByExtension(t *testing.T) {
	zip := []byte{'P', 'K', 0x03, 0x04, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	docx := writeFile(t, "letter.docx", zip)
	info, err := New().Detect(docx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindOffice || !info.RequiresConversion() {
		t.Errorf("docx info = %+v, want office", info)
	}

	plain := writeFile(t, "archive.zip", zip)
	info, err = New().Detect(plain)
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindUnsupported {
		t.Errorf("plain zip kind = %q, want unsupported", info.Kind)
	}
}

func TestDetectTextRoutesThroughConversion(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some plain notes\n"))
	info, err := New().Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Kind != KindOffice {
		t.Errorf("kind = %q, want office (convert to pdf)", info.Kind)
	}
}
