package convert

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// TestIsArchiveFile tests archive file detection
func TestIsArchiveFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("non-zip extension", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test.css")
		if err := os.WriteFile(filePath, []byte("body { color: red }"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got != false {
			t.Errorf("isArchiveFile() = %v, want false", got)
		}
	})

	t.Run("zip extension but invalid content", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test.zip")
		if err := os.WriteFile(filePath, []byte("not a real zip file"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if got != false {
			t.Errorf("isArchiveFile() = %v, want false", got)
		}
	})

	t.Run("valid zip file", func(t *testing.T) {
		filePath := filepath.Join(tmpDir, "test2.zip")
		zipFile, err := os.Create(filePath)
		if err != nil {
			t.Fatalf("Failed to create zip file: %v", err)
		}
		w := zip.NewWriter(zipFile)
		f, err := w.Create("style.css")
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		f.Write([]byte(".card { color: red }"))
		w.Close()
		zipFile.Close()

		got, err := isArchiveFile(filePath)
		if err != nil {
			t.Errorf("isArchiveFile() error = %v", err)
		}
		if !got {
			t.Error("isArchiveFile() = false, want true")
		}
	})
}

// TestIsArchiveFile_NonExistent tests with non-existent file
func TestIsArchiveFile_NonExistent(t *testing.T) {
	_, err := isArchiveFile("/nonexistent/file.zip")
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

// TestDetectUTF tests UTF encoding detection
func TestDetectUTF(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want srcEncoding
	}{
		{
			name: "UTF-8 BOM",
			buf:  []byte{0xEF, 0xBB, 0xBF, 0x00},
			want: encUTF8,
		},
		{
			name: "UTF-16 Big Endian BOM",
			buf:  []byte{0xFE, 0xFF, 0x00, 0x00},
			want: encUTF16BigEndian,
		},
		{
			name: "UTF-16 Little Endian BOM",
			buf:  []byte{0xFF, 0xFE, 0x01, 0x00}, // Different from UTF-32LE
			want: encUTF16LittleEndian,
		},
		{
			name: "UTF-32 Big Endian BOM",
			buf:  []byte{0x00, 0x00, 0xFE, 0xFF},
			want: encUTF32BigEndian,
		},
		{
			name: "UTF-32 Little Endian BOM",
			buf:  []byte{0xFF, 0xFE, 0x00, 0x00},
			want: encUTF32LittleEndian,
		},
		{
			name: "No BOM",
			buf:  []byte{0x00, 0x01, 0x02, 0x03},
			want: encUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectUTF(tt.buf)
			if got != tt.want {
				t.Errorf("detectUTF() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestBOMDetectionFunctions tests individual BOM detection functions
func TestBOMDetectionFunctions(t *testing.T) {
	t.Run("isUTF8BOM3", func(t *testing.T) {
		if !isUTF8BOM3([]byte{0xEF, 0xBB, 0xBF}) {
			t.Error("Expected true for UTF-8 BOM")
		}
		if isUTF8BOM3([]byte{0x00, 0x00, 0x00}) {
			t.Error("Expected false for non-BOM")
		}
	})

	t.Run("isUTF16BigEndianBOM2", func(t *testing.T) {
		if !isUTF16BigEndianBOM2([]byte{0xFE, 0xFF}) {
			t.Error("Expected true for UTF-16 BE BOM")
		}
		if isUTF16BigEndianBOM2([]byte{0xFF, 0xFE}) {
			t.Error("Expected false for UTF-16 LE BOM")
		}
	})

	t.Run("isUTF16LittleEndianBOM2", func(t *testing.T) {
		if !isUTF16LittleEndianBOM2([]byte{0xFF, 0xFE}) {
			t.Error("Expected true for UTF-16 LE BOM")
		}
		if isUTF16LittleEndianBOM2([]byte{0xFE, 0xFF}) {
			t.Error("Expected false for UTF-16 BE BOM")
		}
	})

	t.Run("isUTF32BigEndianBOM4", func(t *testing.T) {
		if !isUTF32BigEndianBOM4([]byte{0x00, 0x00, 0xFE, 0xFF}) {
			t.Error("Expected true for UTF-32 BE BOM")
		}
		if isUTF32BigEndianBOM4([]byte{0xFF, 0xFE, 0x00, 0x00}) {
			t.Error("Expected false for UTF-32 LE BOM")
		}
	})

	t.Run("isUTF32LittleEndianBOM4", func(t *testing.T) {
		if !isUTF32LittleEndianBOM4([]byte{0xFF, 0xFE, 0x00, 0x00}) {
			t.Error("Expected true for UTF-32 LE BOM")
		}
		if isUTF32LittleEndianBOM4([]byte{0x00, 0x00, 0xFE, 0xFF}) {
			t.Error("Expected false for UTF-32 BE BOM")
		}
	})
}

// TestIsSourceFile tests stylesheet and document source detection
func TestIsSourceFile(t *testing.T) {
	tmpDir := t.TempDir()

	cssContent := []byte(".card { color: red }")

	tests := []struct {
		name     string
		filename string
		kind     string
		content  []byte
		wantOk   bool
		wantEnc  srcEncoding
	}{
		{
			name:     "plain stylesheet",
			filename: "style.css",
			kind:     KindStylesheet,
			content:  cssContent,
			wantOk:   true,
			wantEnc:  encUnknown,
		},
		{
			name:     "stylesheet with UTF-8 BOM",
			filename: "style-bom.css",
			kind:     KindStylesheet,
			content:  append([]byte{0xEF, 0xBB, 0xBF}, cssContent...),
			wantOk:   true,
			wantEnc:  encUTF8,
		},
		{
			name:     "uppercase extension",
			filename: "style.CSS",
			kind:     KindStylesheet,
			content:  cssContent,
			wantOk:   true,
			wantEnc:  encUnknown,
		},
		{
			name:     "wrong extension for stylesheets",
			filename: "style.txt",
			kind:     KindStylesheet,
			content:  cssContent,
			wantOk:   false,
			wantEnc:  encUnknown,
		},
		{
			name:     "document",
			filename: "page.html",
			kind:     KindDocument,
			content:  []byte("<!DOCTYPE html><html><body></body></html>"),
			wantOk:   true,
			wantEnc:  encUnknown,
		},
		{
			name:     "xhtml document",
			filename: "page.xhtml",
			kind:     KindDocument,
			content:  []byte("<html><body></body></html>"),
			wantOk:   true,
			wantEnc:  encUnknown,
		},
		{
			name:     "stylesheet is not a document",
			filename: "other.css",
			kind:     KindDocument,
			content:  cssContent,
			wantOk:   false,
			wantEnc:  encUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.filename)
			if err := os.WriteFile(filePath, tt.content, 0644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			gotOk, gotEnc, err := isSourceFile(filePath, tt.kind)
			if err != nil {
				t.Errorf("isSourceFile() error = %v", err)
				return
			}
			if gotOk != tt.wantOk {
				t.Errorf("isSourceFile() ok = %v, want %v", gotOk, tt.wantOk)
			}
			if gotEnc != tt.wantEnc {
				t.Errorf("isSourceFile() encoding = %v, want %v", gotEnc, tt.wantEnc)
			}
		})
	}
}

// TestIsSourceFile_NonExistent tests with non-existent file
func TestIsSourceFile_NonExistent(t *testing.T) {
	_, _, err := isSourceFile("/nonexistent/style.css", KindStylesheet)
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

// TestIsSourceInArchive tests source detection for zip members
func TestIsSourceInArchive(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "test.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	w := zip.NewWriter(zipFile)
	entries := map[string][]byte{
		"style.css":     []byte(".card { color: red }"),
		"style-bom.css": append([]byte{0xEF, 0xBB, 0xBF}, []byte(".card { color: red }")...),
		"page.html":     []byte("<html></html>"),
		"notes.txt":     []byte("nothing to see"),
	}
	for name, data := range entries {
		f, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatalf("Failed to write to zip: %v", err)
		}
	}
	w.Close()
	zipFile.Close()

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	defer r.Close()

	wantByName := map[string]struct {
		kind    string
		ok      bool
		enc     srcEncoding
	}{
		"style.css":     {KindStylesheet, true, encUnknown},
		"style-bom.css": {KindStylesheet, true, encUTF8},
		"page.html":     {KindDocument, true, encUnknown},
		"notes.txt":     {KindStylesheet, false, encUnknown},
	}
	for _, f := range r.File {
		want := wantByName[f.FileHeader.Name]
		ok, enc, err := isSourceInArchive(f, want.kind)
		if err != nil {
			t.Errorf("isSourceInArchive(%s) error = %v", f.FileHeader.Name, err)
			continue
		}
		if ok != want.ok || enc != want.enc {
			t.Errorf("isSourceInArchive(%s) = %v, %v, want %v, %v", f.FileHeader.Name, ok, enc, want.ok, want.enc)
		}
	}
}

func encodeWithTransformer(t *testing.T, data []byte, encoder transform.Transformer) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, encoder)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("finalize encoded sample: %v", err)
	}
	return buf.Bytes()
}

// TestSelectReader tests that every recognized encoding round-trips back to
// plain UTF-8 without a BOM
func TestSelectReader(t *testing.T) {
	sample := []byte(`.card { content: "через тернии" }`)

	tests := []struct {
		name string
		enc  srcEncoding
		data []byte
	}{
		{"no BOM", encUnknown, sample},
		{"UTF-8 BOM", encUTF8, append([]byte{0xEF, 0xBB, 0xBF}, sample...)},
		{"UTF-16 BE", encUTF16BigEndian, encodeWithTransformer(t, sample, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder())},
		{"UTF-16 LE", encUTF16LittleEndian, encodeWithTransformer(t, sample, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder())},
		{"UTF-32 BE", encUTF32BigEndian, encodeWithTransformer(t, sample, utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewEncoder())},
		{"UTF-32 LE", encUTF32LittleEndian, encodeWithTransformer(t, sample, utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewEncoder())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectUTF(tt.data); got != tt.enc {
				t.Fatalf("detectUTF() = %v, want %v", got, tt.enc)
			}
			out, err := io.ReadAll(selectReader(bytes.NewReader(tt.data), tt.enc))
			if err != nil {
				t.Fatalf("selectReader() read error = %v", err)
			}
			if !bytes.Equal(out, sample) {
				t.Errorf("selectReader() = %q, want %q", out, sample)
			}
		})
	}
}

// TestDecodeText tests the one-shot decoding convenience
func TestDecodeText(t *testing.T) {
	sample := `.card { color: red }`
	data := encodeWithTransformer(t, []byte(sample), unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder())

	got, err := decodeText(data)
	if err != nil {
		t.Fatalf("decodeText() error = %v", err)
	}
	if got != sample {
		t.Errorf("decodeText() = %q, want %q", got, sample)
	}
}
