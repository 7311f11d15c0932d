package xbrl

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %q: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocumentFindsHTMLEntry(t *testing.T) {
	data := buildZip(t, map[string]string{
		"report.xhtml": "<html>hello</html>",
		"meta.xml":     "<meta/>",
	})

	doc, err := ExtractDocument(data)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if string(doc) != "<html>hello</html>" {
		t.Fatalf("got %q", doc)
	}
}

func TestExtractDocumentSkipsMacOSXEntries(t *testing.T) {
	data := buildZip(t, map[string]string{
		"__MACOSX/._report.xhtml": "junk",
		"report.xhtml":            "<html>real</html>",
	})

	doc, err := ExtractDocument(data)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if string(doc) != "<html>real</html>" {
		t.Fatalf("got %q", doc)
	}
}

func TestExtractDocumentRecursesOneLevelIntoNestedZip(t *testing.T) {
	inner := buildZip(t, map[string]string{"report.xhtml": "<html>nested</html>"})
	outer := buildZip(t, map[string]string{"bundle.zip": string(inner)})

	doc, err := ExtractDocument(outer)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if string(doc) != "<html>nested</html>" {
		t.Fatalf("got %q", doc)
	}
}

func TestExtractDocumentRejectsDeeperNesting(t *testing.T) {
	level2 := buildZip(t, map[string]string{"report.xhtml": "<html>too deep</html>"})
	level1 := buildZip(t, map[string]string{"level2.zip": string(level2)})
	level0 := buildZip(t, map[string]string{"level1.zip": string(level1)})

	_, err := ExtractDocument(level0)
	if err == nil {
		t.Fatal("expected an error for nesting beyond one level")
	}
}

func TestExtractDocumentRejectsUnsafeEntryNames(t *testing.T) {
	cases := []string{"../escape.xhtml", "/absolute.xhtml", `a\b.xhtml`, "weird:name.xhtml"}
	for _, name := range cases {
		if err := validateEntryName(name); err == nil {
			t.Errorf("validateEntryName(%q) = nil, want error", name)
		}
	}
}

func TestExtractDocumentReturnsErrNoDocumentWhenAbsent(t *testing.T) {
	data := buildZip(t, map[string]string{"notes.txt": "nothing here"})

	_, err := ExtractDocument(data)
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("got %v, want ErrNoDocument", err)
	}
}

func TestNewSafeZipReaderAcceptsNormalArchive(t *testing.T) {
	data := buildZip(t, map[string]string{"report.xhtml": "<html>ok</html>"})

	r, err := newSafeZipReader(data)
	if err != nil {
		t.Fatalf("unexpected error on legitimate small archive: %v", err)
	}
	if r == nil {
		t.Fatal("expected a reader")
	}
}

func TestNewSafeZipReaderRejectsOversizedRatio(t *testing.T) {
	// A highly compressible payload well under the 50 MiB size cap trips
	// the ratio guard instead: DEFLATE on repeated input routinely exceeds
	// 100:1.
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: "bomb.xhtml", Method: zip.Deflate})
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	payload := bytes.Repeat([]byte("a"), 10*1024*1024)
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = newSafeZipReader(buf.Bytes())
	if err == nil {
		t.Fatal("expected a compression-ratio error")
	}
}
