package ocr

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const docXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Cihaz Reçetesi</w:t></w:r></w:p>
    <w:p><w:r><w:t>Ali Yılmaz 12345678901</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestLocalExtractDOCX(t *testing.T) {
	data := buildDOCX(t, docXML)
	got, err := LocalExtractor{}.Extract(context.Background(), data, mimeDOCX, "recete.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.Text, "Cihaz Reçetesi") || !strings.Contains(got.Text, "Ali Yılmaz") {
		t.Errorf("text = %q, expected both paragraphs", got.Text)
	}
	if got.Confidence != localConfidence {
		t.Errorf("confidence = %v, expected %v", got.Confidence, localConfidence)
	}
}

// Browsers report OOXML uploads as application/zip; the container content
// decides.
func TestLocalExtractZipSniffedAsDOCX(t *testing.T) {
	data := buildDOCX(t, docXML)
	got, err := LocalExtractor{}.Extract(context.Background(), data, "application/zip", "upload.bin")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.Text, "Cihaz Reçetesi") {
		t.Errorf("text = %q, expected document content", got.Text)
	}
}

func TestLocalExtractUnsupportedMime(t *testing.T) {
	_, err := LocalExtractor{}.Extract(context.Background(), []byte("hi"), "image/tiff", "scan.tiff")
	if err == nil {
		t.Fatal("expected an error for an unsupported mime type")
	}
	if !strings.Contains(err.Error(), "image/tiff") {
		t.Errorf("error %q should name the mime type", err)
	}
}

func TestLocalExtractEmptyTextIsZeroConfidence(t *testing.T) {
	data := buildDOCX(t, `<w:document xmlns:w="x"><w:body></w:body></w:document>`)
	got, err := LocalExtractor{}.Extract(context.Background(), data, mimeDOCX, "bos.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Text != "" || got.Confidence != 0 {
		t.Errorf("got %+v, expected empty text with zero confidence", got)
	}
}

func TestHTTPExtractorRetriesThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if got := r.Header.Get("X-File-Name"); got != "tarama.pdf" {
			t.Errorf("X-File-Name = %q", got)
		}
		fmt.Fprint(w, `{"text":"odyogram sonucu","confidence":0.82}`)
	}))
	t.Cleanup(server.Close)

	e := NewHTTPExtractor(server.URL, "")
	got, err := e.Extract(context.Background(), []byte("scan"), "application/pdf", "tarama.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if calls != 2 {
		t.Errorf("engine saw %d calls, expected 2", calls)
	}
	if got.Text != "odyogram sonucu" || got.Confidence != 0.82 {
		t.Errorf("got %+v", got)
	}
}

func TestHTTPExtractorClientErrorIsFinal(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnsupportedMediaType)
	}))
	t.Cleanup(server.Close)

	e := NewHTTPExtractor(server.URL, "")
	if _, err := e.Extract(context.Background(), []byte("scan"), "image/bmp", "x.bmp"); err == nil {
		t.Fatal("expected an error for a 415 answer")
	}
	if calls != 1 {
		t.Errorf("engine saw %d calls, expected no retry on 4xx", calls)
	}
}
