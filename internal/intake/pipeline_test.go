package intake

import (
	"context"
	"errors"
	"strings"
	"testing"

	"intake-backend/internal/docstore"
	"intake-backend/internal/ocr"
	"intake-backend/internal/registry"
	"intake-backend/internal/shared/storage/kv"
)

// stubExtractor maps file names to canned text or errors.
type stubExtractor struct {
	texts map[string]string
	errs  map[string]error
}

func (s stubExtractor) Extract(ctx context.Context, data []byte, mimeType, fileName string) (ocr.Result, error) {
	if err, ok := s.errs[fileName]; ok {
		return ocr.Result{}, err
	}
	return ocr.Result{Text: s.texts[fileName], Confidence: 0.9}, nil
}

func newTestPipeline(extractor ocr.Extractor, candidates []registry.Candidate, storeCfg docstore.Config) (*Pipeline, *docstore.Manager) {
	docs := docstore.NewManager(kv.NewMemoryStore(), storeCfg)
	p := NewPipeline(
		extractor,
		registry.NewMemorySource(candidates),
		registry.NewMatcher(registry.MatcherConfig{}),
		docs,
		nil,
		Config{},
	)
	return p, docs
}

var testPatients = []registry.Candidate{
	{ID: "p1", DisplayName: "Ali Yılmaz", NationalID: "12345678901", Phone: "0532 111 22 33"},
	{ID: "p2", DisplayName: "Ayşe Demir", NationalID: "98765432109"},
}

func TestRunBatchIsolatesFileFailure(t *testing.T) {
	extractor := stubExtractor{
		texts: map[string]string{
			"recete1.pdf": "Cihaz Reçetesi\nAli Yılmaz\nTC 12345678901",
			"recete3.pdf": "Pil Reçetesi\nAyşe Demir\nTC 98765432109",
		},
		errs: map[string]error{
			"bozuk.pdf": errors.New("pdf is corrupted"),
		},
	}
	p, docs := newTestPipeline(extractor, testPatients, docstore.Config{LimitBytes: 1 << 20})

	files := []IngestedFile{
		{Name: "recete1.pdf", MimeType: "application/pdf", Data: []byte("pdf-1")},
		{Name: "bozuk.pdf", MimeType: "application/pdf", Data: []byte("pdf-2")},
		{Name: "recete3.pdf", MimeType: "application/pdf", Data: []byte("pdf-3")},
	}

	var progressed []Progress
	report, err := p.Run(context.Background(), "batch-1", files, func(pr Progress) {
		progressed = append(progressed, pr)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Total != 3 || report.Processed != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v, expected 3 processed, 2 succeeded, 1 failed", report)
	}
	if report.Outcomes[1].Stage != StageError || !strings.Contains(report.Outcomes[1].Error, "pdf is corrupted") {
		t.Errorf("failed outcome = %+v, expected the extraction error", report.Outcomes[1])
	}
	if report.Outcomes[0].Stage != StagePersisted || report.Outcomes[2].Stage != StagePersisted {
		t.Errorf("outcomes = %+v, expected files 1 and 3 persisted", report.Outcomes)
	}
	if report.CompressedCount != 2 || report.CompressedBytes == 0 {
		t.Errorf("compression stats = %d/%d, expected 2 artifacts", report.CompressedCount, report.CompressedBytes)
	}

	// Submission order survives into the recency list, the failed file
	// leaves an error-status record, and progress counts never decrease.
	recent, err := docs.ListRecent(context.Background())
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 3 || recent[0].FileName != "recete3.pdf" || recent[1].FileName != "bozuk.pdf" || recent[2].FileName != "recete1.pdf" {
		t.Errorf("recent = %+v, expected recete3, bozuk, recete1", recent)
	}
	if recent[1].Status != docstore.StatusError || !strings.Contains(recent[1].Error, "pdf is corrupted") {
		t.Errorf("failed record = %+v, expected error status with the cause", recent[1])
	}
	last := 0
	for _, pr := range progressed {
		if pr.Processed < last {
			t.Fatalf("progress went backwards: %+v", progressed)
		}
		last = pr.Processed
	}
	if last != 3 {
		t.Errorf("final progress %d, expected 3", last)
	}
}

func TestRunAutoMatchesByIdentifier(t *testing.T) {
	extractor := stubExtractor{texts: map[string]string{
		"recete.pdf": "Cihaz Reçetesi\nTC 12345678901",
	}}
	p, docs := newTestPipeline(extractor, testPatients, docstore.Config{LimitBytes: 1 << 20})

	report, err := p.Run(context.Background(), "b", []IngestedFile{{Name: "recete.pdf", Data: []byte("x")}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcomes[0].Status != string(docstore.StatusAutoMatched) {
		t.Fatalf("outcome = %+v, expected auto_matched", report.Outcomes[0])
	}

	matched, err := docs.ListByPatient(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("p1 bucket = %+v, expected the document", matched)
	}
	doc := matched[0]
	if doc.MatchedPatient == nil || doc.MatchedPatient.ID != "p1" || doc.MatchedPatient.MatchConfidence != 1 {
		t.Errorf("matched patient = %+v", doc.MatchedPatient)
	}
	if doc.DocumentType != "device_prescription" {
		t.Errorf("document type = %s, expected device_prescription", doc.DocumentType)
	}
}

func TestRunAmbiguousMatchGoesToManualReview(t *testing.T) {
	twins := []registry.Candidate{
		{ID: "p1", DisplayName: "Ali Yılmaz"},
		{ID: "p2", DisplayName: "Ali Yilmaz"},
	}
	extractor := stubExtractor{texts: map[string]string{
		"recete.pdf": "Ali Yılmaz",
	}}
	p, docs := newTestPipeline(extractor, twins, docstore.Config{LimitBytes: 1 << 20})

	report, err := p.Run(context.Background(), "b", []IngestedFile{{Name: "recete.pdf", Data: []byte("x")}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcomes[0].Status != string(docstore.StatusManualReview) {
		t.Fatalf("outcome = %+v, expected manual_review for an ambiguous match", report.Outcomes[0])
	}
	unmatched, err := docs.ListUnmatched(context.Background())
	if err != nil {
		t.Fatalf("ListUnmatched: %v", err)
	}
	if len(unmatched) != 1 {
		t.Errorf("triage bucket = %+v, expected the ambiguous document", unmatched)
	}
}

func TestRunCancellationAtFileBoundary(t *testing.T) {
	extractor := stubExtractor{texts: map[string]string{
		"a.pdf": "TC 12345678901",
		"b.pdf": "TC 98765432109",
	}}
	p, docs := newTestPipeline(extractor, testPatients, docstore.Config{LimitBytes: 1 << 20})

	ctx, cancel := context.WithCancel(context.Background())
	report, err := p.Run(ctx, "b", []IngestedFile{
		{Name: "a.pdf", Data: []byte("x")},
		{Name: "b.pdf", Data: []byte("y")},
	}, func(pr Progress) {
		if pr.Stage == StagePersisted {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Cancelled || report.Processed != 1 {
		t.Fatalf("report = %+v, expected cancellation after the first file", report)
	}

	// The already persisted document is untouched.
	recent, err := docs.ListRecent(context.Background())
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].FileName != "a.pdf" {
		t.Errorf("recent = %+v, expected only a.pdf", recent)
	}
}

func TestRunEmitsStorageWarning(t *testing.T) {
	extractor := stubExtractor{texts: map[string]string{
		"recete.pdf": "TC 12345678901\n" + strings.Repeat("odyogram sonuç satırı ", 140),
	}}
	p, _ := newTestPipeline(extractor, testPatients, docstore.Config{LimitBytes: 4096})

	report, err := p.Run(context.Background(), "b", []IngestedFile{
		{Name: "recete.pdf", Data: []byte("x")},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 {
		t.Fatalf("report = %+v, warning must not block the batch", report)
	}
	if report.StorageWarning == nil {
		t.Fatal("expected a storage warning near the limit")
	}
	if report.StorageWarning.Percentage < 80 {
		t.Errorf("warning = %+v, expected at least 80%%", report.StorageWarning)
	}
}
