package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"intake-backend/internal/shared/storage/kv"
)

func newTestManager(cfg Config) (*Manager, *time.Time) {
	m := NewManager(kv.NewMemoryStore(), cfg)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func testDoc(id string, patientID string, payload []byte) Document {
	doc := Document{
		ID:            id,
		FileName:      id + ".pdf",
		ExtractedText: "cihaz reçetesi " + id,
		DocumentType:  "device_prescription",
		Status:        StatusAutoMatched,
		FileData:      payload,
		SizeBytes:     int64(len(payload)),
		CreatedAt:     time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
	}
	if patientID == "" {
		doc.Status = StatusManualReview
	} else {
		doc.MatchedPatient = &MatchedPatient{ID: patientID, Name: "Ali Yılmaz", MatchConfidence: 0.9}
	}
	return doc
}

func TestCheckQuotaEmpty(t *testing.T) {
	m, _ := newTestManager(Config{LimitBytes: 1000})
	q, err := m.CheckQuota(context.Background())
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if q.UsedBytes != 0 || !q.CanWrite || q.LimitBytes != 1000 {
		t.Errorf("quota = %+v, expected empty writable store", q)
	}
}

func TestCheckQuotaWatermark(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(Config{LimitBytes: 100, Watermark: 0.8})

	if err := m.Put(ctx, "sgk:doc:x", bytes.Repeat([]byte("a"), 75)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	q, err := m.CheckQuota(ctx)
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	// 9 bytes of key plus 75 of value is past the 80% watermark.
	if q.CanWrite {
		t.Errorf("quota = %+v, expected CanWrite false above watermark", q)
	}
	if q.UsedBytes != 84 {
		t.Errorf("UsedBytes = %d, expected 84", q.UsedBytes)
	}
}

func TestPutCleansUpOnceThenSucceeds(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(Config{LimitBytes: 300})

	if err := m.SetCache(ctx, "preview", bytes.Repeat([]byte("b"), 150)); err != nil {
		t.Fatalf("SetCache: %v", err)
	}
	*now = now.Add(25 * time.Hour)

	// Does not fit alongside the stale cache entry; fits once cleanup has
	// expired it.
	if err := m.Put(ctx, "sgk:doc:big", bytes.Repeat([]byte("a"), 200)); err != nil {
		t.Fatalf("Put after cleanup: %v", err)
	}
	if _, err := m.GetCache(ctx, "preview"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("expected stale cache entry gone, got %v", err)
	}
}

func TestPutQuotaExceededAfterRetry(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(Config{LimitBytes: 100})

	err := m.Put(ctx, "sgk:doc:big", bytes.Repeat([]byte("a"), 200))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestCleanupRetentionAndStripInvariant(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(Config{LimitBytes: 1 << 20, Retention: 2})

	payload := bytes.Repeat([]byte("p"), 64)
	for i := 1; i <= 4; i++ {
		if err := m.Save(ctx, testDoc(fmt.Sprintf("d%d", i), "p1", payload)); err != nil {
			t.Fatalf("Save d%d: %v", i, err)
		}
	}

	report, err := m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if report.Trimmed != 2 {
		t.Errorf("Trimmed = %d, expected 2", report.Trimmed)
	}
	if report.Stripped != 2 {
		t.Errorf("Stripped = %d, expected 2", report.Stripped)
	}

	recent, err := m.ListRecent(ctx)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "d4" || recent[1].ID != "d3" {
		t.Fatalf("recent = %+v, expected [d4 d3]", recent)
	}

	// Patient bucket keeps every document; only payload is evicted.
	docs, err := m.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("patient bucket has %d docs, expected 4", len(docs))
	}
	intact := 0
	for _, doc := range docs {
		if doc.FileName == "" || doc.ExtractedText == "" || doc.DocumentType == "" {
			t.Errorf("doc %s lost metadata: %+v", doc.ID, doc)
		}
		if len(doc.FileData) > 0 {
			intact++
			continue
		}
		if !doc.HasImage {
			t.Errorf("doc %s stripped without HasImage flag", doc.ID)
		}
	}
	if intact > 2 {
		t.Errorf("%d docs with payload intact, retention is 2", intact)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(Config{LimitBytes: 1 << 20, Retention: 1})

	for i := 1; i <= 3; i++ {
		if err := m.Save(ctx, testDoc(fmt.Sprintf("d%d", i), "p1", []byte("xx"))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if _, err := m.Cleanup(ctx); err != nil {
		t.Fatalf("first Cleanup: %v", err)
	}
	report, err := m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
	if report.Trimmed != 0 || report.Stripped != 0 {
		t.Errorf("second pass report = %+v, expected nothing left to evict", report)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(Config{LimitBytes: 1 << 20})

	if err := m.Save(ctx, testDoc("d1", "p1", nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "d1"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound after delete, got %v", err)
	}
	docs, err := m.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("patient bucket still has %d docs after delete", len(docs))
	}
	if err := m.Delete(ctx, "d1"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestManualMatchMovesTriageDoc(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(Config{LimitBytes: 1 << 20})

	if err := m.Save(ctx, testDoc("d1", "", nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	patient := MatchedPatient{ID: "p7", Name: "Ayşe Demir", MatchConfidence: 1}
	doc, err := m.ManualMatch(ctx, "d1", patient)
	if err != nil {
		t.Fatalf("ManualMatch: %v", err)
	}
	if doc.Status != StatusManualMatched || doc.MatchedPatient == nil || doc.MatchedPatient.ID != "p7" {
		t.Errorf("doc after match = %+v", doc)
	}

	unmatched, err := m.ListUnmatched(ctx)
	if err != nil {
		t.Fatalf("ListUnmatched: %v", err)
	}
	if len(unmatched) != 0 {
		t.Errorf("triage bucket still has %d docs", len(unmatched))
	}
	docs, err := m.ListByPatient(ctx, "p7")
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "d1" {
		t.Errorf("patient bucket = %+v, expected [d1]", docs)
	}

	if _, err := m.ManualMatch(ctx, "ghost", patient); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound for unknown id, got %v", err)
	}
}
