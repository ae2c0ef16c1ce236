package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intake-backend/internal/shared/storage/kv"
	"intake-backend/internal/shared/telemetry"
)

// Legacy key shapes are registered explicitly. Shape detection is a
// deliberate non-feature: adding a historical format means adding an entry
// here, not teaching the store to guess.
var legacyShapes = []legacyShape{
	{key: "documents_v1", decode: decodeLegacyFlatArray},
	{key: "patient_documents", decode: decodeLegacyPatientMap},
}

type legacyShape struct {
	key    string
	decode func(raw []byte) ([]legacyEntry, error)
}

// legacyEntry is one record lifted out of a legacy key, together with the
// bucket it belongs in.
type legacyEntry struct {
	doc    Document
	bucket string
}

// legacyRecord covers the field names the historical formats used.
type legacyRecord struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	ExtractedText string    `json:"extractedText"`
	DocumentType  string    `json:"documentType"`
	Status        string    `json:"status"`
	PatientID     string    `json:"patientId"`
	PatientName   string    `json:"patientName"`
	CreatedAt     time.Time `json:"createdAt"`
	FileData      []byte    `json:"fileData"`
}

func (r legacyRecord) toEntry(bucketPatientID string) legacyEntry {
	patientID := r.PatientID
	if bucketPatientID != "" {
		patientID = bucketPatientID
	}

	doc := Document{
		ID:            r.ID,
		FileName:      r.FileName,
		ExtractedText: r.ExtractedText,
		DocumentType:  r.DocumentType,
		Status:        DocumentStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		FileData:      r.FileData,
		SizeBytes:     int64(len(r.FileData)),
	}
	if doc.Status == "" {
		doc.Status = StatusManualReview
	}

	bucket := keyUnmatched
	if patientID != "" {
		doc.MatchedPatient = &MatchedPatient{ID: patientID, Name: r.PatientName}
		if doc.Status == StatusManualReview {
			doc.Status = StatusManualMatched
		}
		bucket = patientKey(patientID)
	}
	return legacyEntry{doc: doc, bucket: bucket}
}

func decodeLegacyFlatArray(raw []byte) ([]legacyEntry, error) {
	var records []legacyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	out := make([]legacyEntry, 0, len(records))
	for _, r := range records {
		out = append(out, r.toEntry(""))
	}
	return out, nil
}

func decodeLegacyPatientMap(raw []byte) ([]legacyEntry, error) {
	var byPatient map[string][]legacyRecord
	if err := json.Unmarshal(raw, &byPatient); err != nil {
		return nil, err
	}
	var out []legacyEntry
	for patientID, records := range byPatient {
		for _, r := range records {
			out = append(out, r.toEntry(patientID))
		}
	}
	return out, nil
}

// MigrateLegacyKeys lifts records from every registered legacy shape into
// the canonical store, skipping any id that already has a canonical record.
// Returns the number of newly migrated records; running it again migrates
// zero. Records without an id are skipped, not failed.
func (m *Manager) MigrateLegacyKeys(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	migrated := 0
	for _, shape := range legacyShapes {
		raw, err := m.store.Get(ctx, shape.key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return migrated, fmt.Errorf("read legacy key %s: %w", shape.key, err)
		}
		entries, err := shape.decode(raw)
		if err != nil {
			return migrated, fmt.Errorf("decode legacy key %s: %w", shape.key, err)
		}

		for _, entry := range entries {
			if entry.doc.ID == "" {
				telemetry.Warn("docstore.legacy_record_skipped", map[string]any{
					"shape":  shape.key,
					"reason": "missing id",
				})
				continue
			}
			if _, err := m.readDoc(ctx, entry.doc.ID); err == nil {
				continue
			} else if !errors.Is(err, kv.ErrNotFound) {
				return migrated, err
			}

			if err := m.insertMigrated(ctx, entry); err != nil {
				return migrated, err
			}
			migrated++
		}
	}
	return migrated, nil
}

func (m *Manager) insertMigrated(ctx context.Context, entry legacyEntry) error {
	raw, err := encodeDoc(entry.doc)
	if err != nil {
		return err
	}
	if err := m.putLocked(ctx, docKey(entry.doc.ID), raw); err != nil {
		return err
	}

	global, err := m.readIDList(ctx, keyGlobal)
	if err != nil {
		return err
	}
	if err := m.writeIDList(ctx, keyGlobal, appendUnique(global, entry.doc.ID)); err != nil {
		return err
	}

	ids, err := m.readIDList(ctx, entry.bucket)
	if err != nil {
		return err
	}
	return m.writeIDList(ctx, entry.bucket, appendUnique(ids, entry.doc.ID))
}
