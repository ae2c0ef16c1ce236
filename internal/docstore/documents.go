package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"intake-backend/internal/shared/storage/kv"
)

// ErrDocumentNotFound is returned by reads and match operations for an
// unknown document id.
var ErrDocumentNotFound = errors.New("document not found")

// Save persists a new document: the canonical record goes through quota
// control, then the id is prepended to the global recency list and appended
// to its patient bucket, or to triage when unmatched.
func (m *Manager) Save(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	if err := m.putLocked(ctx, docKey(doc.ID), raw); err != nil {
		return err
	}

	global, err := m.readIDList(ctx, keyGlobal)
	if err != nil {
		return err
	}
	if err := m.writeIDList(ctx, keyGlobal, prependUnique(global, doc.ID)); err != nil {
		return err
	}

	bucket := keyUnmatched
	if doc.MatchedPatient != nil {
		bucket = patientKey(doc.MatchedPatient.ID)
	}
	ids, err := m.readIDList(ctx, bucket)
	if err != nil {
		return err
	}
	return m.writeIDList(ctx, bucket, appendUnique(ids, doc.ID))
}

// Get returns one document by id.
func (m *Manager) Get(ctx context.Context, id string) (Document, error) {
	doc, err := m.readDoc(ctx, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListRecent returns the global recency list, newest first.
func (m *Manager) ListRecent(ctx context.Context) ([]Document, error) {
	return m.resolveList(ctx, keyGlobal)
}

// ListByPatient returns the documents in a patient's bucket.
func (m *Manager) ListByPatient(ctx context.Context, patientID string) ([]Document, error) {
	return m.resolveList(ctx, patientKey(patientID))
}

// ListUnmatched returns the triage bucket awaiting manual review.
func (m *Manager) ListUnmatched(ctx context.Context) ([]Document, error) {
	return m.resolveList(ctx, keyUnmatched)
}

// resolveList loads an id list and dereferences each id, skipping dangling
// references left behind by eviction.
func (m *Manager) resolveList(ctx context.Context, key string) ([]Document, error) {
	ids, err := m.readIDList(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := m.readDoc(ctx, id)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Delete removes a document and every reference to it. Deleting an unknown
// id is a no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Remove(ctx, docKey(id)); err != nil {
		return fmt.Errorf("remove doc %s: %w", id, err)
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if key != keyGlobal && key != keyUnmatched && !strings.HasPrefix(key, keyPatientPrefix) {
			continue
		}
		ids, err := m.readIDList(ctx, key)
		if err != nil {
			return err
		}
		filtered := removeID(ids, id)
		if len(filtered) == len(ids) {
			continue
		}
		if err := m.writeIDList(ctx, key, filtered); err != nil {
			return err
		}
	}
	return nil
}

// ManualMatch resolves a triage document to a patient: the id moves from
// the unmatched bucket to the patient's bucket and the record is marked
// manual_matched with the patient snapshot frozen on.
func (m *Manager) ManualMatch(ctx context.Context, id string, patient MatchedPatient) (Document, error) {
	if patient.ID == "" {
		return Document{}, fmt.Errorf("patient id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.readDoc(ctx, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}

	// Detach from the previous owner, whether triage or another patient.
	prev := keyUnmatched
	if doc.MatchedPatient != nil {
		prev = patientKey(doc.MatchedPatient.ID)
	}
	prevIDs, err := m.readIDList(ctx, prev)
	if err != nil {
		return Document{}, err
	}
	if err := m.writeIDList(ctx, prev, removeID(prevIDs, id)); err != nil {
		return Document{}, err
	}

	doc.Status = StatusManualMatched
	doc.MatchedPatient = &patient
	if err := m.writeDocUnchecked(ctx, doc); err != nil {
		return Document{}, err
	}

	ids, err := m.readIDList(ctx, patientKey(patient.ID))
	if err != nil {
		return Document{}, err
	}
	if err := m.writeIDList(ctx, patientKey(patient.ID), appendUnique(ids, id)); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func encodeDoc(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode doc %s: %w", doc.ID, err)
	}
	return raw, nil
}

func prependUnique(ids []string, id string) []string {
	return append([]string{id}, removeID(ids, id)...)
}

func appendUnique(ids []string, id string) []string {
	return append(removeID(ids, id), id)
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
