package docstore

import "time"

// DocumentStatus tracks a document through matching and review.
type DocumentStatus string

const (
	StatusProcessing    DocumentStatus = "processing"
	StatusAutoMatched   DocumentStatus = "auto_matched"
	StatusManualMatched DocumentStatus = "manual_matched"
	StatusManualReview  DocumentStatus = "manual_review"
	StatusError         DocumentStatus = "error"
)

// MatchedPatient is the registry snapshot frozen onto a document at match
// time. It is a copy, not a live reference.
type MatchedPatient struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Identifier      string  `json:"identifier,omitempty"`
	MatchConfidence float64 `json:"matchConfidence"`
}

// Document is the persisted record produced per ingested file. The binary
// payload fields are evictable; everything else is metadata and survives
// cleanup unconditionally.
type Document struct {
	ID             string          `json:"id"`
	FileName       string          `json:"fileName"`
	ExtractedText  string          `json:"extractedText"`
	OCRConfidence  float64         `json:"ocrConfidence"`
	DocumentType   string          `json:"documentType"`
	TypeConfidence float64         `json:"typeConfidence"`
	Status         DocumentStatus  `json:"status"`
	Error          string          `json:"error,omitempty"`
	MatchedPatient *MatchedPatient `json:"matchedPatient,omitempty"`
	SizeBytes      int64           `json:"sizeBytes"`
	CreatedAt      time.Time       `json:"createdAt"`

	// StorageKey references the original upload in the object store. The
	// original is never under KV quota and is the source for regenerating
	// the evictable fields below.
	StorageKey string `json:"storageKey,omitempty"`

	// Evictable payload. Cleanup strips these and raises the flags so
	// readers can tell absence from never-existed.
	FileData      []byte `json:"fileData,omitempty"`
	CroppedImage  []byte `json:"croppedImage,omitempty"`
	CompressedPDF []byte `json:"compressedPDF,omitempty"`
	HasImage      bool   `json:"hasImage"`
	HasPDF        bool   `json:"hasPdf"`
}

// stripPayload drops the evictable fields, recording what was lost.
func (d *Document) stripPayload() {
	if len(d.CroppedImage) > 0 || len(d.FileData) > 0 {
		d.HasImage = true
	}
	if len(d.CompressedPDF) > 0 {
		d.HasPDF = true
	}
	d.FileData = nil
	d.CroppedImage = nil
	d.CompressedPDF = nil
}

// hasPayload reports whether any evictable field is still present.
func (d *Document) hasPayload() bool {
	return len(d.FileData) > 0 || len(d.CroppedImage) > 0 || len(d.CompressedPDF) > 0
}

// Quota is the storage accounting snapshot.
type Quota struct {
	UsedBytes  int64   `json:"usedBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Percentage float64 `json:"percentage"`
	CanWrite   bool    `json:"canWrite"`
}
