package intake

import (
	"time"

	"intake-backend/internal/classify"
	"intake-backend/internal/docstore"
)

// DocumentResponse is the outward-facing representation of a stored
// document. Binary payload never leaves through list endpoints; HasImage
// and HasPDF tell the caller what can still be fetched.
type DocumentResponse struct {
	DocumentID     string                   `json:"documentId"`
	FileName       string                   `json:"fileName"`
	DocumentType   string                   `json:"documentType"`
	TypeLabel      string                   `json:"typeLabel"`
	TypeConfidence float64                  `json:"typeConfidence"`
	OCRConfidence  float64                  `json:"ocrConfidence"`
	Status         docstore.DocumentStatus  `json:"status"`
	MatchedPatient *docstore.MatchedPatient `json:"matchedPatient,omitempty"`
	SizeBytes      int64                    `json:"sizeBytes"`
	CreatedAt      time.Time                `json:"createdAt"`
	HasImage       bool                     `json:"hasImage"`
	HasPDF         bool                     `json:"hasPdf"`
	Error          string                   `json:"error,omitempty"`
}

func toResponse(doc docstore.Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:     doc.ID,
		FileName:       doc.FileName,
		DocumentType:   doc.DocumentType,
		TypeLabel:      classify.DocumentType(doc.DocumentType).Label(),
		TypeConfidence: doc.TypeConfidence,
		OCRConfidence:  doc.OCRConfidence,
		Status:         doc.Status,
		MatchedPatient: doc.MatchedPatient,
		SizeBytes:      doc.SizeBytes,
		CreatedAt:      doc.CreatedAt,
		HasImage:       doc.HasImage || len(doc.CroppedImage) > 0 || len(doc.FileData) > 0,
		HasPDF:         doc.HasPDF || len(doc.CompressedPDF) > 0,
		Error:          doc.Error,
	}
}

func toResponses(docs []docstore.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc))
	}
	return out
}
