package workflow

import "intake-backend/internal/classify"

// Status is the SGK administrative workflow state for a patient. The ordered
// values form the normal progression; Pending and Rejected are terminal
// states outside the progression.
type Status string

const (
	StatusQueried           Status = "Sorgulandı"
	StatusPrescriptionSaved Status = "Reçete Kaydedildi"
	StatusDelivered         Status = "Malzeme Teslim Edildi"
	StatusDocumentsUploaded Status = "Belgeler Yüklendi"
	StatusInvoiced          Status = "Faturalandı"
	StatusPaid              Status = "Ödemesi Alındı"

	StatusPending  Status = "Bekleyen"
	StatusRejected Status = "Reddedilen"
)

// rank orders the progression statuses so side-data can only move the
// derived status forward, never backward past the document evidence.
var rank = map[Status]int{
	StatusQueried:           1,
	StatusPrescriptionSaved: 2,
	StatusDelivered:         3,
	StatusDocumentsUploaded: 4,
	StatusInvoiced:          5,
	StatusPaid:              6,
}

// SideData carries the payment/delivery facts owned by invoicing. The
// deriver treats them as read-only input; it never stores them.
type SideData struct {
	PrescriptionSaved bool
	Delivered         bool
	Invoiced          bool
	Paid              bool
	Rejected          bool
	Pending           bool
}

// DocumentSet is the minimal view of a patient's reconciled documents the
// deriver needs: which document types are present.
type DocumentSet struct {
	types map[classify.DocumentType]bool
}

// NewDocumentSet builds a set from the document types present for a patient.
func NewDocumentSet(types ...classify.DocumentType) DocumentSet {
	set := DocumentSet{types: make(map[classify.DocumentType]bool, len(types))}
	for _, t := range types {
		set.types[t] = true
	}
	return set
}

// Has reports whether the set contains a document of the given type.
func (s DocumentSet) Has(t classify.DocumentType) bool {
	return s.types[t]
}

// Result is the derived workflow state plus the missing-document warning
// surface. Missing documents are a warning, never a failure.
type Result struct {
	Status Status
	// CompleteBundles lists every bundle whose required documents are all
	// present.
	CompleteBundles []classify.Bundle
	// MissingByBundle maps each incomplete bundle to the document types it
	// still needs.
	MissingByBundle map[classify.Bundle][]classify.DocumentType
}

// Derive computes the patient's administrative status from the reconciled
// document set and invoicing side-data. Pure function: no I/O, no caching,
// recomputed on every read so it cannot drift out of sync.
func Derive(docs DocumentSet, side SideData) Result {
	res := Result{
		MissingByBundle: make(map[classify.Bundle][]classify.DocumentType),
	}

	for _, bundle := range classify.AllBundles() {
		var missing []classify.DocumentType
		for _, required := range bundle.RequiredTypes() {
			if !docs.Has(required) {
				missing = append(missing, required)
			}
		}
		if len(missing) == 0 {
			res.CompleteBundles = append(res.CompleteBundles, bundle)
		} else {
			res.MissingByBundle[bundle] = missing
		}
	}

	if side.Rejected {
		res.Status = StatusRejected
		return res
	}
	if side.Pending {
		res.Status = StatusPending
		return res
	}

	status := StatusQueried
	if side.PrescriptionSaved {
		status = StatusPrescriptionSaved
	}
	if side.Delivered {
		status = StatusDelivered
	}
	if len(res.CompleteBundles) > 0 && rank[status] < rank[StatusDocumentsUploaded] {
		status = StatusDocumentsUploaded
	}
	if side.Invoiced && rank[status] < rank[StatusInvoiced] {
		status = StatusInvoiced
	}
	if side.Paid {
		status = StatusPaid
	}

	res.Status = status
	return res
}
