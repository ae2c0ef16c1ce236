package docstore

// Key layout on the shared KV medium. Everything the manager owns lives
// under these names; the quota sums whatever Keys reports, so unrelated
// tenants must use a different namespace prefix at the store level.
//
// A document is stored exactly once, under its canonical record key. The
// global list, patient buckets and the triage bucket hold ordered id lists
// that reference it.
const (
	// keyDocPrefix scopes canonical document records, one per id.
	keyDocPrefix = "sgk:doc:"
	// keyGlobal holds the global recency id list, newest first. Cleanup
	// trims it to the retention count.
	keyGlobal = "sgk:documents"
	// keyUnmatched holds ids of triage documents awaiting manual review.
	keyUnmatched = "sgk:unmatched"
	// keyPatientPrefix scopes per-patient id lists.
	keyPatientPrefix = "sgk:patient:"
	// keyCachePrefix marks transient entries; cleanup removes them after
	// the configured TTL.
	keyCachePrefix = "cache:"
)

func docKey(id string) string {
	return keyDocPrefix + id
}

func patientKey(patientID string) string {
	return keyPatientPrefix + patientID
}
