package intake

// IngestedFile is one uploaded file, alive only for the duration of a
// batch run.
type IngestedFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Stage names the per-file state machine positions.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageExtracting  Stage = "extracting"
	StageClassifying Stage = "classifying"
	StageMatching    Stage = "matching"
	StagePersisted   Stage = "persisted"
	StageError       Stage = "error"
)

// Progress is reported after every stage transition so a caller can render
// incremental status. Processed/Total advance only at file boundaries, so
// they are monotonic.
type Progress struct {
	FileName  string `json:"fileName"`
	Stage     Stage  `json:"stage"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

// FileOutcome is the terminal record for one file in the batch report.
type FileOutcome struct {
	FileName   string `json:"fileName"`
	DocumentID string `json:"documentId,omitempty"`
	Stage      Stage  `json:"stage"`
	Status     string `json:"status,omitempty"`
	SizeBytes  int64  `json:"sizeBytes"`
	Error      string `json:"error,omitempty"`
}

// StorageWarning is the non-fatal, dismissible notice emitted when usage
// is close to the limit. It never blocks a batch.
type StorageWarning struct {
	UsedBytes  int64   `json:"usedBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

// BatchReport aggregates a completed (or cancelled) batch.
type BatchReport struct {
	Total           int             `json:"total"`
	Processed       int             `json:"processed"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	CompressedCount int             `json:"compressedCount"`
	CompressedBytes int64           `json:"compressedBytes"`
	Cancelled       bool            `json:"cancelled"`
	Outcomes        []FileOutcome   `json:"outcomes"`
	StorageWarning  *StorageWarning `json:"storageWarning,omitempty"`
}
