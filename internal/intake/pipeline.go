package intake

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"intake-backend/internal/classify"
	"intake-backend/internal/docstore"
	"intake-backend/internal/ocr"
	"intake-backend/internal/registry"
	"intake-backend/internal/shared/metrics"
	"intake-backend/internal/shared/storage/object"
	"intake-backend/internal/shared/telemetry"
)

// Config tunes the pipeline's matching decisions. Zero values fall back to
// defaults.
type Config struct {
	// MatchThreshold is the minimum top score for an automatic match.
	// Default 0.6.
	MatchThreshold float64
	// AmbiguityMargin routes a file to manual review when the runner-up
	// is within this margin of the top score. Default 0.05.
	AmbiguityMargin float64
	// MinOCRConfidence gates automatic matching on extraction quality.
	// Default 0.3.
	MinOCRConfidence float64
	// WarnAtPercent emits the storage warning when usage crosses this
	// percentage at batch completion. Default 80.
	WarnAtPercent float64
}

func (c Config) withDefaults() Config {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 0.6
	}
	if c.AmbiguityMargin <= 0 {
		c.AmbiguityMargin = 0.05
	}
	if c.MinOCRConfidence <= 0 {
		c.MinOCRConfidence = 0.3
	}
	if c.WarnAtPercent <= 0 {
		c.WarnAtPercent = 80
	}
	return c
}

// Pipeline runs document intake: extract, classify, match, persist. Files
// are processed strictly one at a time in submission order so peak memory
// stays bounded to a single payload and progress is monotonic.
type Pipeline struct {
	extractor ocr.Extractor
	patients  registry.Source
	matcher   *registry.Matcher
	docs      *docstore.Manager
	objects   object.ObjectStore
	cfg       Config
}

// NewPipeline wires the pipeline. objects may be nil when original uploads
// are not archived.
func NewPipeline(extractor ocr.Extractor, patients registry.Source, matcher *registry.Matcher, docs *docstore.Manager, objects object.ObjectStore, cfg Config) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		patients:  patients,
		matcher:   matcher,
		docs:      docs,
		objects:   objects,
		cfg:       cfg.withDefaults(),
	}
}

// ProgressFunc receives stage transitions. May be nil.
type ProgressFunc func(Progress)

// Run processes the batch. A per-file failure is recorded and the batch
// continues; cancellation takes effect at the next file boundary and
// leaves already persisted documents untouched.
func (p *Pipeline) Run(ctx context.Context, batchID string, files []IngestedFile, progress ProgressFunc) (BatchReport, error) {
	report := BatchReport{Total: len(files), Outcomes: make([]FileOutcome, 0, len(files))}
	notify := func(pr Progress) {
		if progress != nil {
			progress(pr)
		}
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			telemetry.Warn("intake.batch_cancelled", map[string]any{
				"batch_id":  batchID,
				"processed": report.Processed,
				"total":     report.Total,
			})
			break
		}

		outcome := p.runFile(ctx, batchID, file, report.Processed, report.Total, notify)
		report.Processed++
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Stage == StageError {
			report.Failed++
			metrics.IncFileFailed()
			telemetry.Error("intake.file_failed", map[string]any{
				"batch_id": batchID,
				"file":     outcome.FileName,
				"error":    outcome.Error,
			})
		} else {
			report.Succeeded++
			if outcome.SizeBytes > 0 {
				report.CompressedCount++
				report.CompressedBytes += outcome.SizeBytes
			}
			telemetry.Info("intake.file_processed", map[string]any{
				"batch_id":   batchID,
				"file":       outcome.FileName,
				"document":   outcome.DocumentID,
				"status":     outcome.Status,
				"size_bytes": outcome.SizeBytes,
			})
		}
		notify(Progress{FileName: file.Name, Stage: outcome.Stage, Processed: report.Processed, Total: report.Total, Error: outcome.Error})
	}

	p.attachQuotaWarning(ctx, &report)
	return report, nil
}

// runFile drives one file through the state machine. Every error is
// terminal for the file only.
func (p *Pipeline) runFile(ctx context.Context, batchID string, file IngestedFile, processed, total int, notify ProgressFunc) FileOutcome {
	started := time.Now()
	defer func() {
		metrics.ObserveFileDurationMs(float64(time.Since(started).Milliseconds()))
		metrics.IncFileProcessed()
	}()

	stage := func(s Stage) {
		notify(Progress{FileName: file.Name, Stage: s, Processed: processed, Total: total})
	}
	fail := func(err error) FileOutcome {
		// Failures still leave a record so triage can see what arrived
		// and why it stopped. Persisting that record is best effort.
		doc := docstore.Document{
			ID:        uuid.NewString(),
			FileName:  file.Name,
			Status:    docstore.StatusError,
			Error:     err.Error(),
			SizeBytes: int64(len(file.Data)),
			CreatedAt: time.Now().UTC(),
		}
		outcome := FileOutcome{FileName: file.Name, Stage: StageError, Error: err.Error()}
		if saveErr := p.docs.Save(ctx, doc); saveErr == nil {
			outcome.DocumentID = doc.ID
		}
		return outcome
	}
	stage(StageQueued)

	stage(StageExtracting)
	extracted, err := p.extractor.Extract(ctx, file.Data, file.MimeType, file.Name)
	if err != nil {
		return fail(fmt.Errorf("extract: %w", err))
	}

	stage(StageClassifying)
	docType, typeConfidence := classify.Classify(extracted.Text)

	stage(StageMatching)
	doc := docstore.Document{
		ID:             uuid.NewString(),
		FileName:       file.Name,
		ExtractedText:  extracted.Text,
		OCRConfidence:  extracted.Confidence,
		DocumentType:   string(docType),
		TypeConfidence: typeConfidence,
		Status:         docstore.StatusProcessing,
		SizeBytes:      int64(len(file.Data)),
		CreatedAt:      time.Now().UTC(),
	}
	p.matchDocument(ctx, &doc, extracted)

	compressed, err := gzipBytes(file.Data)
	if err != nil {
		return fail(fmt.Errorf("compress: %w", err))
	}
	doc.CompressedPDF = compressed

	if p.objects != nil {
		key, _, _, err := p.objects.Save(ctx, batchID, file.Name, bytes.NewReader(file.Data))
		if err != nil {
			// The original is a convenience copy; the document still
			// carries its own payload.
			telemetry.Warn("intake.original_not_archived", map[string]any{
				"batch_id": batchID,
				"file":     file.Name,
				"error":    err.Error(),
			})
		} else {
			doc.StorageKey = key
		}
	}

	if err := p.docs.Save(ctx, doc); err != nil {
		return fail(fmt.Errorf("persist: %w", err))
	}

	return FileOutcome{
		FileName:   file.Name,
		DocumentID: doc.ID,
		Stage:      StagePersisted,
		Status:     string(doc.Status),
		SizeBytes:  int64(len(compressed)),
	}
}

// matchDocument resolves the document to a patient or routes it to manual
// review. Registry outages degrade to manual review rather than failing
// the file.
func (p *Pipeline) matchDocument(ctx context.Context, doc *docstore.Document, extracted ocr.Result) {
	if extracted.Confidence < p.cfg.MinOCRConfidence {
		doc.Status = docstore.StatusManualReview
		metrics.IncManualReview()
		return
	}
	query := patientQuery(extracted.Text)
	if query == "" {
		doc.Status = docstore.StatusManualReview
		metrics.IncManualReview()
		return
	}

	candidates, err := p.patients.Search(ctx, query)
	if err != nil {
		telemetry.Warn("intake.registry_unavailable", map[string]any{
			"file":  doc.FileName,
			"error": err.Error(),
		})
		doc.Status = docstore.StatusManualReview
		metrics.IncManualReview()
		return
	}

	results := p.matcher.Match(query, candidates)
	if len(results) == 0 || results[0].Score < p.cfg.MatchThreshold {
		doc.Status = docstore.StatusManualReview
		metrics.IncManualReview()
		return
	}
	if len(results) > 1 && results[0].Score-results[1].Score < p.cfg.AmbiguityMargin {
		// Two plausible patients is worse than none; never guess.
		doc.Status = docstore.StatusManualReview
		metrics.IncManualReview()
		return
	}

	top := results[0]
	for _, c := range candidates {
		if c.ID != top.PatientID {
			continue
		}
		doc.Status = docstore.StatusAutoMatched
		doc.MatchedPatient = &docstore.MatchedPatient{
			ID:              c.ID,
			Name:            c.DisplayName,
			Identifier:      c.NationalID,
			MatchConfidence: top.Score,
		}
		metrics.IncAutoMatched()
		return
	}
	doc.Status = docstore.StatusManualReview
	metrics.IncManualReview()
}

func (p *Pipeline) attachQuotaWarning(ctx context.Context, report *BatchReport) {
	quota, err := p.docs.CheckQuota(ctx)
	if err != nil {
		telemetry.Warn("intake.quota_check_failed", map[string]any{"error": err.Error()})
		return
	}
	metrics.SetQuotaUsedPercent(quota.Percentage)
	if quota.Percentage < p.cfg.WarnAtPercent {
		return
	}
	report.StorageWarning = &StorageWarning{
		UsedBytes:  quota.UsedBytes,
		LimitBytes: quota.LimitBytes,
		Percentage: quota.Percentage,
		Message:    fmt.Sprintf("depolama alanının %%%.0f'i dolu", quota.Percentage),
	}
}

// patientQuery picks the identifying text to match on: the longest digit
// run of five or more (a national identifier or phone fragment) when
// present, otherwise the first non-empty line of the document.
func patientQuery(text string) string {
	if run := longestDigitRun(text); len(run) >= 5 {
		return run
	}
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if runes := []rune(trimmed); len(runes) > 64 {
				trimmed = string(runes[:64])
			}
			return trimmed
		}
	}
	return ""
}

func longestDigitRun(text string) string {
	best := ""
	start := -1
	for i, r := range text {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start > len(best) {
			best = text[start:i]
		}
		start = -1
	}
	if start >= 0 && len(text)-start > len(best) {
		best = text[start:]
	}
	return best
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
