package intake

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intake-backend/internal/classify"
	"intake-backend/internal/docstore"
	"intake-backend/internal/shared/server/respond"
	"intake-backend/internal/workflow"
)

const (
	maxBatchSize  = 50 << 20 // 50MB across a whole batch
	maxBatchFiles = 20
)

// Handler wires the intake HTTP surface to the pipeline and the document
// store.
type Handler struct {
	Pipe *Pipeline
	Docs *docstore.Manager
}

// NewHandler constructs a Handler.
func NewHandler(pipe *Pipeline, docs *docstore.Manager) *Handler {
	return &Handler{Pipe: pipe, Docs: docs}
}

// RegisterRoutes attaches intake routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/intake/batches", h.runBatch)
	rg.GET("/documents", h.listRecent)
	rg.GET("/documents/unmatched", h.listUnmatched)
	rg.GET("/documents/:id", h.getDocument)
	rg.DELETE("/documents/:id", h.deleteDocument)
	rg.POST("/documents/:id/match", h.manualMatch)
	rg.GET("/patients/:id/documents", h.listByPatient)
	rg.GET("/patients/:id/status", h.patientStatus)
	rg.GET("/storage/quota", h.quota)
}

func (h *Handler) runBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBatchSize)

	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idemKey != "" {
		if cached, err := h.Docs.GetCache(c.Request.Context(), "idem:"+idemKey); err == nil {
			var report BatchReport
			if err := json.Unmarshal(cached, &report); err == nil {
				c.Header("Idempotency-Replayed", "true")
				respond.JSON(c, http.StatusOK, report)
				return
			}
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}
	if len(headers) > maxBatchFiles {
		respond.Error(c, http.StatusBadRequest, "validation_error", "too many files in one batch", nil)
		return
	}

	files := make([]IngestedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		files = append(files, IngestedFile{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	report, err := h.Pipe.Run(c.Request.Context(), uuid.NewString(), files, nil)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "intake_failed", err.Error(), nil)
		return
	}

	if idemKey != "" {
		if raw, err := json.Marshal(report); err == nil {
			// Best effort; a full store must not fail the batch response.
			_ = h.Docs.SetCache(c.Request.Context(), "idem:"+idemKey, raw)
		}
	}
	respond.Created(c, report)
}

func (h *Handler) listRecent(c *gin.Context) {
	docs, err := h.Docs.ListRecent(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "list_failed", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"documents": toResponses(docs)})
}

func (h *Handler) listUnmatched(c *gin.Context) {
	docs, err := h.Docs.ListUnmatched(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "list_failed", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"documents": toResponses(docs)})
}

func (h *Handler) listByPatient(c *gin.Context) {
	docs, err := h.Docs.ListByPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "list_failed", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"documents": toResponses(docs)})
}

func (h *Handler) getDocument(c *gin.Context) {
	doc, err := h.Docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, docstore.ErrDocumentNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "get_failed", err.Error(), nil)
		return
	}
	respond.OK(c, toResponse(doc))
}

func (h *Handler) deleteDocument(c *gin.Context) {
	if err := h.Docs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, http.StatusInternalServerError, "delete_failed", err.Error(), nil)
		return
	}
	c.Status(http.StatusNoContent)
}

type manualMatchRequest struct {
	PatientID  string `json:"patientId"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

func (h *Handler) manualMatch(c *gin.Context) {
	var req manualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PatientID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "patientId is required", nil)
		return
	}

	doc, err := h.Docs.ManualMatch(c.Request.Context(), c.Param("id"), docstore.MatchedPatient{
		ID:              req.PatientID,
		Name:            req.Name,
		Identifier:      req.Identifier,
		MatchConfidence: 1,
	})
	if err != nil {
		if errors.Is(err, docstore.ErrDocumentNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "match_failed", err.Error(), nil)
		return
	}
	respond.OK(c, toResponse(doc))
}

// patientStatus derives the workflow status from the patient's current
// document set. Payment and delivery side-data is owned by invoicing and
// arrives as query flags.
func (h *Handler) patientStatus(c *gin.Context) {
	docs, err := h.Docs.ListByPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "status_failed", err.Error(), nil)
		return
	}

	types := make([]classify.DocumentType, 0, len(docs))
	for _, doc := range docs {
		types = append(types, classify.DocumentType(doc.DocumentType))
	}
	side := workflow.SideData{
		PrescriptionSaved: c.Query("prescriptionSaved") == "true",
		Delivered:         c.Query("delivered") == "true",
		Invoiced:          c.Query("invoiced") == "true",
		Paid:              c.Query("paid") == "true",
		Rejected:          c.Query("rejected") == "true",
		Pending:           c.Query("pending") == "true",
	}

	result := workflow.Derive(workflow.NewDocumentSet(types...), side)
	respond.OK(c, gin.H{
		"status":          result.Status,
		"completeBundles": result.CompleteBundles,
		"missingByBundle": result.MissingByBundle,
	})
}

func (h *Handler) quota(c *gin.Context) {
	q, err := h.Docs.CheckQuota(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "quota_failed", err.Error(), nil)
		return
	}
	respond.OK(c, q)
}
