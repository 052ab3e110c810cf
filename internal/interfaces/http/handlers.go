package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/docuflow/internal/application/service"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService   service.WorkflowService
	documentService   service.DocumentService
	definitionService service.DefinitionService
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	documentService service.DocumentService,
	definitionService service.DefinitionService,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflowService:   workflowService,
		documentService:   documentService,
		definitionService: definitionService,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateDefinitionRequest is the body for POST /api/workflows
type CreateDefinitionRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	Steps       []entity.Step `json:"steps" binding:"required"`
}

// SetActiveRequest is the body for PUT /api/workflows/:id/active
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// StartWorkflowRequest is the body for POST /api/workflows/:id/start
type StartWorkflowRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	Data       string `json:"data"`
}

// ResolveGateRequest is the body for the approve/reject endpoints
type ResolveGateRequest struct {
	Comments string `json:"comments"`
}

// SignalActionRequest is the body for POST /api/workflows/instances/:id/signal
type SignalActionRequest struct {
	Outcome  string `json:"outcome" binding:"required"`
	Comments string `json:"comments"`
}

// CreateDocumentRequest is the body for POST /api/documents
type CreateDocumentRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	DocumentType string `json:"document_type"`
	Content      string `json:"content"`
	Metadata     string `json:"metadata"`
}

// UpdateDocumentRequest is the body for PUT /api/documents/:id. Absent
// fields keep their current values; ExpectedVersion must match the stored
// version or the update is rejected with a conflict.
type UpdateDocumentRequest struct {
	ExpectedVersion *int64  `json:"expected_version" binding:"required"`
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Content         *string `json:"content"`
	Metadata        *string `json:"metadata"`
	Status          *string `json:"status"`
}

// ListRequest represents common pagination query parameters
type ListRequest struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Status string `form:"status"`
}

func (r *ListRequest) normalize() {
	if r.Limit <= 0 || r.Limit > 100 {
		r.Limit = 20
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
}

// respondError maps a domain error to an HTTP status. ErrLocked wraps
// ErrConflict, so it is checked first to claim the more specific status.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrLocked):
		status = http.StatusLocked
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateDefinition handles POST /api/workflows
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var req CreateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id := callerIdentity(c)
	def, err := h.definitionService.CreateDefinition(c.Request.Context(), id.OrganizationID, id.UserID, req.Name, req.Description, req.Steps)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: def})
}

// ListDefinitions handles GET /api/workflows
func (h *Handlers) ListDefinitions(c *gin.Context) {
	id := callerIdentity(c)
	defs, err := h.definitionService.ListDefinitions(c.Request.Context(), id.OrganizationID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: defs})
}

// SetDefinitionActive handles PUT /api/workflows/:id/active
func (h *Handlers) SetDefinitionActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id := callerIdentity(c)
	if err := h.definitionService.SetActive(c.Request.Context(), c.Param("id"), id.OrganizationID, *req.Active); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// StartWorkflow handles POST /api/workflows/:id/start
func (h *Handlers) StartWorkflow(c *gin.Context) {
	var req StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id := callerIdentity(c)
	instance, err := h.workflowService.StartWorkflow(c.Request.Context(), c.Param("id"), id.OrganizationID, req.DocumentID, id.UserID, req.Data)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// ListInstances handles GET /api/workflows/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	req.normalize()

	id := callerIdentity(c)
	instances, err := h.workflowService.ListInstances(c.Request.Context(), id.OrganizationID, req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// GetInstance handles GET /api/workflows/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.workflowService.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Instances carry no organization id of their own; the definition does.
	// A cross-tenant read surfaces as not-found, same as a bad id.
	id := callerIdentity(c)
	if _, err := h.definitionService.GetDefinition(c.Request.Context(), instance.WorkflowDefinitionID, id.OrganizationID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// ApproveGate handles POST /api/workflows/approvals/:id/approve
func (h *Handlers) ApproveGate(c *gin.Context) {
	h.resolveGate(c, entity.DecisionApprove)
}

// RejectGate handles POST /api/workflows/approvals/:id/reject
func (h *Handlers) RejectGate(c *gin.Context) {
	h.resolveGate(c, entity.DecisionReject)
}

func (h *Handlers) resolveGate(c *gin.Context, decision entity.Decision) {
	var req ResolveGateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	id := callerIdentity(c)
	if err := h.workflowService.ResolveGate(c.Request.Context(), c.Param("id"), id.UserID, decision, req.Comments); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// SignalAction handles POST /api/workflows/instances/:id/signal
func (h *Handlers) SignalAction(c *gin.Context) {
	var req SignalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	outcome := entity.Decision(req.Outcome)
	if !outcome.IsValid() {
		badRequest(c, "outcome must be approve or reject")
		return
	}

	id := callerIdentity(c)
	if err := h.workflowService.SignalAction(c.Request.Context(), c.Param("id"), id.UserID, outcome, req.Comments); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CreateDocument handles POST /api/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id := callerIdentity(c)
	doc, err := h.documentService.CreateDocument(c.Request.Context(), id.OrganizationID, id.UserID, &entity.Document{
		Title:        req.Title,
		Description:  req.Description,
		DocumentType: req.DocumentType,
		Content:      req.Content,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: doc})
}

// ListDocuments handles GET /api/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	req.normalize()

	id := callerIdentity(c)
	docs, err := h.documentService.ListDocuments(c.Request.Context(), id.OrganizationID, req.Status, req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: docs})
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id := callerIdentity(c)
	doc, err := h.documentService.GetDocument(c.Request.Context(), c.Param("id"), id.OrganizationID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// UpdateDocument handles PUT /api/documents/:id
func (h *Handlers) UpdateDocument(c *gin.Context) {
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id := callerIdentity(c)
	doc, err := h.documentService.Mutate(c.Request.Context(), c.Param("id"), id.OrganizationID, id.UserID, *req.ExpectedVersion, service.DocumentChange{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Metadata:    req.Metadata,
		Status:      req.Status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: doc})
}

// ListVersions handles GET /api/documents/:id/versions
func (h *Handlers) ListVersions(c *gin.Context) {
	id := callerIdentity(c)
	versions, err := h.documentService.ListVersions(c.Request.Context(), c.Param("id"), id.OrganizationID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: versions})
}

// LockDocument handles POST /api/documents/:id/lock
func (h *Handlers) LockDocument(c *gin.Context) {
	id := callerIdentity(c)
	if err := h.documentService.AcquireLock(c.Request.Context(), c.Param("id"), id.OrganizationID, id.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// UnlockDocument handles DELETE /api/documents/:id/lock
func (h *Handlers) UnlockDocument(c *gin.Context) {
	id := callerIdentity(c)
	if err := h.documentService.ReleaseLock(c.Request.Context(), c.Param("id"), id.OrganizationID, id.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}
