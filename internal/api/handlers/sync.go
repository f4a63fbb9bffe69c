package handlers

import (
	"context"
	"errors"
	"net/http"

	"storage-sync/internal/api"
	"storage-sync/internal/repository"
	"storage-sync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SyncRunner is the part of the sync service the handlers use.
type SyncRunner interface {
	RunPass(ctx context.Context) (*service.PassResult, error)
	Status(ctx context.Context) (*service.Status, error)
	ListPasses(ctx context.Context, limit, offset int32) ([]repository.SyncPass, error)
}

// SyncHandler handles sync-related HTTP requests
type SyncHandler struct {
	syncService SyncRunner
	validator   *validator.Validate
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService SyncRunner) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		validator:   validator.New(),
	}
}

// ListPassesQuery represents query parameters for listing passes
type ListPassesQuery struct {
	Limit  int32 `form:"limit" validate:"omitempty,min=1,max=100" example:"20"`
	Offset int32 `form:"offset" validate:"omitempty,min=0" example:"0"`
}

// GetSyncStatus returns the reconciliation job state
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	status, err := h.syncService.Status(c.Request.Context())
	if err != nil {
		api.SendInternalError(c, err.Error())
		return
	}

	api.SendSuccess(c, http.StatusOK, status, nil)
}

// TriggerSync runs a pass and returns its summary. A pass already running
// yields 409.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	result, err := h.syncService.RunPass(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrPassInProgress) {
			api.SendConflict(c, api.ErrCodeInProgress, err.Error())
			return
		}
		api.SendError(c, http.StatusBadGateway, api.ErrCodeUnavailable, "Reconciliation pass failed", err.Error())
		return
	}

	api.SendSuccess(c, http.StatusOK, result, nil)
}

// ListPasses returns the pass log, most recent first
func (h *SyncHandler) ListPasses(c *gin.Context) {
	var query ListPassesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		api.SendValidationError(c, "Invalid query parameters", err.Error())
		return
	}

	if err := h.validator.Struct(query); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	if query.Limit == 0 {
		query.Limit = 20
	}

	passes, err := h.syncService.ListPasses(c.Request.Context(), query.Limit, query.Offset)
	if err != nil {
		api.SendInternalError(c, err.Error())
		return
	}
	if passes == nil {
		passes = []repository.SyncPass{}
	}

	api.SendSuccess(c, http.StatusOK, passes, &api.Meta{
		Pagination: &api.PaginationMeta{
			Limit:  query.Limit,
			Offset: query.Offset,
			Count:  len(passes),
		},
	})
}
