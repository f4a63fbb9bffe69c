package handlers

import (
	"context"
	"net/http"

	"storage-sync/internal/api"

	"github.com/gin-gonic/gin"
)

// RecipientCounter counts local recipients per kind.
type RecipientCounter interface {
	CountByKind(ctx context.Context) (map[string]int64, error)
}

type RecipientHandler struct {
	recipients RecipientCounter
}

func NewRecipientHandler(recipients RecipientCounter) *RecipientHandler {
	return &RecipientHandler{recipients: recipients}
}

// RecipientSummary is the number of local recipients by kind
type RecipientSummary struct {
	Total  int64            `json:"total"`
	ByKind map[string]int64 `json:"by_kind"`
}

// GetSummary returns recipient counts by kind
func (h *RecipientHandler) GetSummary(c *gin.Context) {
	counts, err := h.recipients.CountByKind(c.Request.Context())
	if err != nil {
		api.SendInternalError(c, err.Error())
		return
	}

	summary := RecipientSummary{ByKind: counts}
	for _, n := range counts {
		summary.Total += n
	}
	if summary.ByKind == nil {
		summary.ByKind = map[string]int64{}
	}

	api.SendSuccess(c, http.StatusOK, summary, nil)
}
