package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/craftbridge/catalog-backend/internal/http/response"
	"github.com/craftbridge/catalog-backend/internal/status"
)

type StatusHandler struct {
	projector status.Projector
}

func NewStatusHandler(projector status.Projector) *StatusHandler {
	return &StatusHandler{projector: projector}
}

// GET /v1/catalog/status/:trackingId
func (sh *StatusHandler) GetStatus(c *gin.Context) {
	snapshot, err := sh.projector.GetStatus(c.Request.Context(), c.Param("trackingId"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, snapshot)
}
