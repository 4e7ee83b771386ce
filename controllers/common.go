package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gulfstream-dynamics/crm_backend/utils"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondTransitionError maps the workflow error taxonomy onto HTTP codes so
// the caller can tell "wrong state" from "someone else changed this" from
// "not found".
func respondTransitionError(c *gin.Context, err error) {
	var precondition *workflow.PreconditionError
	var terminal *workflow.TerminalStateError
	var concurrent *workflow.ConcurrentModificationError
	var unknownStage *workflow.UnknownStageError

	switch {
	case errors.As(err, &precondition):
		respondError(c, http.StatusUnprocessableEntity, "PRECONDITION_FAILED", precondition.Error())
	case errors.As(err, &terminal):
		respondError(c, http.StatusConflict, "TERMINAL_STATE", terminal.Error())
	case errors.As(err, &concurrent):
		respondError(c, http.StatusConflict, "CONCURRENT_MODIFICATION", concurrent.Error())
	case errors.As(err, &unknownStage):
		respondError(c, http.StatusInternalServerError, "UNKNOWN_STAGE", unknownStage.Error())
	case errors.Is(err, utils.ErrorRecordNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "record not found")
	case errors.Is(err, utils.ErrorUnauthorized):
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	default:
		respondError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	}
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid "+name)
		return 0, false
	}
	return id, true
}
