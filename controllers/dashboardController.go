package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

// GetDashboardActions walks every open order for the company and collects
// the outstanding admin tasks, in order age then priority order.
func GetDashboardActions(c *gin.Context) {
	orders, err := models.GetOpenOrders(c.Request.Context())
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	actions := make([]workflow.Action, 0)
	for _, order := range orders {
		snap := workflow.BuildSnapshot(order)
		actions = append(actions, workflow.ResolveAdminActions(snap)...)
	}
	respondOK(c, actions)
}
