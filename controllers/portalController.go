package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/utils"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

// resolvePortalOrder authenticates a portal request by tracking token and
// returns the order plus a context carrying the client's identity. The token
// is the sole credential; the tenant scope comes from the order it resolves.
func resolvePortalOrder(c *gin.Context) (*models.Order, context.Context, bool) {
	token := c.Param("token")
	order, err := models.GetOrderByToken(c.Request.Context(), token)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "order not found")
		return nil, nil, false
	}

	ctx := utils.SetCompanyIdInContext(c.Request.Context(), order.CompanyId)
	ctx = utils.SetClientIdInContext(ctx, order.ClientId)
	ctx = utils.SetActorRoleInContext(ctx, string(models.ActorRoleClient))
	if client, err := models.GetClient(ctx, order.ClientId); err == nil {
		ctx = utils.SetUserNameInContext(ctx, client.Name)
	}
	return order, ctx, true
}

// portalOrderView is the client-facing projection: no internal audit trail,
// no purchase order detail, just the state the client needs to act on.
func portalOrderView(order *models.Order) gin.H {
	snap := workflow.BuildSnapshot(order)
	label, _ := workflow.StageLabel(order.Stage)
	progress, _ := workflow.ProgressPercent(order.Stage)

	acks, err := workflow.LoadClientAckSet(order.ClientId)
	if err != nil {
		// Degrade to an unsuppressed action list rather than fail the view.
		acks = nil
	}

	return gin.H{
		"order_number":     order.OrderNumber,
		"title":            order.Title,
		"status":           order.Status,
		"stage":            order.Stage,
		"stage_label":      label,
		"progress_percent": progress,
		"total_amount":     order.TotalAmount,
		"currency":         order.Currency,
		"deposit_amount":   order.DepositAmount,
		"deposit_paid":     order.DepositPaid,
		"quotations":       order.Quotations,
		"delivery_notes":   order.DeliveryNotes,
		"actions":          workflow.ResolveClientActions(snap, acks),
	}
}

func GetPortalOrder(c *gin.Context) {
	order, _, ok := resolvePortalOrder(c)
	if !ok {
		return
	}
	respondOK(c, portalOrderView(order))
}

func PortalAcceptQuotation(c *gin.Context) {
	order, ctx, ok := resolvePortalOrder(c)
	if !ok {
		return
	}
	qid, ok := pathID(c, "quotationId")
	if !ok {
		return
	}

	var input models.QuotationDecisionInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updated, _, err := workflow.AcceptQuotation(ctx, order.ID, qid, &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, portalOrderView(updated))
}

func PortalRejectQuotation(c *gin.Context) {
	order, ctx, ok := resolvePortalOrder(c)
	if !ok {
		return
	}
	qid, ok := pathID(c, "quotationId")
	if !ok {
		return
	}

	var input models.QuotationDecisionInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updated, _, err := workflow.RejectQuotation(ctx, order.ID, qid, &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, portalOrderView(updated))
}

type acknowledgeInput struct {
	AckKey string `json:"ack_key" binding:"required"`
}

// PortalAcknowledgeAction marks one action as seen. Advisory only; it never
// touches order state, and the action re-surfaces if the condition recurs
// under a new key.
func PortalAcknowledgeAction(c *gin.Context) {
	order, _, ok := resolvePortalOrder(c)
	if !ok {
		return
	}

	var input acknowledgeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := workflow.AcknowledgeClientAction(order.ClientId, input.AckKey); err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, portalOrderView(order))
}
