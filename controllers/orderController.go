package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

// transitionResponse is the common payload for every lifecycle endpoint: the
// refreshed order plus what the transition did.
func transitionResponse(c *gin.Context, order *models.Order, ev *workflow.TransitionEvent) {
	respondOK(c, gin.H{"order": order, "transition": ev})
}

func CreateOrder(c *gin.Context) {
	var input models.NewOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, err := models.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondCreated(c, order)
}

func GetOrders(c *gin.Context) {
	var filter models.OrderFilter
	if v := c.Query("status"); v != "" {
		status := models.OrderStatus(v)
		filter.Status = &status
	}
	if v := c.Query("stage"); v != "" {
		stage := models.OrderStage(v)
		filter.Stage = &stage
	}
	if v := c.Query("client_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.ClientId = &id
		}
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	orders, err := models.GetOrders(c.Request.Context(), filter)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, orders)
}

// GetOrder returns the aggregate plus the derived view the admin UI renders:
// stage label, progress, consistency warnings and outstanding admin actions.
func GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := models.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	snap := workflow.BuildSnapshot(order)
	label, _ := workflow.StageLabel(order.Stage)
	progress, _ := workflow.ProgressPercent(order.Stage)

	respondOK(c, gin.H{
		"order":            order,
		"stage_label":      label,
		"progress_percent": progress,
		"warnings":         snap.Warnings,
		"actions":          workflow.ResolveAdminActions(snap),
	})
}

func GetOrderHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	// Scoped read first so a foreign order id yields 404, not an empty list.
	if _, err := models.GetOrder(c.Request.Context(), id); err != nil {
		respondTransitionError(c, err)
		return
	}
	histories, err := models.GetOrderHistories(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, histories)
}

func UploadQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewQuotation
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, ev, err := workflow.UploadQuotation(c.Request.Context(), id, &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

func CreatePurchaseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, ev, err := workflow.CreatePurchaseOrder(c.Request.Context(), id, &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

func RecordPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewPayment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, ev, err := workflow.RecordPayment(c.Request.Context(), id, &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

func GetPayments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payments, err := models.GetPayments(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	respondOK(c, payments)
}

func StartManufacturing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, ev, err := workflow.StartManufacturing(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

func CompleteManufacturing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, ev, err := workflow.CompleteManufacturing(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

func CreateDeliveryNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewDeliveryNote
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, ev, err := workflow.CreateDeliveryNote(c.Request.Context(), id, &input)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

func CloseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, ev, err := workflow.CloseOrder(c.Request.Context(), id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

type cancelOrderInput struct {
	Reason string `json:"reason"`
}

func CancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input cancelOrderInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, ev, err := workflow.CancelOrder(c.Request.Context(), id, input.Reason)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}

type overrideStageInput struct {
	Stage  models.OrderStage `json:"stage" binding:"required"`
	Reason string            `json:"reason"`
}

func OverrideStage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input overrideStageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, ev, err := workflow.OverrideStage(c.Request.Context(), id, input.Stage, input.Reason)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	transitionResponse(c, order, ev)
}
