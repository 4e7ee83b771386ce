package workflow

import (
	"github.com/gulfstream-dynamics/crm_backend/models"
)

// StageCatalog is the single source of truth for stage ordering. Position in
// this slice is the stage index used by every monotonicity check and by the
// progress projection.
var StageCatalog = []models.OrderStage{
	models.StageReceived,
	models.StageUnderReview,
	models.StageQuotationPreparation,
	models.StageQuotationSent,
	models.StageQuotationAccepted,
	models.StagePOPrepared,
	models.StageAwaitingDeposit,
	models.StageDepositReceived,
	models.StageInManufacturing,
	models.StageManufacturingDone,
	models.StageReadyForDelivery,
	models.StageDeliveryNoteSent,
	models.StageAwaitingFinalPayment,
	models.StageFinalPaymentReceived,
	models.StageCompletedDelivered,
}

var stageIndexes = func() map[models.OrderStage]int {
	m := make(map[models.OrderStage]int, len(StageCatalog))
	for i, s := range StageCatalog {
		m[s] = i
	}
	return m
}()

var stageLabels = map[models.OrderStage]string{
	models.StageReceived:             "Order Received",
	models.StageUnderReview:          "Under Review",
	models.StageQuotationPreparation: "Preparing Quotation",
	models.StageQuotationSent:        "Quotation Sent",
	models.StageQuotationAccepted:    "Quotation Accepted",
	models.StagePOPrepared:           "Purchase Order Prepared",
	models.StageAwaitingDeposit:      "Awaiting Deposit",
	models.StageDepositReceived:      "Deposit Received",
	models.StageInManufacturing:      "In Manufacturing",
	models.StageManufacturingDone:    "Manufacturing Complete",
	models.StageReadyForDelivery:     "Ready for Delivery",
	models.StageDeliveryNoteSent:     "Delivery Note Sent",
	models.StageAwaitingFinalPayment: "Awaiting Final Payment",
	models.StageFinalPaymentReceived: "Final Payment Received",
	models.StageCompletedDelivered:   "Completed & Delivered",
}

// StageIndex returns the 0-based catalog position of a stage.
func StageIndex(stage models.OrderStage) (int, error) {
	idx, ok := stageIndexes[stage]
	if !ok {
		return 0, &UnknownStageError{Stage: string(stage)}
	}
	return idx, nil
}

// StageLabel returns the display label for a stage.
func StageLabel(stage models.OrderStage) (string, error) {
	label, ok := stageLabels[stage]
	if !ok {
		return "", &UnknownStageError{Stage: string(stage)}
	}
	return label, nil
}

// StatusForStage maps a stage onto the coarse status bucket that shadows it.
func StatusForStage(stage models.OrderStage) (models.OrderStatus, error) {
	idx, err := StageIndex(stage)
	if err != nil {
		return "", err
	}
	acceptedIdx := stageIndexes[models.StageQuotationAccepted]
	completedIdx := stageIndexes[models.StageCompletedDelivered]
	switch {
	case idx < acceptedIdx:
		return models.OrderStatusPending, nil
	case idx < completedIdx:
		return models.OrderStatusApproved, nil
	default:
		return models.OrderStatusCompleted, nil
	}
}
