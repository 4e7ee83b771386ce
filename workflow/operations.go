package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/models"
)

// Thin per-operation entry points over Apply, one per admin or client
// action. Controllers call these; authorization happens before.

func UploadQuotation(ctx context.Context, orderId int, input *models.NewQuotation) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId:   orderId,
		Event:     Event{Type: EventQuotationUploaded},
		Quotation: input,
	})
}

func AcceptQuotation(ctx context.Context, orderId, quotationId int, decision *models.QuotationDecisionInput) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId:  orderId,
		Event:    Event{Type: EventQuotationAccepted, QuotationId: quotationId},
		Decision: decision,
	})
}

func RejectQuotation(ctx context.Context, orderId, quotationId int, decision *models.QuotationDecisionInput) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId:  orderId,
		Event:    Event{Type: EventQuotationRejected, QuotationId: quotationId},
		Decision: decision,
	})
}

func CreatePurchaseOrder(ctx context.Context, orderId int, input *models.NewPurchaseOrder) (*models.Order, *TransitionEvent, error) {
	if input != nil && input.DepositRequired && input.DepositPercentage == nil {
		return nil, nil, errors.New("deposit percentage is required when a deposit is required")
	}
	return Apply(ctx, ApplyInput{
		OrderId:       orderId,
		Event:         Event{Type: EventPurchaseOrderCreated, DepositRequired: input != nil && input.DepositRequired},
		PurchaseOrder: input,
	})
}

// RecordPayment routes by payment type: DEPOSIT and FINAL gate transitions,
// PARTIAL only appends.
func RecordPayment(ctx context.Context, orderId int, input *models.NewPayment) (*models.Order, *TransitionEvent, error) {
	if input == nil {
		return nil, nil, errors.New("payment payload is required")
	}
	var eventType EventType
	switch input.Type {
	case models.PaymentTypeDeposit:
		eventType = EventDepositRecorded
	case models.PaymentTypeFinal:
		eventType = EventFinalPaymentRecorded
	case models.PaymentTypePartial:
		eventType = EventPartialRecorded
	default:
		return nil, nil, fmt.Errorf("unknown payment type %q", input.Type)
	}
	return Apply(ctx, ApplyInput{
		OrderId: orderId,
		Event:   Event{Type: eventType},
		Payment: input,
	})
}

func StartManufacturing(ctx context.Context, orderId int) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId: orderId,
		Event:   Event{Type: EventManufacturingStarted},
	})
}

func CompleteManufacturing(ctx context.Context, orderId int) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId: orderId,
		Event:   Event{Type: EventManufacturingComplete},
	})
}

func CreateDeliveryNote(ctx context.Context, orderId int, input *models.NewDeliveryNote) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId:      orderId,
		Event:        Event{Type: EventDeliveryNoteCreated},
		DeliveryNote: input,
	})
}

func CloseOrder(ctx context.Context, orderId int) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId: orderId,
		Event:   Event{Type: EventOrderClosed},
	})
}

func CancelOrder(ctx context.Context, orderId int, reason string) (*models.Order, *TransitionEvent, error) {
	return Apply(ctx, ApplyInput{
		OrderId: orderId,
		Event:   Event{Type: EventOrderCancelled, OverrideReason: reason},
	})
}

// OverrideStage is the administrative escape hatch from stage monotonicity.
// Every override lands in history with its reason.
func OverrideStage(ctx context.Context, orderId int, stage models.OrderStage, reason string) (*models.Order, *TransitionEvent, error) {
	if config.StrictStageOverrideAudit() && reason == "" {
		return nil, nil, errors.New("a reason is required for stage overrides")
	}
	return Apply(ctx, ApplyInput{
		OrderId: orderId,
		Event:   Event{Type: EventStageOverridden, OverrideStage: stage, OverrideReason: reason},
	})
}
