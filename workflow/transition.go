package workflow

import (
	"fmt"

	"github.com/gulfstream-dynamics/crm_backend/models"
)

type EventType string

const (
	EventQuotationUploaded     EventType = "QUOTATION_UPLOADED"
	EventQuotationAccepted     EventType = "QUOTATION_ACCEPTED"
	EventQuotationRejected     EventType = "QUOTATION_REJECTED"
	EventPurchaseOrderCreated  EventType = "PURCHASE_ORDER_CREATED"
	EventDepositRecorded       EventType = "DEPOSIT_RECORDED"
	EventPartialRecorded       EventType = "PARTIAL_PAYMENT_RECORDED"
	EventManufacturingStarted  EventType = "MANUFACTURING_STARTED"
	EventManufacturingComplete EventType = "MANUFACTURING_COMPLETED"
	EventDeliveryNoteCreated   EventType = "DELIVERY_NOTE_CREATED"
	EventFinalPaymentRecorded  EventType = "FINAL_PAYMENT_RECORDED"
	EventOrderClosed           EventType = "ORDER_CLOSED"
	EventOrderCancelled        EventType = "ORDER_CANCELLED"
	EventStageOverridden       EventType = "STAGE_OVERRIDDEN"
)

// Event is a requested change against one order.
type Event struct {
	Type EventType

	// QuotationId targets accept/reject decisions.
	QuotationId int
	// DepositRequired applies to PURCHASE_ORDER_CREATED.
	DepositRequired bool
	// OverrideStage and OverrideReason apply to STAGE_OVERRIDDEN.
	OverrideStage  models.OrderStage
	OverrideReason string
}

// Transition is the validator's verdict: where the order moves and what must
// happen alongside. PassThroughStages are stages crossed inside the same
// transition (recorded in history, never persisted as a resting stage).
type Transition struct {
	Event      EventType
	FromStage  models.OrderStage
	ToStage    models.OrderStage
	FromStatus models.OrderStatus
	ToStatus   models.OrderStatus

	PassThroughStages []models.OrderStage

	// NoStageChange marks accepted events that append data without moving
	// the order (e.g. a repeat DEPOSIT payment). No history row is written.
	NoStageChange bool

	MarkDepositPaid  bool
	MarkFinalPayment bool
	// AcceptQuotationId / RejectQuotationId drive quotation decision side
	// effects; RejectOtherOpen closes every other pending quotation when one
	// is accepted.
	AcceptQuotationId int
	RejectQuotationId int
	RejectOtherOpen   bool

	HistoryAction string
	Description   string
}

// Validate decides whether the event is legal for the snapshot. Pure: no
// I/O, no side effects, deterministic. First matching guard wins.
func Validate(snap *OrderSnapshot, ev Event) (*Transition, error) {
	if snap.Status.IsTerminal() {
		return nil, &TerminalStateError{OrderId: snap.OrderId, Status: snap.Status}
	}

	stageIdx, err := StageIndex(snap.Stage)
	if err != nil {
		return nil, err
	}

	t := &Transition{
		Event:      ev.Type,
		FromStage:  snap.Stage,
		ToStage:    snap.Stage,
		FromStatus: snap.Status,
		ToStatus:   snap.Status,
	}

	switch ev.Type {
	case EventQuotationUploaded:
		sentIdx, _ := StageIndex(models.StageQuotationSent)
		if stageIdx >= sentIdx {
			return nil, &PreconditionError{Event: ev.Type, Reason: fmt.Sprintf("order is already at %s", snap.Stage)}
		}
		t.ToStage = models.StageQuotationSent
		t.HistoryAction = "QUOTATION_SENT"
		t.Description = "Quotation sent to client."

	case EventQuotationAccepted:
		if snap.Stage != models.StageQuotationSent {
			return nil, &PreconditionError{Event: ev.Type, Reason: "no quotation is awaiting a decision"}
		}
		q, err := decidableQuotation(snap, ev.QuotationId, ev.Type)
		if err != nil {
			return nil, err
		}
		t.ToStage = models.StageQuotationAccepted
		t.ToStatus = models.OrderStatusApproved
		t.AcceptQuotationId = q.ID
		t.RejectOtherOpen = true
		t.HistoryAction = "QUOTATION_ACCEPTED"
		t.Description = "Client accepted the quotation."

	case EventQuotationRejected:
		if snap.Stage != models.StageQuotationSent {
			return nil, &PreconditionError{Event: ev.Type, Reason: "no quotation is awaiting a decision"}
		}
		q, err := decidableQuotation(snap, ev.QuotationId, ev.Type)
		if err != nil {
			return nil, err
		}
		// Rejection reopens quotation preparation; this is the one normal
		// transition that moves the stage backwards.
		t.ToStage = models.StageQuotationPreparation
		t.RejectQuotationId = q.ID
		t.HistoryAction = "QUOTATION_REJECTED"
		t.Description = "Client rejected the quotation; preparing a new one."

	case EventPurchaseOrderCreated:
		if snap.HasPurchaseOrder {
			return nil, &PreconditionError{Event: ev.Type, Reason: "PO already exists for this order"}
		}
		if !snap.HasAcceptedQuotation {
			return nil, &PreconditionError{Event: ev.Type, Reason: "cannot create Purchase Order: no accepted quotation"}
		}
		if snap.Stage != models.StageQuotationAccepted {
			return nil, &PreconditionError{Event: ev.Type, Reason: fmt.Sprintf("order is at %s, expected %s", snap.Stage, models.StageQuotationAccepted)}
		}
		if ev.DepositRequired {
			t.ToStage = models.StageAwaitingDeposit
		} else {
			t.ToStage = models.StagePOPrepared
		}
		t.HistoryAction = "PO_CREATED"
		t.Description = "Purchase order created."

	case EventDepositRecorded:
		if snap.DepositPaid {
			// Deposit already covered: the payment row is still appended
			// (payments are append-only) but no state toggles twice.
			t.NoStageChange = true
			return t, nil
		}
		if snap.Stage != models.StageAwaitingDeposit {
			return nil, &PreconditionError{Event: ev.Type, Reason: "order is not awaiting a deposit"}
		}
		t.ToStage = models.StageDepositReceived
		t.MarkDepositPaid = true
		t.HistoryAction = "DEPOSIT_RECEIVED"
		t.Description = "Deposit payment received."

	case EventPartialRecorded:
		// Partial payments never move the lifecycle.
		t.NoStageChange = true
		return t, nil

	case EventManufacturingStarted:
		switch snap.Stage {
		case models.StageDepositReceived:
		case models.StagePOPrepared:
			if snap.DepositOutstanding {
				return nil, &PreconditionError{Event: ev.Type, Reason: "deposit is still outstanding"}
			}
		default:
			return nil, &PreconditionError{Event: ev.Type, Reason: fmt.Sprintf("order is at %s, expected %s or %s", snap.Stage, models.StagePOPrepared, models.StageDepositReceived)}
		}
		t.ToStage = models.StageInManufacturing
		t.HistoryAction = "MANUFACTURING_STARTED"
		t.Description = "Manufacturing started."

	case EventManufacturingComplete:
		if snap.Stage != models.StageInManufacturing {
			return nil, &PreconditionError{Event: ev.Type, Reason: "order is not in manufacturing"}
		}
		t.ToStage = models.StageReadyForDelivery
		t.PassThroughStages = []models.OrderStage{models.StageManufacturingDone}
		t.HistoryAction = "MANUFACTURING_COMPLETED"
		t.Description = "Manufacturing complete; ready for delivery."

	case EventDeliveryNoteCreated:
		if snap.Stage != models.StageReadyForDelivery {
			return nil, &PreconditionError{Event: ev.Type, Reason: "order is not ready for delivery"}
		}
		t.ToStage = models.StageAwaitingFinalPayment
		t.PassThroughStages = []models.OrderStage{models.StageDeliveryNoteSent}
		t.HistoryAction = "DELIVERY_NOTE_SENT"
		t.Description = "Delivery note sent; awaiting final payment."

	case EventFinalPaymentRecorded:
		if !snap.HasDeliveryNote {
			return nil, &PreconditionError{Event: ev.Type, Reason: "cannot record final payment: no delivery note exists"}
		}
		if snap.Stage != models.StageAwaitingFinalPayment {
			return nil, &PreconditionError{Event: ev.Type, Reason: "order is not awaiting final payment"}
		}
		t.ToStage = models.StageFinalPaymentReceived
		t.MarkFinalPayment = true
		t.HistoryAction = "FINAL_PAYMENT_RECEIVED"
		t.Description = "Final payment received."

	case EventOrderClosed:
		if snap.Stage != models.StageFinalPaymentReceived {
			return nil, &PreconditionError{Event: ev.Type, Reason: "final payment has not been received"}
		}
		t.ToStage = models.StageCompletedDelivered
		t.ToStatus = models.OrderStatusCompleted
		t.HistoryAction = "ORDER_CLOSED"
		t.Description = "Order closed and delivered."

	case EventOrderCancelled:
		// Stage is left untouched; CANCELLED is absorbing.
		t.ToStatus = models.OrderStatusCancelled
		t.HistoryAction = "ORDER_CANCELLED"
		t.Description = "Order cancelled."
		if ev.OverrideReason != "" {
			t.Description = "Order cancelled: " + ev.OverrideReason
		}

	case EventStageOverridden:
		if _, err := StageIndex(ev.OverrideStage); err != nil {
			return nil, err
		}
		status, err := StatusForStage(ev.OverrideStage)
		if err != nil {
			return nil, err
		}
		t.ToStage = ev.OverrideStage
		t.ToStatus = status
		t.HistoryAction = "STAGE_OVERRIDDEN"
		t.Description = fmt.Sprintf("Stage manually set to %s.", ev.OverrideStage)
		if ev.OverrideReason != "" {
			t.Description = fmt.Sprintf("Stage manually set to %s: %s", ev.OverrideStage, ev.OverrideReason)
		}

	default:
		return nil, &PreconditionError{Event: ev.Type, Reason: "unknown event"}
	}

	return t, nil
}

func decidableQuotation(snap *OrderSnapshot, quotationId int, evType EventType) (*models.Quotation, error) {
	for i := range snap.Quotations {
		q := &snap.Quotations[i]
		if q.ID != quotationId {
			continue
		}
		if q.Decision != models.QuotationDecisionPending {
			return nil, &PreconditionError{
				Event:  evType,
				Reason: fmt.Sprintf("quotation %d is already %s", q.ID, q.Decision),
			}
		}
		if q.FileRef == "" {
			return nil, &PreconditionError{
				Event:  evType,
				Reason: fmt.Sprintf("quotation %d has no document to review", q.ID),
			}
		}
		return q, nil
	}
	return nil, &PreconditionError{
		Event:  evType,
		Reason: fmt.Sprintf("quotation %d does not belong to order %d", quotationId, snap.OrderId),
	}
}
