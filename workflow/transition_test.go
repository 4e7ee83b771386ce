package workflow_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func snapshotAt(stage models.OrderStage, mutate ...func(*models.Order)) *workflow.OrderSnapshot {
	status, _ := workflow.StatusForStage(stage)
	order := &models.Order{
		ID:        7,
		CompanyId: "co-1",
		ClientId:  3,
		Status:    status,
		Stage:     stage,
		Version:   2,
	}
	for _, m := range mutate {
		m(order)
	}
	return workflow.BuildSnapshot(order)
}

func withPendingQuotation(id int) func(*models.Order) {
	return func(o *models.Order) {
		o.Quotations = append(o.Quotations, models.Quotation{
			ID: id, OrderId: o.ID, CompanyId: o.CompanyId,
			Decision: models.QuotationDecisionPending,
			FileRef:  "quotations/q.pdf",
		})
	}
}

func withAcceptedQuotation(id int) func(*models.Order) {
	return func(o *models.Order) {
		o.Quotations = append(o.Quotations, models.Quotation{
			ID: id, OrderId: o.ID, CompanyId: o.CompanyId,
			Decision: models.QuotationDecisionAccepted,
			FileRef:  "quotations/q.pdf",
		})
	}
}

func withPurchaseOrder() func(*models.Order) {
	return func(o *models.Order) {
		o.PurchaseOrders = append(o.PurchaseOrders, models.PurchaseOrder{ID: 1, OrderId: o.ID})
	}
}

func withDeliveryNote() func(*models.Order) {
	return func(o *models.Order) {
		o.DeliveryNotes = append(o.DeliveryNotes, models.DeliveryNote{ID: 1, OrderId: o.ID})
	}
}

func mustValidate(t *testing.T, snap *workflow.OrderSnapshot, ev workflow.Event) *workflow.Transition {
	t.Helper()
	tr, err := workflow.Validate(snap, ev)
	if err != nil {
		t.Fatalf("Validate(%s): %v", ev.Type, err)
	}
	return tr
}

func wantPrecondition(t *testing.T, snap *workflow.OrderSnapshot, ev workflow.Event) *workflow.PreconditionError {
	t.Helper()
	_, err := workflow.Validate(snap, ev)
	var pre *workflow.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("Validate(%s): expected PreconditionError, got %v", ev.Type, err)
	}
	return pre
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		snap := snapshotAt(models.StageInManufacturing, func(o *models.Order) { o.Status = status })
		for _, evType := range []workflow.EventType{
			workflow.EventQuotationUploaded,
			workflow.EventDepositRecorded,
			workflow.EventOrderClosed,
			workflow.EventOrderCancelled,
			workflow.EventStageOverridden,
		} {
			_, err := workflow.Validate(snap, workflow.Event{Type: evType, OverrideStage: models.StageReceived})
			var terminal *workflow.TerminalStateError
			if !errors.As(err, &terminal) {
				t.Fatalf("status %s event %s: expected TerminalStateError, got %v", status, evType, err)
			}
		}
	}
}

func TestQuotationUpload(t *testing.T) {
	tr := mustValidate(t, snapshotAt(models.StageReceived), workflow.Event{Type: workflow.EventQuotationUploaded})
	if tr.ToStage != models.StageQuotationSent {
		t.Fatalf("ToStage = %s, want QUOTATION_SENT", tr.ToStage)
	}

	// Re-upload once the quotation is already out is refused.
	wantPrecondition(t, snapshotAt(models.StageQuotationSent), workflow.Event{Type: workflow.EventQuotationUploaded})
	wantPrecondition(t, snapshotAt(models.StageInManufacturing), workflow.Event{Type: workflow.EventQuotationUploaded})
}

func TestQuotationAccept(t *testing.T) {
	snap := snapshotAt(models.StageQuotationSent, withPendingQuotation(11))
	tr := mustValidate(t, snap, workflow.Event{Type: workflow.EventQuotationAccepted, QuotationId: 11})
	if tr.ToStage != models.StageQuotationAccepted || tr.ToStatus != models.OrderStatusApproved {
		t.Fatalf("got %s/%s, want QUOTATION_ACCEPTED/APPROVED", tr.ToStage, tr.ToStatus)
	}
	if tr.AcceptQuotationId != 11 || !tr.RejectOtherOpen {
		t.Fatalf("accept side effects wrong: %+v", tr)
	}

	// Wrong stage.
	wantPrecondition(t, snapshotAt(models.StageReceived, withPendingQuotation(11)),
		workflow.Event{Type: workflow.EventQuotationAccepted, QuotationId: 11})

	// Unknown quotation id.
	wantPrecondition(t, snap, workflow.Event{Type: workflow.EventQuotationAccepted, QuotationId: 99})

	// Already decided.
	decided := snapshotAt(models.StageQuotationSent, withAcceptedQuotation(11))
	wantPrecondition(t, decided, workflow.Event{Type: workflow.EventQuotationAccepted, QuotationId: 11})

	// No document attached.
	noFile := snapshotAt(models.StageQuotationSent, func(o *models.Order) {
		o.Quotations = append(o.Quotations, models.Quotation{ID: 12, Decision: models.QuotationDecisionPending})
	})
	wantPrecondition(t, noFile, workflow.Event{Type: workflow.EventQuotationAccepted, QuotationId: 12})
}

func TestQuotationRejectMovesBackwards(t *testing.T) {
	snap := snapshotAt(models.StageQuotationSent, withPendingQuotation(11))
	tr := mustValidate(t, snap, workflow.Event{Type: workflow.EventQuotationRejected, QuotationId: 11})
	if tr.ToStage != models.StageQuotationPreparation {
		t.Fatalf("ToStage = %s, want QUOTATION_PREPARATION", tr.ToStage)
	}
	if tr.RejectQuotationId != 11 {
		t.Fatalf("RejectQuotationId = %d, want 11", tr.RejectQuotationId)
	}
	// Status bucket does not regress on rejection.
	if tr.ToStatus != tr.FromStatus {
		t.Fatalf("status changed on rejection: %s -> %s", tr.FromStatus, tr.ToStatus)
	}
}

func TestPurchaseOrderCreation(t *testing.T) {
	base := snapshotAt(models.StageQuotationAccepted, withAcceptedQuotation(11))

	noDeposit := mustValidate(t, base, workflow.Event{Type: workflow.EventPurchaseOrderCreated})
	if noDeposit.ToStage != models.StagePOPrepared {
		t.Fatalf("no-deposit ToStage = %s, want PO_PREPARED", noDeposit.ToStage)
	}

	deposit := mustValidate(t, base, workflow.Event{Type: workflow.EventPurchaseOrderCreated, DepositRequired: true})
	if deposit.ToStage != models.StageAwaitingDeposit {
		t.Fatalf("deposit ToStage = %s, want AWAITING_DEPOSIT", deposit.ToStage)
	}

	// Without an accepted quotation.
	pre := wantPrecondition(t, snapshotAt(models.StageQuotationAccepted),
		workflow.Event{Type: workflow.EventPurchaseOrderCreated})
	if pre.Reason != "cannot create Purchase Order: no accepted quotation" {
		t.Fatalf("unexpected reason %q", pre.Reason)
	}

	// A second PO is refused.
	wantPrecondition(t, snapshotAt(models.StageQuotationAccepted, withAcceptedQuotation(11), withPurchaseOrder()),
		workflow.Event{Type: workflow.EventPurchaseOrderCreated})
}

func TestDepositRecording(t *testing.T) {
	tr := mustValidate(t, snapshotAt(models.StageAwaitingDeposit), workflow.Event{Type: workflow.EventDepositRecorded})
	if tr.ToStage != models.StageDepositReceived || !tr.MarkDepositPaid {
		t.Fatalf("deposit transition wrong: %+v", tr)
	}

	// Duplicate deposit: accepted, but nothing moves.
	dup := snapshotAt(models.StageInManufacturing, func(o *models.Order) { o.DepositPaid = true })
	tr = mustValidate(t, dup, workflow.Event{Type: workflow.EventDepositRecorded})
	if !tr.NoStageChange {
		t.Fatalf("duplicate deposit should be NoStageChange: %+v", tr)
	}
	if tr.MarkDepositPaid {
		t.Fatal("duplicate deposit must not re-mark the flag")
	}

	// Deposit at the wrong stage (not yet due).
	wantPrecondition(t, snapshotAt(models.StageQuotationSent), workflow.Event{Type: workflow.EventDepositRecorded})
}

func TestPartialPaymentNeverMoves(t *testing.T) {
	for _, stage := range []models.OrderStage{models.StageReceived, models.StageInManufacturing, models.StageAwaitingFinalPayment} {
		tr := mustValidate(t, snapshotAt(stage), workflow.Event{Type: workflow.EventPartialRecorded})
		if !tr.NoStageChange {
			t.Fatalf("partial payment at %s should be NoStageChange", stage)
		}
	}
}

func TestManufacturingStart(t *testing.T) {
	tr := mustValidate(t, snapshotAt(models.StageDepositReceived), workflow.Event{Type: workflow.EventManufacturingStarted})
	if tr.ToStage != models.StageInManufacturing {
		t.Fatalf("ToStage = %s, want IN_MANUFACTURING", tr.ToStage)
	}

	// PO_PREPARED with no deposit required also starts.
	tr = mustValidate(t, snapshotAt(models.StagePOPrepared), workflow.Event{Type: workflow.EventManufacturingStarted})
	if tr.ToStage != models.StageInManufacturing {
		t.Fatalf("ToStage = %s, want IN_MANUFACTURING", tr.ToStage)
	}

	// PO_PREPARED with the deposit still outstanding is blocked.
	pct := decimalPtr("30")
	blocked := snapshotAt(models.StagePOPrepared, func(o *models.Order) { o.DepositPercentage = pct })
	wantPrecondition(t, blocked, workflow.Event{Type: workflow.EventManufacturingStarted})

	wantPrecondition(t, snapshotAt(models.StageQuotationSent), workflow.Event{Type: workflow.EventManufacturingStarted})
}

func TestManufacturingCompletePassesThrough(t *testing.T) {
	tr := mustValidate(t, snapshotAt(models.StageInManufacturing), workflow.Event{Type: workflow.EventManufacturingComplete})
	if tr.ToStage != models.StageReadyForDelivery {
		t.Fatalf("ToStage = %s, want READY_FOR_DELIVERY", tr.ToStage)
	}
	if !reflect.DeepEqual(tr.PassThroughStages, []models.OrderStage{models.StageManufacturingDone}) {
		t.Fatalf("PassThroughStages = %v", tr.PassThroughStages)
	}
}

func TestDeliveryNotePassesThrough(t *testing.T) {
	tr := mustValidate(t, snapshotAt(models.StageReadyForDelivery), workflow.Event{Type: workflow.EventDeliveryNoteCreated})
	if tr.ToStage != models.StageAwaitingFinalPayment {
		t.Fatalf("ToStage = %s, want AWAITING_FINAL_PAYMENT", tr.ToStage)
	}
	if !reflect.DeepEqual(tr.PassThroughStages, []models.OrderStage{models.StageDeliveryNoteSent}) {
		t.Fatalf("PassThroughStages = %v", tr.PassThroughStages)
	}
}

func TestFinalPaymentNeedsDeliveryNote(t *testing.T) {
	// No delivery note: refused regardless of stage.
	pre := wantPrecondition(t, snapshotAt(models.StageAwaitingFinalPayment),
		workflow.Event{Type: workflow.EventFinalPaymentRecorded})
	if pre.Reason != "cannot record final payment: no delivery note exists" {
		t.Fatalf("unexpected reason %q", pre.Reason)
	}

	snap := snapshotAt(models.StageAwaitingFinalPayment, withDeliveryNote())
	tr := mustValidate(t, snap, workflow.Event{Type: workflow.EventFinalPaymentRecorded})
	if tr.ToStage != models.StageFinalPaymentReceived || !tr.MarkFinalPayment {
		t.Fatalf("final payment transition wrong: %+v", tr)
	}

	// Delivery note exists but order has not reached the awaiting stage.
	wantPrecondition(t, snapshotAt(models.StageInManufacturing, withDeliveryNote()),
		workflow.Event{Type: workflow.EventFinalPaymentRecorded})
}

func TestCloseAndCancel(t *testing.T) {
	tr := mustValidate(t, snapshotAt(models.StageFinalPaymentReceived), workflow.Event{Type: workflow.EventOrderClosed})
	if tr.ToStage != models.StageCompletedDelivered || tr.ToStatus != models.OrderStatusCompleted {
		t.Fatalf("close transition wrong: %+v", tr)
	}
	wantPrecondition(t, snapshotAt(models.StageInManufacturing), workflow.Event{Type: workflow.EventOrderClosed})

	// Cancel works from any non-terminal point and leaves the stage alone.
	snap := snapshotAt(models.StageInManufacturing)
	tr = mustValidate(t, snap, workflow.Event{Type: workflow.EventOrderCancelled, OverrideReason: "client withdrew"})
	if tr.ToStatus != models.OrderStatusCancelled {
		t.Fatalf("ToStatus = %s, want CANCELLED", tr.ToStatus)
	}
	if tr.ToStage != snap.Stage {
		t.Fatalf("cancel moved the stage: %s -> %s", snap.Stage, tr.ToStage)
	}
}

func TestStageOverride(t *testing.T) {
	snap := snapshotAt(models.StageInManufacturing)
	tr := mustValidate(t, snap, workflow.Event{
		Type:           workflow.EventStageOverridden,
		OverrideStage:  models.StageQuotationSent,
		OverrideReason: "re-quote after scope change",
	})
	if tr.ToStage != models.StageQuotationSent {
		t.Fatalf("ToStage = %s, want QUOTATION_SENT", tr.ToStage)
	}
	if tr.ToStatus != models.OrderStatusPending {
		t.Fatalf("ToStatus = %s, want PENDING", tr.ToStatus)
	}

	_, err := workflow.Validate(snap, workflow.Event{Type: workflow.EventStageOverridden, OverrideStage: "NOT_A_STAGE"})
	var unknown *workflow.UnknownStageError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownStageError, got %v", err)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	snap := snapshotAt(models.StageQuotationSent, withPendingQuotation(11))
	ev := workflow.Event{Type: workflow.EventQuotationAccepted, QuotationId: 11}

	first := mustValidate(t, snap, ev)
	second := mustValidate(t, snap, ev)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same snapshot and event produced different transitions:\n%+v\n%+v", first, second)
	}
}
