package workflow_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

func warningCodes(snap *workflow.OrderSnapshot) []string {
	codes := make([]string, 0, len(snap.Warnings))
	for _, w := range snap.Warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func hasWarning(snap *workflow.OrderSnapshot, code string) bool {
	for _, w := range snap.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestSnapshotDerivedFlags(t *testing.T) {
	snap := snapshotAt(models.StageQuotationSent,
		withPendingQuotation(11),
		withPendingQuotation(12),
	)

	if !snap.HasPendingQuotationReview {
		t.Fatal("HasPendingQuotationReview should be true")
	}
	if len(snap.PendingQuotationIds) != 2 {
		t.Fatalf("PendingQuotationIds = %v, want two entries", snap.PendingQuotationIds)
	}
	if snap.HasAcceptedQuotation || snap.HasPurchaseOrder || snap.HasDeliveryNote {
		t.Fatalf("unexpected derived flags: %+v", snap)
	}
	if len(snap.Warnings) != 0 {
		t.Fatalf("clean aggregate produced warnings: %v", warningCodes(snap))
	}
}

func TestSnapshotDepositOutstanding(t *testing.T) {
	pct := decimalPtr("30")

	due := snapshotAt(models.StageAwaitingDeposit, func(o *models.Order) { o.DepositPercentage = pct })
	if !due.DepositOutstanding {
		t.Fatal("DepositOutstanding should be true when a percentage is set and nothing is paid")
	}

	// No deposit required: nothing outstanding.
	none := snapshotAt(models.StagePOPrepared)
	if none.DepositOutstanding {
		t.Fatal("DepositOutstanding should be false without a deposit requirement")
	}
}

func TestSnapshotFinalPaymentOutstanding(t *testing.T) {
	snap := snapshotAt(models.StageAwaitingFinalPayment, withDeliveryNote())
	if !snap.FinalPaymentOutstanding {
		t.Fatal("FinalPaymentOutstanding should be true once a delivery note exists")
	}

	paid := snapshotAt(models.StageFinalPaymentReceived, withDeliveryNote(), func(o *models.Order) {
		o.FinalPaymentReceived = true
		o.Payments = append(o.Payments, models.Payment{Type: models.PaymentTypeFinal, Amount: decimal.NewFromInt(100)})
	})
	if paid.FinalPaymentOutstanding {
		t.Fatal("FinalPaymentOutstanding should clear after payment")
	}
}

func TestSnapshotConsistencyWarnings(t *testing.T) {
	// Stage outside the catalog.
	unknown := snapshotAt(models.StageReceived, func(o *models.Order) { o.Stage = "LIMBO" })
	if !hasWarning(unknown, "UNKNOWN_STAGE") {
		t.Fatalf("want UNKNOWN_STAGE, got %v", warningCodes(unknown))
	}

	// Two accepted quotations on one order.
	twoAccepted := snapshotAt(models.StageQuotationAccepted, withAcceptedQuotation(1), withAcceptedQuotation(2))
	if !hasWarning(twoAccepted, "MULTIPLE_ACCEPTED_QUOTATIONS") {
		t.Fatalf("want MULTIPLE_ACCEPTED_QUOTATIONS, got %v", warningCodes(twoAccepted))
	}

	// PO with no accepted quotation behind it.
	orphanPO := snapshotAt(models.StagePOPrepared, withPurchaseOrder())
	if !hasWarning(orphanPO, "PO_WITHOUT_ACCEPTED_QUOTATION") {
		t.Fatalf("want PO_WITHOUT_ACCEPTED_QUOTATION, got %v", warningCodes(orphanPO))
	}

	// Deposit flag set with no covering payment row.
	ghostDeposit := snapshotAt(models.StageInManufacturing, func(o *models.Order) {
		o.DepositPaid = true
		o.DepositAmount = decimal.NewFromInt(500)
	})
	if !hasWarning(ghostDeposit, "DEPOSIT_PAID_WITHOUT_PAYMENT") {
		t.Fatalf("want DEPOSIT_PAID_WITHOUT_PAYMENT, got %v", warningCodes(ghostDeposit))
	}

	// Covering payment present: no warning.
	covered := snapshotAt(models.StageInManufacturing, func(o *models.Order) {
		o.DepositPaid = true
		o.DepositAmount = decimal.NewFromInt(500)
		o.Payments = append(o.Payments, models.Payment{Type: models.PaymentTypeDeposit, Amount: decimal.NewFromInt(500)})
	})
	if hasWarning(covered, "DEPOSIT_PAID_WITHOUT_PAYMENT") {
		t.Fatal("covered deposit should not warn")
	}

	// Final payment flagged while the order is still mid-lifecycle.
	early := snapshotAt(models.StageInManufacturing, func(o *models.Order) { o.FinalPaymentReceived = true })
	if !hasWarning(early, "FINAL_PAYMENT_BEFORE_STAGE") {
		t.Fatalf("want FINAL_PAYMENT_BEFORE_STAGE, got %v", warningCodes(early))
	}
}

func TestStageIndexOrFallback(t *testing.T) {
	snap := snapshotAt(models.StageReceived, func(o *models.Order) { o.Stage = "LIMBO" })
	if got := snap.StageIndexOr(4); got != 4 {
		t.Fatalf("StageIndexOr = %d, want fallback 4", got)
	}

	ok := snapshotAt(models.StageQuotationSent)
	if got := ok.StageIndexOr(0); got != 3 {
		t.Fatalf("StageIndexOr = %d, want 3", got)
	}
}
