package workflow_test

import (
	"errors"
	"testing"

	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

func TestStageIndexFollowsCatalogOrder(t *testing.T) {
	prev := -1
	for _, stage := range workflow.StageCatalog {
		idx, err := workflow.StageIndex(stage)
		if err != nil {
			t.Fatalf("StageIndex(%s): %v", stage, err)
		}
		if idx != prev+1 {
			t.Fatalf("StageIndex(%s) = %d, want %d", stage, idx, prev+1)
		}
		prev = idx
	}
	if len(workflow.StageCatalog) != 15 {
		t.Fatalf("catalog has %d stages, want 15", len(workflow.StageCatalog))
	}
}

func TestStageIndexUnknownStage(t *testing.T) {
	_, err := workflow.StageIndex(models.OrderStage("SHIPPED"))
	var unknown *workflow.UnknownStageError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownStageError, got %v", err)
	}
}

func TestStageLabelCoversEveryStage(t *testing.T) {
	for _, stage := range workflow.StageCatalog {
		label, err := workflow.StageLabel(stage)
		if err != nil {
			t.Fatalf("StageLabel(%s): %v", stage, err)
		}
		if label == "" {
			t.Fatalf("StageLabel(%s) is empty", stage)
		}
	}
	if _, err := workflow.StageLabel(models.OrderStage("bogus")); err == nil {
		t.Fatal("expected error for unknown stage label")
	}
}

func TestStatusForStageBuckets(t *testing.T) {
	cases := []struct {
		stage models.OrderStage
		want  models.OrderStatus
	}{
		{models.StageReceived, models.OrderStatusPending},
		{models.StageQuotationSent, models.OrderStatusPending},
		{models.StageQuotationAccepted, models.OrderStatusApproved},
		{models.StageInManufacturing, models.OrderStatusApproved},
		{models.StageFinalPaymentReceived, models.OrderStatusApproved},
		{models.StageCompletedDelivered, models.OrderStatusCompleted},
	}
	for _, tc := range cases {
		got, err := workflow.StatusForStage(tc.stage)
		if err != nil {
			t.Fatalf("StatusForStage(%s): %v", tc.stage, err)
		}
		if got != tc.want {
			t.Fatalf("StatusForStage(%s) = %s, want %s", tc.stage, got, tc.want)
		}
	}
}

func TestProgressPercentMonotonic(t *testing.T) {
	prev := 0
	for _, stage := range workflow.StageCatalog {
		pct, err := workflow.ProgressPercent(stage)
		if err != nil {
			t.Fatalf("ProgressPercent(%s): %v", stage, err)
		}
		if pct <= prev && stage != workflow.StageCatalog[0] {
			t.Fatalf("progress not strictly increasing at %s: %d after %d", stage, pct, prev)
		}
		if pct < 0 || pct > 100 {
			t.Fatalf("ProgressPercent(%s) = %d out of range", stage, pct)
		}
		prev = pct
	}

	first, _ := workflow.ProgressPercent(models.StageReceived)
	if first != 7 {
		t.Fatalf("ProgressPercent(RECEIVED) = %d, want 7", first)
	}
	last, _ := workflow.ProgressPercent(models.StageCompletedDelivered)
	if last != 100 {
		t.Fatalf("ProgressPercent(COMPLETED_DELIVERED) = %d, want 100", last)
	}

	if _, err := workflow.ProgressPercent(models.OrderStage("nope")); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}
