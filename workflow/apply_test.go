package workflow_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/utils"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

// setupWorkflowTest swaps the global DB for an in-memory sqlite and returns a
// context carrying an admin identity plus a client to order for.
func setupWorkflowTest(t *testing.T) (context.Context, int) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	config.SetDB(db)
	require.NoError(t, models.Migrate(db))

	ctx := context.Background()
	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Gulfstream Dynamics"})
	require.NoError(t, err)

	ctx = utils.SetCompanyIdInContext(ctx, company.ID)
	ctx = utils.SetActorRoleInContext(ctx, string(models.ActorRoleAdmin))
	ctx = utils.SetUserNameInContext(ctx, "Test Admin")

	client, err := models.CreateClient(ctx, &models.NewClient{
		Name:  "Desert Power LLC",
		Email: "ops@desertpower.test",
	})
	require.NoError(t, err)

	return ctx, client.ID
}

func createTestOrder(t *testing.T, ctx context.Context, clientId int) *models.Order {
	t.Helper()
	order, err := models.CreateOrder(ctx, &models.NewOrder{
		ClientId:    clientId,
		Title:       "Diesel generator 500kVA",
		TotalAmount: decimal.NewFromInt(120000),
		Currency:    "AED",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageReceived, order.Stage)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.Equal(t, 0, order.Version)
	return order
}

func historyActions(t *testing.T, ctx context.Context, orderId int) []string {
	t.Helper()
	histories, err := models.GetOrderHistories(ctx, orderId)
	require.NoError(t, err)
	actions := make([]string, 0, len(histories))
	for _, h := range histories {
		actions = append(actions, h.ActionCode)
	}
	return actions
}

func outboxRecords(t *testing.T, ctx context.Context, orderId int) []models.OrderEventRecord {
	t.Helper()
	var records []models.OrderEventRecord
	require.NoError(t, config.GetDB().WithContext(ctx).
		Where("order_id = ?", orderId).
		Order("id ASC").
		Find(&records).Error)
	return records
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(120000),
		Currency:    "AED",
		FileRef:     "quotations/gen-500.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageQuotationSent, order.Stage)
	require.Equal(t, 1, order.Version)
	require.Len(t, order.Quotations, 1)

	quotationId := order.Quotations[0].ID
	order, _, err = workflow.AcceptQuotation(ctx, order.ID, quotationId, &models.QuotationDecisionInput{
		ClientComment: "Proceed as quoted.",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageQuotationAccepted, order.Stage)
	require.Equal(t, models.OrderStatusApproved, order.Status)
	require.Equal(t, models.QuotationDecisionAccepted, order.Quotations[0].Decision)
	require.NotNil(t, order.Quotations[0].DecidedAt)

	pct := decimal.NewFromInt(30)
	order, _, err = workflow.CreatePurchaseOrder(ctx, order.ID, &models.NewPurchaseOrder{
		PONumber:          "PO-2041",
		DepositRequired:   true,
		DepositPercentage: &pct,
		DepositAmount:     decimal.NewFromInt(36000),
	})
	require.NoError(t, err)
	require.Equal(t, models.StageAwaitingDeposit, order.Stage)
	require.NotNil(t, order.DepositPercentage)
	require.True(t, order.DepositAmount.Equal(decimal.NewFromInt(36000)))

	order, _, err = workflow.RecordPayment(ctx, order.ID, &models.NewPayment{
		Type:     models.PaymentTypeDeposit,
		Amount:   decimal.NewFromInt(36000),
		Currency: "AED",
		Method:   "bank_transfer",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageDepositReceived, order.Stage)
	require.True(t, order.DepositPaid)
	require.NotNil(t, order.DepositPaidAt)

	order, _, err = workflow.StartManufacturing(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StageInManufacturing, order.Stage)

	order, _, err = workflow.CompleteManufacturing(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StageReadyForDelivery, order.Stage)

	order, _, err = workflow.CreateDeliveryNote(ctx, order.ID, &models.NewDeliveryNote{
		DNNumber: "DN-88",
		Items:    "1x 500kVA generator",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageAwaitingFinalPayment, order.Stage)
	require.Len(t, order.DeliveryNotes, 1)

	order, _, err = workflow.RecordPayment(ctx, order.ID, &models.NewPayment{
		Type:     models.PaymentTypeFinal,
		Amount:   decimal.NewFromInt(84000),
		Currency: "AED",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageFinalPaymentReceived, order.Stage)
	require.True(t, order.FinalPaymentReceived)

	order, _, err = workflow.CloseOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StageCompletedDelivered, order.Stage)
	require.Equal(t, models.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.ClosedAt)
	require.Equal(t, 9, order.Version)

	// Exactly one audit row per transition, in order.
	require.Equal(t, []string{
		"ORDER_CREATED",
		"QUOTATION_SENT",
		"QUOTATION_ACCEPTED",
		"PO_CREATED",
		"DEPOSIT_RECEIVED",
		"MANUFACTURING_STARTED",
		"MANUFACTURING_COMPLETED",
		"DELIVERY_NOTE_SENT",
		"FINAL_PAYMENT_RECEIVED",
		"ORDER_CLOSED",
	}, historyActions(t, ctx, order.ID))

	// One staged outbox event per transition (order creation stages none).
	records := outboxRecords(t, ctx, order.ID)
	require.Len(t, records, 9)
	for _, rec := range records {
		require.Equal(t, models.OutboxPublishStatusPending, rec.PublishStatus)
		require.Equal(t, string(models.ActorRoleAdmin), rec.ActorRole)
	}
}

func TestDuplicateDepositAppendsWithoutTransition(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(5000), Currency: "AED", FileRef: "q.pdf",
	})
	require.NoError(t, err)
	order, _, err = workflow.AcceptQuotation(ctx, order.ID, order.Quotations[0].ID, nil)
	require.NoError(t, err)
	pct := decimal.NewFromInt(50)
	order, _, err = workflow.CreatePurchaseOrder(ctx, order.ID, &models.NewPurchaseOrder{
		PONumber: "PO-1", DepositRequired: true, DepositPercentage: &pct, DepositAmount: decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	order, _, err = workflow.RecordPayment(ctx, order.ID, &models.NewPayment{
		Type: models.PaymentTypeDeposit, Amount: decimal.NewFromInt(2500), Currency: "AED",
	})
	require.NoError(t, err)
	require.True(t, order.DepositPaid)

	versionBefore := order.Version
	historyBefore := len(historyActions(t, ctx, order.ID))
	outboxBefore := len(outboxRecords(t, ctx, order.ID))

	order, ev, err := workflow.RecordPayment(ctx, order.ID, &models.NewPayment{
		Type: models.PaymentTypeDeposit, Amount: decimal.NewFromInt(100), Currency: "AED",
	})
	require.NoError(t, err)
	require.True(t, ev.NoStageChange)
	require.Equal(t, models.StageDepositReceived, order.Stage)
	require.Equal(t, versionBefore, order.Version)
	require.Len(t, order.Payments, 2)
	require.Len(t, historyActions(t, ctx, order.ID), historyBefore)
	require.Len(t, outboxRecords(t, ctx, order.ID), outboxBefore)
}

func TestAcceptingOneQuotationRejectsOtherOpenOnes(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(5000), Currency: "AED", FileRef: "q1.pdf",
	})
	require.NoError(t, err)
	firstId := order.Quotations[0].ID

	// A second pending quotation left over from earlier churn.
	companyId, _ := utils.GetCompanyIdFromContext(ctx)
	stray := models.Quotation{
		CompanyId: companyId, OrderId: order.ID,
		TotalAmount: decimal.NewFromInt(4800), Currency: "AED",
		FileRef: "q0.pdf", Decision: models.QuotationDecisionPending,
	}
	require.NoError(t, config.GetDB().WithContext(ctx).Create(&stray).Error)

	order, _, err = workflow.AcceptQuotation(ctx, order.ID, firstId, nil)
	require.NoError(t, err)

	accepted, rejected := 0, 0
	for _, q := range order.Quotations {
		switch q.Decision {
		case models.QuotationDecisionAccepted:
			accepted++
		case models.QuotationDecisionRejected:
			rejected++
			require.Equal(t, "Superseded by accepted quotation", q.RejectionReason)
		}
	}
	require.Equal(t, 1, accepted)
	require.Equal(t, 1, rejected)
}

func TestRejectedQuotationReopensPreparation(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(5000), Currency: "AED", FileRef: "q1.pdf",
	})
	require.NoError(t, err)

	order, _, err = workflow.RejectQuotation(ctx, order.ID, order.Quotations[0].ID, &models.QuotationDecisionInput{
		RejectionReason: "over budget",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageQuotationPreparation, order.Stage)
	require.Equal(t, models.QuotationDecisionRejected, order.Quotations[0].Decision)
	require.Equal(t, "over budget", order.Quotations[0].RejectionReason)

	// A fresh quotation can go out again.
	order, _, err = workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(4500), Currency: "AED", FileRef: "q2.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageQuotationSent, order.Stage)
	require.Len(t, order.Quotations, 2)
}

func TestFinalPaymentRequiresDeliveryNote(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	_, _, err := workflow.RecordPayment(ctx, order.ID, &models.NewPayment{
		Type: models.PaymentTypeFinal, Amount: decimal.NewFromInt(100), Currency: "AED",
	})
	var pre *workflow.PreconditionError
	require.ErrorAs(t, err, &pre)
	require.Equal(t, workflow.EventFinalPaymentRecorded, pre.Event)
}

func TestCancelledOrderIsAbsorbing(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(5000), Currency: "AED", FileRef: "q.pdf",
	})
	require.NoError(t, err)

	order, _, err = workflow.CancelOrder(ctx, order.ID, "client withdrew")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, order.Status)
	// Stage is frozen where it was, for the audit trail.
	require.Equal(t, models.StageQuotationSent, order.Stage)
	require.NotNil(t, order.CancelledAt)

	_, _, err = workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(1), Currency: "AED", FileRef: "late.pdf",
	})
	var terminal *workflow.TerminalStateError
	require.ErrorAs(t, err, &terminal)
}

func TestStageOverrideLandsInHistory(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.OverrideStage(ctx, order.ID, models.StageInManufacturing, "migrated from legacy tracker")
	require.NoError(t, err)
	require.Equal(t, models.StageInManufacturing, order.Stage)
	require.Equal(t, models.OrderStatusApproved, order.Status)

	actions := historyActions(t, ctx, order.ID)
	require.Equal(t, "STAGE_OVERRIDDEN", actions[len(actions)-1])

	histories, err := models.GetOrderHistories(ctx, order.ID)
	require.NoError(t, err)
	require.Contains(t, histories[len(histories)-1].Description, "migrated from legacy tracker")
}

func TestIdempotencyKeySkipsAfterSuccess(t *testing.T) {
	ctx, _ := setupWorkflowTest(t)
	companyId, _ := utils.GetCompanyIdFromContext(ctx)
	db := config.GetDB().WithContext(ctx)

	skip, err := workflow.BeginIdempotency(db, companyId, "payment-notification", "msg-1")
	require.NoError(t, err)
	require.False(t, skip)
	require.NoError(t, workflow.MarkIdempotencySucceeded(db, companyId, "payment-notification", "msg-1"))

	skip, err = workflow.BeginIdempotency(db, companyId, "payment-notification", "msg-1")
	require.NoError(t, err)
	require.True(t, skip)

	// An in-flight key asks the broker to retry later.
	skip, err = workflow.BeginIdempotency(db, companyId, "payment-notification", "msg-2")
	require.NoError(t, err)
	require.False(t, skip)
	_, err = workflow.BeginIdempotency(db, companyId, "payment-notification", "msg-2")
	require.ErrorIs(t, err, workflow.ErrIdempotencyInProgress)
}

func TestVersionRaceLoserRollsBack(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	// A competing writer bumps the version after the locked read but before
	// the guarded update. The callback runs on the transaction's own
	// connection, exactly where a second session's committed write would be
	// visible.
	db := config.GetDB()
	bumped := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("order_version_race", func(tx *gorm.DB) {
		if bumped || tx.Statement.Table != "orders" {
			return
		}
		bumped = true
		_, execErr := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE orders SET version = version + 1 WHERE id = ?", order.ID)
		require.NoError(t, execErr)
	}))
	defer db.Callback().Update().Remove("order_version_race")

	_, _, err := workflow.UploadQuotation(ctx, order.ID, &models.NewQuotation{
		TotalAmount: decimal.NewFromInt(120000),
		Currency:    "AED",
		FileRef:     "quotations/gen-500.pdf",
	})

	var conflict *workflow.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, order.ID, conflict.OrderId)
	require.Equal(t, 0, conflict.ExpectedVersion)

	// The loser's whole transaction rolled back: no quotation, no stage
	// move, no history beyond creation, no staged event.
	reloaded, err := models.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StageReceived, reloaded.Stage)
	require.Equal(t, models.OrderStatusPending, reloaded.Status)
	require.Empty(t, reloaded.Quotations)
	require.Equal(t, []string{"ORDER_CREATED"}, historyActions(t, ctx, order.ID))
	require.Empty(t, outboxRecords(t, ctx, order.ID))
}

func TestPassThroughStagesLandInHistory(t *testing.T) {
	ctx, clientId := setupWorkflowTest(t)
	order := createTestOrder(t, ctx, clientId)

	order, _, err := workflow.OverrideStage(ctx, order.ID, models.StageInManufacturing, "resumed from legacy tracker")
	require.NoError(t, err)
	require.Equal(t, models.StageInManufacturing, order.Stage)

	order, ev, err := workflow.CompleteManufacturing(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StageReadyForDelivery, order.Stage)
	require.Equal(t, models.StageInManufacturing, ev.FromStage)

	// The crossed stage is audited even though the order never rests there.
	histories, err := models.GetOrderHistories(ctx, order.ID)
	require.NoError(t, err)
	last := histories[len(histories)-1]
	require.Contains(t, last.Description, "Passed through MANUFACTURING_COMPLETE")
	require.Equal(t, string(models.StageReadyForDelivery), last.ToStage)
}
