package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// ApplyInput carries one event plus the payload its side effects need.
type ApplyInput struct {
	OrderId int
	Event   Event

	Quotation     *models.NewQuotation
	PurchaseOrder *models.NewPurchaseOrder
	Payment       *models.NewPayment
	DeliveryNote  *models.NewDeliveryNote
	Decision      *models.QuotationDecisionInput
}

// TransitionEvent is the descriptor handed to the notification side after a
// committed transition.
type TransitionEvent struct {
	OrderId       int
	EventType     EventType
	FromStage     models.OrderStage
	ToStage       models.OrderStage
	ActorRole     string
	ActorName     string
	NoStageChange bool
}

// Apply runs the full transactional read-modify-write for one event:
// advisory lock, fresh locked read, guard re-check, side effects, optimistic
// version bump, one history row, one staged outbox event. The loser of a
// version race gets a ConcurrentModificationError, never a double apply.
func Apply(ctx context.Context, input ApplyInput) (*models.Order, *TransitionEvent, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, nil, errors.New("company id is required")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	fail := func(err error) (*models.Order, *TransitionEvent, error) {
		ReleaseOrderLock(tx, companyId, input.OrderId)
		tx.Rollback()
		return nil, nil, err
	}

	if err := AcquireOrderLock(tx, companyId, input.OrderId); err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	order, err := models.GetOrderAggregateForUpdate(tx, companyId, input.OrderId)
	if err != nil {
		return fail(err)
	}

	snap := BuildSnapshot(order)
	logSnapshotWarnings(snap)

	transition, err := Validate(snap, input.Event)
	if err != nil {
		return fail(err)
	}

	if err := applySideEffects(tx, companyId, order, transition, input); err != nil {
		return fail(err)
	}

	actorRole, _ := utils.GetActorRoleFromContext(ctx)
	actorName, _ := utils.GetUserNameFromContext(ctx)
	event := &TransitionEvent{
		OrderId:       order.ID,
		EventType:     transition.Event,
		FromStage:     transition.FromStage,
		ToStage:       transition.ToStage,
		ActorRole:     actorRole,
		ActorName:     actorName,
		NoStageChange: transition.NoStageChange,
	}

	if transition.NoStageChange {
		// Data appended, lifecycle untouched: no history row, no outbox
		// event, no version bump.
		ReleaseOrderLock(tx, companyId, input.OrderId)
		if err := tx.Commit().Error; err != nil {
			return nil, nil, err
		}
		refreshed, err := models.GetOrder(ctx, order.ID)
		if err != nil {
			return nil, nil, err
		}
		return refreshed, event, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"stage":   transition.ToStage,
		"status":  transition.ToStatus,
		"version": gorm.Expr("version + 1"),
	}
	if transition.MarkDepositPaid {
		updates["deposit_paid"] = true
		updates["deposit_paid_at"] = &now
	}
	if transition.MarkFinalPayment {
		updates["final_payment_received"] = true
		updates["final_payment_received_at"] = &now
	}
	if input.Event.Type == EventOrderCancelled {
		updates["cancelled_at"] = &now
	}
	if input.Event.Type == EventOrderClosed {
		updates["closed_at"] = &now
	}
	if input.Event.Type == EventPurchaseOrderCreated && input.PurchaseOrder != nil && input.PurchaseOrder.DepositRequired {
		updates["deposit_percentage"] = input.PurchaseOrder.DepositPercentage
		updates["deposit_amount"] = input.PurchaseOrder.DepositAmount
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND company_id = ? AND version = ?", order.ID, companyId, order.Version).
		Updates(updates)
	if res.Error != nil {
		return fail(res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(&ConcurrentModificationError{OrderId: order.ID, ExpectedVersion: order.Version})
	}

	description := transition.Description
	if len(transition.PassThroughStages) > 0 {
		passed := make([]string, 0, len(transition.PassThroughStages))
		for _, s := range transition.PassThroughStages {
			passed = append(passed, string(s))
		}
		description += " Passed through " + strings.Join(passed, ", ") + "."
	}
	if err := models.AppendOrderHistory(tx, order.ID,
		transition.HistoryAction,
		string(transition.FromStage),
		string(transition.ToStage),
		description); err != nil {
		return fail(err)
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	record := models.OrderEventRecord{
		CompanyId:     companyId,
		OrderId:       order.ID,
		ClientId:      order.ClientId,
		EventType:     string(transition.Event),
		FromStage:     string(transition.FromStage),
		ToStage:       string(transition.ToStage),
		ActorRole:     actorRole,
		ActorName:     actorName,
		OccurredAt:    now,
		PublishStatus: models.OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fail(err)
	}

	ReleaseOrderLock(tx, companyId, input.OrderId)
	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}

	refreshed, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return refreshed, event, nil
}

func applySideEffects(tx *gorm.DB, companyId string, order *models.Order, t *Transition, input ApplyInput) error {
	now := time.Now().UTC()

	switch input.Event.Type {
	case EventQuotationUploaded:
		if input.Quotation == nil {
			return errors.New("quotation payload is required")
		}
		quotation := input.Quotation.MapInput(companyId, order.ID)
		if err := tx.Create(quotation).Error; err != nil {
			return err
		}

	case EventQuotationAccepted:
		comment := ""
		if input.Decision != nil {
			comment = input.Decision.ClientComment
		}
		err := tx.Model(&models.Quotation{}).
			Where("id = ? AND company_id = ?", t.AcceptQuotationId, companyId).
			Updates(map[string]interface{}{
				"decision":       models.QuotationDecisionAccepted,
				"decided_at":     &now,
				"client_comment": comment,
			}).Error
		if err != nil {
			return err
		}
		if t.RejectOtherOpen {
			// At most one accepted quotation per order, enforced in the same
			// transaction as the acceptance.
			err = tx.Model(&models.Quotation{}).
				Where("order_id = ? AND company_id = ? AND id <> ? AND decision = ?",
					order.ID, companyId, t.AcceptQuotationId, models.QuotationDecisionPending).
				Updates(map[string]interface{}{
					"decision":         models.QuotationDecisionRejected,
					"decided_at":       &now,
					"rejection_reason": "Superseded by accepted quotation",
				}).Error
			if err != nil {
				return err
			}
		}

	case EventQuotationRejected:
		comment, reason := "", ""
		if input.Decision != nil {
			comment = input.Decision.ClientComment
			reason = input.Decision.RejectionReason
		}
		err := tx.Model(&models.Quotation{}).
			Where("id = ? AND company_id = ?", t.RejectQuotationId, companyId).
			Updates(map[string]interface{}{
				"decision":         models.QuotationDecisionRejected,
				"decided_at":       &now,
				"client_comment":   comment,
				"rejection_reason": reason,
			}).Error
		if err != nil {
			return err
		}

	case EventPurchaseOrderCreated:
		if input.PurchaseOrder == nil {
			return errors.New("purchase order payload is required")
		}
		po := input.PurchaseOrder.MapInput(companyId, order.ID)
		if err := tx.Create(po).Error; err != nil {
			return err
		}

	case EventDepositRecorded, EventFinalPaymentRecorded, EventPartialRecorded:
		if input.Payment == nil {
			return errors.New("payment payload is required")
		}
		payment := input.Payment.MapInput(companyId, order.ID)
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

	case EventDeliveryNoteCreated:
		if input.DeliveryNote == nil {
			return errors.New("delivery note payload is required")
		}
		dn := input.DeliveryNote.MapInput(companyId, order.ID)
		if err := tx.Create(dn).Error; err != nil {
			return err
		}
	}

	return nil
}

func logSnapshotWarnings(snap *OrderSnapshot) {
	if len(snap.Warnings) == 0 {
		return
	}
	logger := config.GetLogger()
	for _, w := range snap.Warnings {
		logger.WithFields(logrus.Fields{
			"module":   "workflow",
			"order_id": snap.OrderId,
			"code":     w.Code,
		}).Warn(w.Detail)
	}
}
