package workflow

import (
	"fmt"

	"github.com/gulfstream-dynamics/crm_backend/models"
)

// OrderSnapshot is an immutable point-in-time read model of one order plus
// its children. All rule evaluation runs against a snapshot; construction
// does no I/O.
type OrderSnapshot struct {
	OrderId   int
	CompanyId string
	ClientId  int
	Status    models.OrderStatus
	Stage     models.OrderStage
	Version   int

	DepositPaid          bool
	DepositRequired      bool
	FinalPaymentReceived bool

	Quotations     []models.Quotation
	PurchaseOrders []models.PurchaseOrder
	Payments       []models.Payment
	DeliveryNotes  []models.DeliveryNote

	// Derived booleans, computed once at construction.
	HasAcceptedQuotation      bool
	HasPendingQuotationReview bool
	HasPurchaseOrder          bool
	DepositOutstanding        bool
	HasDeliveryNote           bool
	FinalPaymentOutstanding   bool

	AcceptedQuotationId int
	// Quotations awaiting a client decision (decision PENDING, file present),
	// used for per-instance acknowledgement keys.
	PendingQuotationIds []int

	Warnings []DataConsistencyWarning
}

// BuildSnapshot derives the read model from a fully loaded order aggregate.
// Inconsistent source data surfaces warnings instead of silently trusting
// one field over another.
func BuildSnapshot(order *models.Order) *OrderSnapshot {
	snap := &OrderSnapshot{
		OrderId:   order.ID,
		CompanyId: order.CompanyId,
		ClientId:  order.ClientId,
		Status:    order.Status,
		Stage:     order.Stage,
		Version:   order.Version,

		DepositPaid:          order.DepositPaid,
		DepositRequired:      order.DepositPercentage != nil,
		FinalPaymentReceived: order.FinalPaymentReceived,

		Quotations:     order.Quotations,
		PurchaseOrders: order.PurchaseOrders,
		Payments:       order.Payments,
		DeliveryNotes:  order.DeliveryNotes,
	}

	acceptedCount := 0
	for _, q := range order.Quotations {
		switch q.Decision {
		case models.QuotationDecisionAccepted:
			acceptedCount++
			snap.HasAcceptedQuotation = true
			snap.AcceptedQuotationId = q.ID
		case models.QuotationDecisionPending:
			if q.FileRef != "" {
				snap.HasPendingQuotationReview = true
				snap.PendingQuotationIds = append(snap.PendingQuotationIds, q.ID)
			}
		}
	}

	snap.HasPurchaseOrder = len(order.PurchaseOrders) > 0
	snap.HasDeliveryNote = len(order.DeliveryNotes) > 0
	snap.DepositOutstanding = snap.DepositRequired && !order.DepositPaid
	snap.FinalPaymentOutstanding = snap.HasDeliveryNote && !order.FinalPaymentReceived

	snap.checkConsistency(order, acceptedCount)
	return snap
}

func (s *OrderSnapshot) checkConsistency(order *models.Order, acceptedCount int) {
	if _, err := StageIndex(order.Stage); err != nil {
		s.warn("UNKNOWN_STAGE", fmt.Sprintf("order %d has stage %q outside the catalog", order.ID, order.Stage))
	}

	if acceptedCount > 1 {
		s.warn("MULTIPLE_ACCEPTED_QUOTATIONS",
			fmt.Sprintf("order %d has %d accepted quotations, expected at most 1", order.ID, acceptedCount))
	}

	if s.HasPurchaseOrder && !s.HasAcceptedQuotation {
		s.warn("PO_WITHOUT_ACCEPTED_QUOTATION",
			fmt.Sprintf("order %d has a purchase order but no accepted quotation", order.ID))
	}

	if order.DepositPaid {
		covered := false
		for _, p := range order.Payments {
			if p.Type == models.PaymentTypeDeposit && p.Amount.GreaterThanOrEqual(order.DepositAmount) {
				covered = true
				break
			}
		}
		if !covered {
			s.warn("DEPOSIT_PAID_WITHOUT_PAYMENT",
				fmt.Sprintf("order %d is flagged deposit-paid without a covering DEPOSIT payment", order.ID))
		}
	}

	if order.FinalPaymentReceived {
		idx, err := StageIndex(order.Stage)
		finalIdx, _ := StageIndex(models.StageAwaitingFinalPayment)
		if err == nil && idx < finalIdx {
			s.warn("FINAL_PAYMENT_BEFORE_STAGE",
				fmt.Sprintf("order %d is flagged final-payment-received at stage %s", order.ID, order.Stage))
		}
	}
}

func (s *OrderSnapshot) warn(code, detail string) {
	s.Warnings = append(s.Warnings, DataConsistencyWarning{Code: code, Detail: detail})
}

// StageIndexOr returns the catalog index of the snapshot stage, or the given
// fallback when the stage is malformed. Read paths use this to degrade
// gracefully instead of failing a whole view.
func (s *OrderSnapshot) StageIndexOr(fallback int) int {
	idx, err := StageIndex(s.Stage)
	if err != nil {
		return fallback
	}
	return idx
}
