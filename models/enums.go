package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s *OrderStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("order status must be string")
	}
	switch str {
	case "PENDING":
		*s = OrderStatusPending
	case "APPROVED":
		*s = OrderStatusApproved
	case "COMPLETED":
		*s = OrderStatusCompleted
	case "CANCELLED":
		*s = OrderStatusCancelled
	default:
		return errors.New("invalid order status")
	}
	return nil
}

// OrderStage is the fine-grained lifecycle position. Ordering and labels live
// in the workflow stage catalog; the model layer only persists the value.
type OrderStage string

const (
	StageReceived             OrderStage = "RECEIVED"
	StageUnderReview          OrderStage = "UNDER_REVIEW"
	StageQuotationPreparation OrderStage = "QUOTATION_PREPARATION"
	StageQuotationSent        OrderStage = "QUOTATION_SENT"
	StageQuotationAccepted    OrderStage = "QUOTATION_ACCEPTED"
	StagePOPrepared           OrderStage = "PO_PREPARED"
	StageAwaitingDeposit      OrderStage = "AWAITING_DEPOSIT"
	StageDepositReceived      OrderStage = "DEPOSIT_RECEIVED"
	StageInManufacturing      OrderStage = "IN_MANUFACTURING"
	StageManufacturingDone    OrderStage = "MANUFACTURING_COMPLETE"
	StageReadyForDelivery     OrderStage = "READY_FOR_DELIVERY"
	StageDeliveryNoteSent     OrderStage = "DELIVERY_NOTE_SENT"
	StageAwaitingFinalPayment OrderStage = "AWAITING_FINAL_PAYMENT"
	StageFinalPaymentReceived OrderStage = "FINAL_PAYMENT_RECEIVED"
	StageCompletedDelivered   OrderStage = "COMPLETED_DELIVERED"
)

var orderStages = map[string]OrderStage{
	"RECEIVED":               StageReceived,
	"UNDER_REVIEW":           StageUnderReview,
	"QUOTATION_PREPARATION":  StageQuotationPreparation,
	"QUOTATION_SENT":         StageQuotationSent,
	"QUOTATION_ACCEPTED":     StageQuotationAccepted,
	"PO_PREPARED":            StagePOPrepared,
	"AWAITING_DEPOSIT":       StageAwaitingDeposit,
	"DEPOSIT_RECEIVED":       StageDepositReceived,
	"IN_MANUFACTURING":       StageInManufacturing,
	"MANUFACTURING_COMPLETE": StageManufacturingDone,
	"READY_FOR_DELIVERY":     StageReadyForDelivery,
	"DELIVERY_NOTE_SENT":     StageDeliveryNoteSent,
	"AWAITING_FINAL_PAYMENT": StageAwaitingFinalPayment,
	"FINAL_PAYMENT_RECEIVED": StageFinalPaymentReceived,
	"COMPLETED_DELIVERED":    StageCompletedDelivered,
}

func (s *OrderStage) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("order stage must be string")
	}
	stage, ok := orderStages[str]
	if !ok {
		return fmt.Errorf("invalid order stage %q", str)
	}
	*s = stage
	return nil
}

// QuotationDecision makes the not-yet-decided state explicit instead of a
// nullable boolean.
type QuotationDecision string

const (
	QuotationDecisionPending  QuotationDecision = "PENDING"
	QuotationDecisionAccepted QuotationDecision = "ACCEPTED"
	QuotationDecisionRejected QuotationDecision = "REJECTED"
)

func (d *QuotationDecision) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("quotation decision must be string")
	}
	switch str {
	case "PENDING":
		*d = QuotationDecisionPending
	case "ACCEPTED":
		*d = QuotationDecisionAccepted
	case "REJECTED":
		*d = QuotationDecisionRejected
	default:
		return errors.New("invalid quotation decision")
	}
	return nil
}

func (d QuotationDecision) Value() (driver.Value, error) {
	return string(d), nil
}

func (d *QuotationDecision) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*d = QuotationDecision(v)
	case []byte:
		*d = QuotationDecision(v)
	case nil:
		// Legacy rows stored the decision as a nullable boolean; NULL means
		// not yet decided.
		*d = QuotationDecisionPending
	default:
		return fmt.Errorf("cannot scan %T into QuotationDecision", value)
	}
	return nil
}

type PaymentType string

const (
	PaymentTypeDeposit PaymentType = "DEPOSIT"
	PaymentTypeFinal   PaymentType = "FINAL"
	PaymentTypePartial PaymentType = "PARTIAL"
)

func (t *PaymentType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("payment type must be string")
	}
	switch str {
	case "DEPOSIT":
		*t = PaymentTypeDeposit
	case "FINAL":
		*t = PaymentTypeFinal
	case "PARTIAL":
		*t = PaymentTypePartial
	default:
		return errors.New("invalid payment type")
	}
	return nil
}

type ActorRole string

const (
	ActorRoleAdmin  ActorRole = "ADMIN"
	ActorRoleClient ActorRole = "CLIENT"
	ActorRoleSystem ActorRole = "SYSTEM"
)

func (r *ActorRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("actor role must be string")
	}
	switch str {
	case "ADMIN":
		*r = ActorRoleAdmin
	case "CLIENT":
		*r = ActorRoleClient
	case "SYSTEM":
		*r = ActorRoleSystem
	default:
		return errors.New("invalid actor role")
	}
	return nil
}

type UserRole string

const (
	UserRoleOwner UserRole = "OWNER"
	UserRoleStaff UserRole = "STAFF"
)

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("user role must be string")
	}
	switch str {
	case "OWNER":
		*r = UserRoleOwner
	case "STAFF":
		*r = UserRoleStaff
	default:
		return errors.New("invalid user role")
	}
	return nil
}
