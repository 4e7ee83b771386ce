package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// Payment rows are append-only; they are never edited or deleted in normal
// flow.
type Payment struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`
	OrderId   int    `gorm:"index;not null" json:"order_id"`

	Type      PaymentType     `gorm:"size:10;not null" json:"type"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"amount"`
	Currency  string          `gorm:"size:3;not null" json:"currency"`
	Method    string          `gorm:"size:50" json:"method"`
	Reference string          `gorm:"size:255" json:"reference"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	Type      PaymentType     `json:"type" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Currency  string          `json:"currency" binding:"required"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    *time.Time      `json:"paid_at"`
}

func (input NewPayment) MapInput(companyId string, orderId int) *Payment {
	paidAt := time.Now().UTC()
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}
	return &Payment{
		CompanyId: companyId,
		OrderId:   orderId,
		Type:      input.Type,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Method:    input.Method,
		Reference: input.Reference,
		PaidAt:    paidAt,
	}
}

func GetPayments(ctx context.Context, orderId int) ([]*Payment, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var results []*Payment
	err := db.WithContext(ctx).
		Where("company_id = ? AND order_id = ?", companyId, orderId).
		Order("paid_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
