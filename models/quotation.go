package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// Quotation belongs to exactly one order. An order accumulates quotations if
// earlier ones are rejected and re-quoted; at most one is ACCEPTED at a time.
type Quotation struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`
	OrderId   int    `gorm:"index;not null" json:"order_id"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"total_amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	FileRef     string          `gorm:"size:1024" json:"file_ref"`

	Decision        QuotationDecision `gorm:"size:10;not null;default:'PENDING'" json:"decision"`
	DecidedAt       *time.Time        `json:"decided_at"`
	ClientComment   string            `gorm:"type:text" json:"client_comment"`
	RejectionReason string            `gorm:"type:text" json:"rejection_reason"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewQuotation struct {
	TotalAmount decimal.Decimal `json:"total_amount" binding:"required"`
	Currency    string          `json:"currency" binding:"required"`
	FileRef     string          `json:"file_ref" binding:"required"`
}

type QuotationDecisionInput struct {
	ClientComment   string `json:"client_comment"`
	RejectionReason string `json:"rejection_reason"`
}

func (input NewQuotation) MapInput(companyId string, orderId int) *Quotation {
	return &Quotation{
		CompanyId:   companyId,
		OrderId:     orderId,
		TotalAmount: input.TotalAmount,
		Currency:    input.Currency,
		FileRef:     input.FileRef,
		Decision:    QuotationDecisionPending,
	}
}

func GetQuotation(ctx context.Context, id int) (*Quotation, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var result Quotation
	if err := db.WithContext(ctx).Where("company_id = ?", companyId).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
