package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder belongs to exactly one order and can only be created after a
// quotation has been accepted.
type PurchaseOrder struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`
	OrderId   int    `gorm:"index;not null" json:"order_id"`

	PONumber string   `gorm:"size:100;not null" json:"po_number"`
	FileRefs FileRefs `gorm:"type:text" json:"file_refs"`

	DepositRequired   bool             `gorm:"not null;default:0" json:"deposit_required"`
	DepositPercentage *decimal.Decimal `gorm:"type:decimal(8,4)" json:"deposit_percentage"`
	DepositAmount     decimal.Decimal  `gorm:"type:decimal(20,6)" json:"deposit_amount"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseOrder struct {
	PONumber          string           `json:"po_number" binding:"required"`
	FileRefs          []string         `json:"file_refs"`
	DepositRequired   bool             `json:"deposit_required"`
	DepositPercentage *decimal.Decimal `json:"deposit_percentage"`
	DepositAmount     decimal.Decimal  `json:"deposit_amount"`
}

func (input NewPurchaseOrder) MapInput(companyId string, orderId int) *PurchaseOrder {
	return &PurchaseOrder{
		CompanyId:         companyId,
		OrderId:           orderId,
		PONumber:          input.PONumber,
		FileRefs:          FileRefs(input.FileRefs),
		DepositRequired:   input.DepositRequired,
		DepositPercentage: input.DepositPercentage,
		DepositAmount:     input.DepositAmount,
	}
}
