package models

import (
	"time"
)

// DeliveryNote belongs to exactly one order; created only once an accepted
// quotation and, where required, a received deposit exist.
type DeliveryNote struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`
	OrderId   int    `gorm:"index;not null" json:"order_id"`

	DNNumber    string    `gorm:"size:100;not null" json:"dn_number"`
	FileRefs    FileRefs  `gorm:"type:text" json:"file_refs"`
	DeliveredAt time.Time `gorm:"not null" json:"delivered_at"`
	Items       string    `gorm:"type:text" json:"items"`
	Notes       string    `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDeliveryNote struct {
	DNNumber    string     `json:"dn_number" binding:"required"`
	FileRefs    []string   `json:"file_refs"`
	DeliveredAt *time.Time `json:"delivered_at"`
	Items       string     `json:"items"`
	Notes       string     `json:"notes"`
}

func (input NewDeliveryNote) MapInput(companyId string, orderId int) *DeliveryNote {
	deliveredAt := time.Now().UTC()
	if input.DeliveredAt != nil {
		deliveredAt = *input.DeliveredAt
	}
	return &DeliveryNote{
		CompanyId:   companyId,
		OrderId:     orderId,
		DNNumber:    input.DNNumber,
		FileRefs:    FileRefs(input.FileRefs),
		DeliveredAt: deliveredAt,
		Items:       input.Items,
		Notes:       input.Notes,
	}
}
