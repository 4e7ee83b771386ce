package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// OrderHistory is the append-only audit trail. Exactly one row is appended
// for every accepted transition; rows are never edited or deleted.
type OrderHistory struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`
	OrderId   int    `gorm:"index;not null" json:"order_id"`

	ActionCode  string    `gorm:"size:50;not null" json:"action_code"`
	FromStage   string    `gorm:"size:30" json:"from_stage"`
	ToStage     string    `gorm:"size:30" json:"to_stage"`
	ActorRole   ActorRole `gorm:"size:10;not null" json:"actor_role"`
	ActorName   string    `gorm:"size:100" json:"actor_name"`
	Description string    `gorm:"type:text" json:"description"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AppendOrderHistory writes one audit row inside the caller's transaction.
// Actor identity comes from the request context on the transaction.
func AppendOrderHistory(tx *gorm.DB, orderId int, actionCode, fromStage, toStage, description string) error {
	ctx := tx.Statement.Context

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}

	role := ActorRoleSystem
	if r, ok := utils.GetActorRoleFromContext(ctx); ok && r != "" {
		role = ActorRole(r)
	}
	actorName, _ := utils.GetUserNameFromContext(ctx)

	history := OrderHistory{
		CompanyId:   companyId,
		OrderId:     orderId,
		ActionCode:  actionCode,
		FromStage:   fromStage,
		ToStage:     toStage,
		ActorRole:   role,
		ActorName:   actorName,
		Description: description,
	}
	return tx.Create(&history).Error
}

func GetOrderHistories(ctx context.Context, orderId int) ([]*OrderHistory, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var results []*OrderHistory
	err := db.WithContext(ctx).
		Where("company_id = ? AND order_id = ?", companyId, orderId).
		Order("created_at ASC, id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
