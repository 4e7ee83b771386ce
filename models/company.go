package models

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// Company is the tenant. Every order, client, user and audit row is scoped
// to one company.
type Company struct {
	ID   string `gorm:"primary_key;size:64" json:"id"`
	Name string `gorm:"size:255;not null" json:"name" binding:"required"`

	Email   string `gorm:"size:255" json:"email"`
	Phone   string `gorm:"size:50" json:"phone"`
	Address string `gorm:"type:text" json:"address"`

	IsActive  *bool     `gorm:"not null;default:1" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	company := Company{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func GetCompany(ctx context.Context, id string) (*Company, error) {
	db := config.GetDB()
	var result Company
	if err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
