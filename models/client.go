package models

import (
	"context"
	"errors"
	"time"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// Client is the external customer an order is placed for. Referenced by
// orders, not owned by them.
type Client struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`

	Name        string `gorm:"size:255;not null" json:"name" binding:"required"`
	CompanyName string `gorm:"size:255" json:"company_name"`
	Email       string `gorm:"size:255;not null;index" json:"email" binding:"required"`
	Phone       string `gorm:"size:50" json:"phone"`
	Address     string `gorm:"type:text" json:"address"`

	IsActive  *bool     `gorm:"not null;default:1" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, err
		}
	}
	if err := utils.ValidateUnique[Client](ctx, companyId, "email", input.Email, 0); err != nil {
		return nil, err
	}

	client := Client{
		CompanyId:   companyId,
		Name:        input.Name,
		CompanyName: input.CompanyName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Client](ctx, companyId, id)
}

func GetClients(ctx context.Context) ([]*Client, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var results []*Client
	err := db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyId, true).
		Order("name ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
