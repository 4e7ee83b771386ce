package models

import (
	"context"
	"errors"
	"time"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// User is an internal staff account.
type User struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"size:64;not null;index" json:"company_id"`

	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password string   `gorm:"size:255;not null" json:"-"`
	Role     UserRole `gorm:"size:10;not null;default:'STAFF'" json:"role"`

	IsActive  *bool     `gorm:"not null;default:1" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role"`
}

type SignInInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleStaff
	}

	user := User{
		CompanyId: companyId,
		Name:      input.Name,
		Email:     input.Email,
		Password:  string(hashed),
		Role:      role,
		IsActive:  utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SignIn verifies credentials and returns the user plus a signed JWT.
func SignIn(ctx context.Context, input *SignInInput) (*User, string, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).
		Where("email = ? AND is_active = ?", input.Email, true).
		First(&user).Error
	if err != nil {
		return nil, "", utils.ErrorUnauthorized
	}

	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, "", utils.ErrorUnauthorized
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role), user.CompanyId)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[User](ctx, companyId, id)
}
