package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/utils"
)

// Order is the aggregate root. It exclusively owns its quotations, purchase
// orders, payments, delivery notes and history rows.
type Order struct {
	ID            int    `gorm:"primary_key" json:"id"`
	CompanyId     string `gorm:"size:64;not null;index" json:"company_id"`
	ClientId      int    `gorm:"index;not null" json:"client_id"`
	TrackingToken string `gorm:"size:36;not null;uniqueIndex" json:"tracking_token"`
	OrderNumber   string `gorm:"size:50;not null" json:"order_number"`

	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Status OrderStatus `gorm:"size:20;not null;index" json:"status"`
	Stage  OrderStage  `gorm:"size:30;not null;index" json:"stage"`
	// Version guards read-modify-write races; every accepted transition
	// increments it.
	Version int `gorm:"not null;default:0" json:"version"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"total_amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`

	DepositPercentage *decimal.Decimal `gorm:"type:decimal(8,4)" json:"deposit_percentage"`
	DepositAmount     decimal.Decimal  `gorm:"type:decimal(20,6)" json:"deposit_amount"`
	DepositPaid       bool             `gorm:"not null;default:0" json:"deposit_paid"`
	DepositPaidAt     *time.Time       `json:"deposit_paid_at"`

	FinalPaymentReceived   bool       `gorm:"not null;default:0" json:"final_payment_received"`
	FinalPaymentReceivedAt *time.Time `json:"final_payment_received_at"`

	CancelledAt *time.Time `json:"cancelled_at"`
	ClosedAt    *time.Time `json:"closed_at"`

	Quotations     []Quotation     `gorm:"foreignKey:OrderId" json:"quotations"`
	PurchaseOrders []PurchaseOrder `gorm:"foreignKey:OrderId" json:"purchase_orders"`
	Payments       []Payment       `gorm:"foreignKey:OrderId" json:"payments"`
	DeliveryNotes  []DeliveryNote  `gorm:"foreignKey:OrderId" json:"delivery_notes"`
	Histories      []OrderHistory  `gorm:"foreignKey:OrderId" json:"histories,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	ClientId    int             `json:"client_id" binding:"required"`
	OrderNumber string          `json:"order_number"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency" binding:"required"`
}

var orderAssociations = []string{"Quotations", "PurchaseOrders", "Payments", "DeliveryNotes"}

func preloadOrder(dbCtx *gorm.DB) *gorm.DB {
	for _, assoc := range orderAssociations {
		dbCtx = dbCtx.Preload(assoc)
	}
	return dbCtx
}

// CreateOrder registers a newly submitted order. Every order starts at
// RECEIVED / PENDING.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := utils.ValidateResourceId[Client](ctx, companyId, input.ClientId); err != nil {
		return nil, errors.New("client not found")
	}

	order := Order{
		CompanyId:     companyId,
		ClientId:      input.ClientId,
		TrackingToken: uuid.NewString(),
		OrderNumber:   input.OrderNumber,
		Title:         input.Title,
		Description:   input.Description,
		Status:        OrderStatusPending,
		Stage:         StageReceived,
		TotalAmount:   input.TotalAmount,
		Currency:      input.Currency,
	}
	if order.OrderNumber == "" {
		order.OrderNumber = "ORD-" + uuid.NewString()[:8]
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := AppendOrderHistory(tx, order.ID, "ORDER_CREATED", string(StageReceived), string(StageReceived), "Order received."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var result Order
	dbCtx := preloadOrder(db.WithContext(ctx)).Where("company_id = ?", companyId)
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// GetOrderByToken resolves the client-facing tracking surface. The token is
// the credential; no company scoping applies.
func GetOrderByToken(ctx context.Context, token string) (*Order, error) {
	if token == "" {
		return nil, utils.ErrorRecordNotFound
	}

	db := config.GetDB()
	var result Order
	dbCtx := preloadOrder(db.WithContext(ctx))
	if err := dbCtx.Where("tracking_token = ?", token).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

type OrderFilter struct {
	Status   *OrderStatus
	Stage    *OrderStage
	ClientId *int
	Limit    int
	Offset   int
}

func GetOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var results []*Order

	dbCtx := preloadOrder(db.WithContext(ctx)).Where("company_id = ?", companyId)
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.Stage != nil {
		dbCtx = dbCtx.Where("stage = ?", *filter.Stage)
	}
	if filter.ClientId != nil && *filter.ClientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *filter.ClientId)
	}
	if filter.Limit > 0 {
		dbCtx = dbCtx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		dbCtx = dbCtx.Offset(filter.Offset)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetOpenOrders returns every non-terminal order for the tenant, used by the
// admin dashboard action feed.
func GetOpenOrders(ctx context.Context) ([]*Order, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var results []*Order
	dbCtx := preloadOrder(db.WithContext(ctx)).
		Where("company_id = ?", companyId).
		Where("status NOT IN ?", []OrderStatus{OrderStatusCompleted, OrderStatusCancelled})
	if err := dbCtx.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetOrderAggregateForUpdate re-reads the order with all children inside the
// caller's transaction, with the row locked. Transition guards are evaluated
// against this fresh read.
func GetOrderAggregateForUpdate(tx *gorm.DB, companyId string, id int) (*Order, error) {
	var result Order
	dbCtx := preloadOrder(lockForUpdate(tx)).Where("company_id = ?", companyId)
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// FOR UPDATE is a MySQL concern; sqlite (tests) serializes writes on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
