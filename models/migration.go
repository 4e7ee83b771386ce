package models

import "gorm.io/gorm"

// Migrate runs AutoMigrate for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Company{},
		&User{},
		&Client{},
		&Order{},
		&Quotation{},
		&PurchaseOrder{},
		&Payment{},
		&DeliveryNote{},
		&OrderHistory{},
		&OrderEventRecord{},
		&IdempotencyKey{},
	)
}
