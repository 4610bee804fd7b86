package models

import (
	"log"

	"github.com/stageworks/roster_backend/config"
	"gorm.io/gorm"
)

// Migrate creates or updates every roster table on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&PaymentSchedule{}, &Payment{}, &UnmatchedPayment{},
		&IntegrationSettings{}, &ImportLog{},
		&User{},
	)
}

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
