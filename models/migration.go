package models

import (
	"log"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table on db. Referenced tables come first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Category{}, &Division{},
		&Letter{}, &SerialCounter{},
		&ActivityLog{}, &LetterEvent{},
	)
}

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
