package models

import (
	"log"

	"github.com/provenroll/enrollfix_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Observation{},
		&TagCategory{},
		&BulkBatch{}, &BulkRecord{},
		&ReviewEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
