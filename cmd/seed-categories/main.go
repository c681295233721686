// seed-categories creates or updates the built-in tag categories used by bulk
// batch submission. Safe to rerun; existing categories are updated in place.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-categories
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/models"
	"github.com/provenroll/enrollfix_backend/utils"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	categories := []models.TagCategory{
		{
			CategoryKey:   "data_quality",
			DisplayName:   "Data Quality",
			AllowedValues: models.StringList{"verified", "suspect", "invalid"},
			IsActive:      utils.NewTrue(),
		},
		{
			CategoryKey:   "outreach_status",
			DisplayName:   "Outreach Status",
			AllowedValues: models.StringList{"contacted", "no_response", "resolved"},
			IsActive:      utils.NewTrue(),
		},
		{
			CategoryKey:   "termination_review",
			DisplayName:   "Termination Review",
			AllowedValues: models.StringList{"confirm_termed", "active_in_error", "pending_verification"},
			IsActive:      utils.NewTrue(),
		},
	}

	for i := range categories {
		if err := models.UpsertTagCategory(ctx, db, &categories[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed category %s: %v\n", categories[i].CategoryKey, err)
			os.Exit(1)
		}
		fmt.Printf("seeded category %s (%d values)\n", categories[i].CategoryKey, len(categories[i].AllowedValues))
	}
	fmt.Println("done")
}
