// batch-audit lists batches whose ingestion did not complete: anything still
// in ingesting or partial, or whose persisted row count disagrees with the
// declared record count. Read-only; resume happens through the API.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/batch-audit
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/provenroll/enrollfix_backend/config"
	"github.com/provenroll/enrollfix_backend/workflow"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	partial, err := workflow.FindPartialBatches(ctx, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to scan batches: %v\n", err)
		os.Exit(1)
	}
	if len(partial) == 0 {
		fmt.Println("no incomplete batches")
		return
	}

	for _, p := range partial {
		fmt.Printf("batch %d (%s): status=%s persisted=%d/%d submitted_by=%s created_at=%s\n",
			p.Batch.ID, p.Batch.BatchName, p.Batch.Status,
			p.PersistedCount, p.Batch.RecordCount,
			p.Batch.SubmittedBy, p.Batch.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("%d incomplete batch(es)\n", len(partial))
}
