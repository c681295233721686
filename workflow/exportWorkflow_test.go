package workflow_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/provenroll/enrollfix_backend/workflow"
)

func TestExportBatchCsv_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	category := seedCategory(t, db)
	rows := makeRows(7)

	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		rows, testHeaders, testConfig(category.ID), testActor, nil)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	var buf bytes.Buffer
	if _, err := workflow.ExportBatchCsv(context.Background(), db, batch.ID, &buf); err != nil {
		t.Fatalf("ExportBatchCsv: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-parse export: %v", err)
	}
	if len(records) != 8 {
		t.Fatalf("expected header + 7 rows, got %d records", len(records))
	}

	// Id column leads; the rest is sorted.
	header := records[0]
	if header[0] != "member_id" || header[1] != "provider_npi" || header[2] != "term_date" {
		t.Fatalf("unexpected header order: %v", header)
	}

	// Every ingested row comes back with its values intact.
	exported := make(map[string]string, len(records)-1)
	for _, rec := range records[1:] {
		exported[rec[0]] = rec[1]
	}
	for _, row := range rows {
		got, ok := exported[row["member_id"]]
		if !ok {
			t.Fatalf("row %s missing from export", row["member_id"])
		}
		if got != row["provider_npi"] {
			t.Fatalf("row %s: expected npi %s, got %s", row["member_id"], row["provider_npi"], got)
		}
	}
}

func TestExportBatchXlsx(t *testing.T) {
	db := newTestDB(t)
	category := seedCategory(t, db)

	batch, err := workflow.SubmitBatch(context.Background(), db, testLogger(),
		makeRows(3), testHeaders, testConfig(category.ID), testActor, nil)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	var buf bytes.Buffer
	if _, err := workflow.ExportBatchXlsx(context.Background(), db, batch.ID, &buf); err != nil {
		t.Fatalf("ExportBatchXlsx: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "member_id" {
		t.Fatalf("unexpected first header cell: %q", rows[0][0])
	}
	if rows[1][0] != "M0000" {
		t.Fatalf("unexpected first data cell: %q", rows[1][0])
	}
}
