package workflow

import (
	"context"
	"encoding/csv"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/provenroll/enrollfix_backend/models"
)

// exportData flattens a batch's records into a rectangular grid. The id
// column leads, the remaining headers are the sorted union of every stored
// row's keys, and rows come back in insertion order. Missing cells are empty
// strings, never dropped columns.
func exportData(ctx context.Context, db *gorm.DB, batchId int) (*models.BulkBatch, []string, [][]string, error) {
	batch, err := models.GetBatch(ctx, db, batchId)
	if err != nil {
		return nil, nil, nil, err
	}

	var records []models.BulkRecord
	err = db.WithContext(ctx).
		Where("batch_id = ?", batchId).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, nil, nil, err
	}

	keySet := make(map[string]bool)
	for _, r := range records {
		for k := range r.OriginalRow {
			keySet[k] = true
		}
	}
	delete(keySet, batch.IdColumnName)

	rest := make([]string, 0, len(keySet))
	for k := range keySet {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	headers := append([]string{batch.IdColumnName}, rest...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = r.OriginalRow[h]
		}
		rows = append(rows, row)
	}

	return batch, headers, rows, nil
}

// ExportBatchCsv streams the batch's stored rows back out as CSV.
func ExportBatchCsv(ctx context.Context, db *gorm.DB, batchId int, w io.Writer) (*models.BulkBatch, error) {
	batch, headers, rows, err := exportData(ctx, db, batchId)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return batch, writer.Error()
}

// ExportBatchXlsx writes the same grid as a single-sheet workbook.
func ExportBatchXlsx(ctx context.Context, db *gorm.DB, batchId int, w io.Writer) (*models.BulkBatch, error) {
	batch, headers, rows, err := exportData(ctx, db, batchId)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Records"
	f.SetSheetName(f.GetSheetName(0), sheet)

	writeRow := func(rowIdx int, values []string) error {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}

	if err := writeRow(1, headers); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return nil, err
		}
	}

	if err := f.Write(w); err != nil {
		return nil, err
	}
	return batch, nil
}
