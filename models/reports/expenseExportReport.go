package reports

import (
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"bitbucket.org/mmdatafocus/expenses_backend/utils"
	"github.com/xuri/excelize/v2"
)

// WriteExpenseExcel renders the canonical expense set as an xlsx workbook for
// the review workflow's offline consumers.
func WriteExpenseExcel(w io.Writer, records []models.ExpenseRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Expenses"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"ExternalId", "Source", "Date", "Vendor", "Amount", "Currency",
		"Department", "Branch", "Category", "Cardholder", "Flag", "Approval", "Memo",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, rec := range records {
		row := i + 2
		approval := ""
		if rec.ApprovalStatus != nil {
			approval = string(*rec.ApprovalStatus)
		}
		values := []interface{}{
			rec.ExternalId,
			string(rec.SourceSystem),
			rec.TransactionDate.Format("2006-01-02"),
			rec.VendorName,
			rec.Amount.InexactFloat64(),
			rec.Currency,
			utils.DereferencePtr(rec.Department, ""),
			utils.DereferencePtr(rec.Branch, ""),
			utils.DereferencePtr(rec.Category, ""),
			utils.DereferencePtr(rec.Cardholder, ""),
			utils.DereferencePtr(rec.FlagCategory, ""),
			approval,
			utils.DereferencePtr(rec.Memo, ""),
		}
		for col, value := range values {
			cell, cerr := excelize.CoordinatesToCellName(col+1, row)
			if cerr != nil {
				return cerr
			}
			f.SetCellValue(sheet, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write expense export: %w", err)
	}
	return nil
}
