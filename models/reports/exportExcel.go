package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/xuri/excelize/v2"
)

const letterRegisterSheet = "Register"

var letterRegisterHeadings = []string{
	"No", "Number", "Issued On", "Category", "Category Name", "Division", "Division Name",
	"Global Serial", "Daily Serial", "Created By", "Purpose", "Created At",
}

// LetterRegisterFilename names the attachment for a download made at t.
func LetterRegisterFilename(t time.Time) string {
	return fmt.Sprintf("letter-register-%s.xlsx", t.Format("20060102-150405"))
}

// BuildLetterRegister lays the rows out as one sheet with a bold header row.
func BuildLetterRegister(rows []*models.LetterRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", letterRegisterSheet); err != nil {
		f.Close()
		return nil, err
	}

	for i, h := range letterRegisterHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.SetCellValue(letterRegisterSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(letterRegisterHeadings), 1)
		f.SetCellStyle(letterRegisterSheet, "A1", last, style)
	}
	f.SetColWidth(letterRegisterSheet, "B", "B", 34)
	f.SetColWidth(letterRegisterSheet, "K", "K", 48)

	for i, r := range rows {
		values := []interface{}{
			i + 1,
			r.NumberText,
			r.IssuedOn.String(),
			r.CategoryCode,
			r.CategoryName,
			r.DivisionCode,
			r.DivisionName,
			r.GlobalSerial,
			r.DailySerial,
			utils.DereferencePtr(r.CreatedBy, ""),
			utils.DereferencePtr(r.Purpose, ""),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(letterRegisterSheet, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteLetterRegister streams the workbook to w.
func WriteLetterRegister(w io.Writer, rows []*models.LetterRow) error {
	f, err := BuildLetterRegister(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
