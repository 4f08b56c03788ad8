package spreadsheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReportSuccess is one allocated shipment line in the result report. A
// single upload row split across several orders produces several lines.
type ReportSuccess struct {
	RowNumber      int
	OrderNumber    string
	ProductName    string
	Quantity       int
	Courier        string
	TrackingNumber string
}

// ReportFailure is one upload row that could not be allocated.
type ReportFailure struct {
	RowNumber int
	Receiver  string
	Product   string
	Quantity  int
	Reason    string
}

// WriteReport writes a two-sheet workbook, allocations first and failures
// second, in the layout admins re-upload after fixing failed rows.
func WriteReport(w io.Writer, successes []ReportSuccess, failures []ReportFailure) error {
	f := excelize.NewFile()
	defer f.Close()

	const successSheet = "배송 등록 완료"
	const failureSheet = "실패"

	if err := f.SetSheetName(f.GetSheetName(0), successSheet); err != nil {
		return err
	}
	if err := setRow(f, successSheet, 1,
		"업로드 행", "주문번호", "상품명", "수량", "택배사", "운송장번호"); err != nil {
		return err
	}
	for i, s := range successes {
		if err := setRow(f, successSheet, i+2,
			s.RowNumber, s.OrderNumber, s.ProductName, s.Quantity, s.Courier, s.TrackingNumber); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(failureSheet); err != nil {
		return err
	}
	if err := setRow(f, failureSheet, 1,
		"업로드 행", "수취인", "상품명", "수량", "실패 사유"); err != nil {
		return err
	}
	for i, fail := range failures {
		if err := setRow(f, failureSheet, i+2,
			fail.RowNumber, fail.Receiver, fail.Product, fail.Quantity, fail.Reason); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// WriteTemplate writes the blank upload workbook carriers fill in.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]any, len(shipmentHeader))
	for i, col := range shipmentHeader {
		header[i] = col
	}
	if err := setRow(f, sheet, 1, header...); err != nil {
		return err
	}
	for i := range shipmentHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, 18); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d of %q: %w", row, sheet, err)
	}
	return nil
}
