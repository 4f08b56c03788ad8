// Package spreadsheet reads carrier shipment uploads and writes allocation
// reports in xlsx form.
package spreadsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column order of the shipment upload, fixed by the template this service
// hands out to carriers.
var shipmentHeader = []string{
	"수취인명",
	"수취인 연락처",
	"주소",
	"상품명",
	"수량",
	"보내는분",
	"보내는분 연락처",
	"택배사",
	"운송장번호",
}

// ShipmentRow is one parsed line of a carrier upload. RowNumber is the
// 1-based spreadsheet row, kept for error reporting.
type ShipmentRow struct {
	RowNumber      int
	ReceiverName   string
	ReceiverPhone  string
	Address        string
	ProductName    string
	Quantity       int
	SenderName     string
	SenderPhone    string
	Courier        string
	TrackingNumber string
}

// RowError pairs a rejected row with the reason it was rejected.
type RowError struct {
	RowNumber int
	Reason    string
}

// ParseShipments reads the first sheet of an xlsx upload. Malformed rows are
// collected as RowErrors rather than aborting the whole file; a bad header
// aborts.
func ParseShipments(r io.Reader) ([]ShipmentRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, nil, err
	}

	var (
		shipments []ShipmentRow
		rowErrs   []RowError
	)
	for i, cells := range rows[1:] {
		rowNumber := i + 2
		if isBlank(cells) {
			continue
		}
		row, reason := parseRow(rowNumber, cells)
		if reason != "" {
			rowErrs = append(rowErrs, RowError{RowNumber: rowNumber, Reason: reason})
			continue
		}
		shipments = append(shipments, row)
	}
	return shipments, rowErrs, nil
}

func checkHeader(cells []string) error {
	if len(cells) < len(shipmentHeader) {
		return fmt.Errorf("header has %d columns, want %d", len(cells), len(shipmentHeader))
	}
	for i, want := range shipmentHeader {
		if strings.TrimSpace(cells[i]) != want {
			return fmt.Errorf("header column %d is %q, want %q", i+1, strings.TrimSpace(cells[i]), want)
		}
	}
	return nil
}

func parseRow(rowNumber int, cells []string) (ShipmentRow, string) {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	row := ShipmentRow{
		RowNumber:      rowNumber,
		ReceiverName:   cell(0),
		ReceiverPhone:  normalizePhone(cell(1)),
		Address:        cell(2),
		ProductName:    cell(3),
		SenderName:     cell(5),
		SenderPhone:    normalizePhone(cell(6)),
		Courier:        cell(7),
		TrackingNumber: cell(8),
	}

	switch {
	case row.ReceiverName == "":
		return row, "수취인명 누락"
	case row.ReceiverPhone == "":
		return row, "수취인 연락처 누락"
	case row.ProductName == "":
		return row, "상품명 누락"
	case row.Courier == "":
		return row, "택배사 누락"
	case row.TrackingNumber == "":
		return row, "운송장번호 누락"
	}

	quantity, err := strconv.Atoi(cell(4))
	if err != nil || quantity <= 0 {
		return row, fmt.Sprintf("수량 값이 올바르지 않음: %q", cell(4))
	}
	row.Quantity = quantity
	return row, ""
}

// normalizePhone strips separators so spreadsheet formatting quirks do not
// break receiver matching.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
