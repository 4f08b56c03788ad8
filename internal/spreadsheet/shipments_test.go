package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildUpload(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(shipmentHeader))
	for i, col := range shipmentHeader {
		header[i] = col
	}
	all := append([][]any{header}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestParseShipments(t *testing.T) {
	t.Parallel()

	buf := buildUpload(t, [][]any{
		{"김철수", "010-1234-5678", "서울시 강남구 테헤란로 1", "유기농 사과 1kg", "2", "포도몰", "02-123-4567", "CJ대한통운", "1234567890"},
		{"", "", "", "", "", "", "", "", ""},
		{"이영희", "01098765432", "부산시 해운대구", "배 선물세트", "1", "포도몰", "02-123-4567", "한진택배", "9876543210"},
	})

	rows, rowErrs, err := ParseShipments(buf)
	if err != nil {
		t.Fatalf("ParseShipments() error = %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("row errors = %v, want none", rowErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.RowNumber != 2 {
		t.Errorf("first row number = %d, want 2", first.RowNumber)
	}
	if first.ReceiverPhone != "01012345678" {
		t.Errorf("phone = %q, want separators stripped", first.ReceiverPhone)
	}
	if first.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", first.Quantity)
	}
	if rows[1].ReceiverName != "이영희" {
		t.Errorf("second receiver = %q", rows[1].ReceiverName)
	}
}

func TestParseShipmentsBadRows(t *testing.T) {
	t.Parallel()

	buf := buildUpload(t, [][]any{
		{"김철수", "010-1234-5678", "서울시", "사과", "abc", "포도몰", "02-1", "CJ대한통운", "111"},
		{"", "010-1234-5678", "서울시", "사과", "1", "포도몰", "02-1", "CJ대한통운", "222"},
		{"박민수", "010-1111-2222", "대구시", "사과", "3", "포도몰", "02-1", "CJ대한통운", "333"},
	})

	rows, rowErrs, err := ParseShipments(buf)
	if err != nil {
		t.Fatalf("ParseShipments() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d good rows, want 1", len(rows))
	}
	if len(rowErrs) != 2 {
		t.Fatalf("got %d row errors, want 2", len(rowErrs))
	}
	if rowErrs[0].RowNumber != 2 || rowErrs[1].RowNumber != 3 {
		t.Errorf("row error numbers = %d, %d; want 2, 3", rowErrs[0].RowNumber, rowErrs[1].RowNumber)
	}
}

func TestParseShipmentsBadHeader(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	defer f.Close()
	row := []any{"이름", "전화", "주소"}
	if err := f.SetSheetRow(f.GetSheetName(0), "A1", &row); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ParseShipments(&buf); err == nil {
		t.Fatal("expected header error")
	}
}

func TestReportRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteReport(&buf,
		[]ReportSuccess{{RowNumber: 2, OrderNumber: "ORD-20260101-0001", ProductName: "사과", Quantity: 2, Courier: "CJ대한통운", TrackingNumber: "111"}},
		[]ReportFailure{{RowNumber: 3, Receiver: "이영희", Product: "배", Quantity: 1, Reason: "일치하는 주문 없음"}},
	)
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("opening report: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(sheets))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("success sheet has %d rows, want 2", len(rows))
	}
	if rows[1][1] != "ORD-20260101-0001" {
		t.Errorf("order number cell = %q", rows[1][1])
	}
}

func TestTemplateHasHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteTemplate(&buf); err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("template has %d rows, want header only", len(rows))
	}
	for i, want := range shipmentHeader {
		if rows[0][i] != want {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], want)
		}
	}
}
