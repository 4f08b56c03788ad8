package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/podomall/podomall/internal/spreadsheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminUploadDeliveries takes a carrier shipment workbook, allocates each
// row against open orders, and answers with a success/failure report
// workbook.
func (h *Handlers) AdminUploadDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "workbook exceeds the upload limit")
			return
		}
		respondError(ctx, w, http.StatusBadRequest, "INVALID_UPLOAD", "multipart form with a file field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_UPLOAD", "file field is required")
		return
	}
	defer file.Close()

	rows, rowErrs, err := spreadsheet.ParseShipments(file)
	if err != nil {
		logger.Warn("rejected shipment workbook", "error", err, "filename", header.Filename)
		respondError(ctx, w, http.StatusBadRequest, "INVALID_WORKBOOK", err.Error())
		return
	}

	result := h.allocatorService.Allocate(ctx, rows, rowErrs)
	logger.Info("delivery upload processed",
		"filename", header.Filename,
		"rows", len(rows),
		"allocated", len(result.Successes),
		"failed", len(result.Failures),
	)

	filename := fmt.Sprintf("delivery-report-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := spreadsheet.WriteReport(w, result.Successes, result.Failures); err != nil {
		logger.Error("failed to write delivery report", "error", err)
	}
}

// AdminDeliveryTemplate serves an empty workbook with the expected header
// row.
func (h *Handlers) AdminDeliveryTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="delivery-template.xlsx"`)
	if err := spreadsheet.WriteTemplate(w); err != nil {
		h.loggerFromContext(ctx).Error("failed to write delivery template", "error", err)
	}
}
