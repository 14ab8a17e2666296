package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"welth/internal/core"
	applog "welth/internal/log"
)

// multipart framing allowance on top of the file limit
const multipartOverhead = 64 << 10

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.receipts == nil {
		ErrorResponse(r, http.StatusServiceUnavailable, "receipt scanning is not configured").Write(w)
		return
	}

	image, mimeType, err := s.readReceipt(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.receipts.ScanReceipt(r.Context(), image, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var url string
	if s.archive != nil {
		url, err = s.archive.Store(r.Context(), userIDFrom(r.Context()), image, mimeType)
		if err != nil {
			// the scan result is still usable without an archived copy
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Receipt archive failed",
				applog.FieldComponent, applog.ComponentAI,
				applog.FieldError, err)
			url = ""
		}
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Receipt scanned",
		applog.FieldOperation, applog.OpScan,
		"bytes", len(image),
		"mime_type", mimeType)
	NewJSONResponse().Body(newReceiptView(data, url)).Write(w)
}

// readReceipt extracts the "file" part of a multipart upload, bounded by the
// configured size.
func (s *Server) readReceipt(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxReceiptBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxReceiptBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: expected multipart form with a file field", core.ErrInvalidInput)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: missing file field", core.ErrInvalidInput)
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, s.maxReceiptBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(image)) > s.maxReceiptBytes {
		return nil, "", &http.MaxBytesError{Limit: s.maxReceiptBytes}
	}
	if len(image) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", core.ErrInvalidInput)
	}

	mimeType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, _, _ = mime.ParseMediaType(http.DetectContentType(image))
	}
	return image, mimeType, nil
}
