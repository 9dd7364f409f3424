package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

// Ingester is implemented by *ingestion.Pipeline.
type Ingester interface {
	Ingest(ctx context.Context, name string, raw []byte) (*ingestion.Receipt, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	ingester Ingester
	maxBytes int64
}

func New(ing Ingester, maxBytes int64) *Handler {
	return &Handler{
		ingester: ing,
		maxBytes: maxBytes,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Upload)
	mux.HandleFunc("DELETE /api/v1/documents/{id...}", h.Delete)
}

// Upload accepts a multipart form with a single "file" part.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, "upload too large"))
		case errors.Is(err, http.ErrMissingFile):
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "no file provided"))
		default:
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid multipart form"))
		}
		return
	}
	defer file.Close()
	if header.Filename == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "no file selected"))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "reading upload failed"))
		return
	}
	if int64(len(raw)) > h.maxBytes {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, "upload too large"))
		return
	}

	receipt, err := h.ingester.Ingest(ctx, header.Filename, raw)
	if err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if receipt.Status == ingestion.StatusPending {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, receipt)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ingester.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"status":      ingestion.StatusDeleted,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, err)
}

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to write response", "component", "ingestion-handler", "error", err)
	}
}

// WriteError answers with the status HTTPStatusCode assigns to err. Server
// errors are logged and their detail is not returned to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("ingestion request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = http.StatusText(status)
	}
	WriteJSON(w, status, map[string]string{"error": message})
}
