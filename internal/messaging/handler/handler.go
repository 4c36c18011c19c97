// Package handler exposes the B2B message endpoint and the accounting point
// query over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"marketroles/internal/accountingpoint/query"
	"marketroles/internal/messaging/ingestion"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/platform/httputil"
	"marketroles/pkg/requestcontext"
)

const DefaultMaxBodyBytes = 4 << 20

// Ingestion receives inbound market documents.
type Ingestion interface {
	Receive(ctx context.Context, actor requestcontext.MarketActor, body io.Reader) (*ingestion.Receipt, error)
}

// Query reads accounting point views.
type Query interface {
	AccountingPoint(ctx context.Context, gsrn string) (*query.View, error)
}

type Handler struct {
	ingestion    Ingestion
	query        Query
	logger       *slog.Logger
	maxBodyBytes int64
}

func New(ingestion Ingestion, query Query, logger *slog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		ingestion:    ingestion,
		query:        query,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Register mounts the endpoints. The caller applies authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/messages", h.HandleReceive)
	r.Get("/accountingpoints/{gsrn}", h.HandleGetAccountingPoint)
}

// HandleReceive handles POST /messages.
func (h *Handler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error":             "request_too_large",
				"error_description": "market document exceeds the size limit",
			})
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	receipt, err := h.ingestion.Receive(ctx, actor, bytes.NewReader(body))
	if err != nil {
		h.logger.ErrorContext(ctx, "market document ingestion failed",
			"request_id", requestID,
			"sender", actor.GLN,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if !receipt.Accepted() {
		h.logger.InfoContext(ctx, "market document rejected",
			"request_id", requestID,
			"sender", actor.GLN,
			"message_id", receipt.MessageID,
			"errors", len(receipt.Errors),
		)
		writeXMLErrors(w, receipt)
		return
	}

	h.logger.InfoContext(ctx, "market document accepted",
		"request_id", requestID,
		"sender", actor.GLN,
		"message_id", receipt.MessageID,
		"transactions", len(receipt.Transactions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, receipt)
}

// HandleGetAccountingPoint handles GET /accountingpoints/{gsrn}.
func (h *Handler) HandleGetAccountingPoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requestcontext.Actor(ctx); !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	view, err := h.query.AccountingPoint(ctx, chi.URLParam(r, "gsrn"))
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "accounting point query failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

type xmlError struct {
	XMLName   xml.Name         `xml:"Error"`
	Code      string           `xml:"Code"`
	Message   string           `xml:"Message"`
	MessageID string           `xml:"MessageId,omitempty"`
	Details   []xmlErrorDetail `xml:"Details>Error"`
}

type xmlErrorDetail struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
	Line    int    `xml:"Line,omitempty"`
}

func writeXMLErrors(w http.ResponseWriter, receipt *ingestion.Receipt) {
	doc := xmlError{
		Code:      "ValidationError",
		Message:   "the market document was rejected",
		MessageID: receipt.MessageID,
	}
	for _, e := range receipt.Errors {
		doc.Details = append(doc.Details, xmlErrorDetail{Code: string(e.Code), Message: e.Message, Line: e.Line})
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(doc)
}
