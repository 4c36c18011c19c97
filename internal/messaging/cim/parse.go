package cim

import (
	"context"
	"encoding/xml"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Document is the outcome of parsing one inbound message.
type Document struct {
	Header Header
	// Transactions holds every record in document order, valid or not.
	Transactions []Transaction
	// Errors are document level. When present no record may be processed.
	Errors []ValidationError
}

// Transaction is one record of a document. Errors is empty when the record
// passed validation.
type Transaction struct {
	TransactionID string
	Record        MarketActivityRecord
	Errors        []ValidationError
}

func (t Transaction) Valid() bool {
	return len(t.Errors) == 0
}

// Valid reports whether the document as a whole can be processed.
func (d *Document) Valid() bool {
	return len(d.Errors) == 0
}

// Records returns the records that passed validation, in document order.
func (d *Document) Records() []MarketActivityRecord {
	var out []MarketActivityRecord
	for _, t := range d.Transactions {
		if t.Valid() {
			out = append(out, t.Record)
		}
	}
	return out
}

// Rejected returns the records that failed validation, in document order.
func (d *Document) Rejected() []Transaction {
	var out []Transaction
	for _, t := range d.Transactions {
		if !t.Valid() {
			out = append(out, t)
		}
	}
	return out
}

// Reject drops every transaction and adds a document level error.
func (d *Document) Reject(errs ...ValidationError) {
	d.Errors = append(d.Errors, errs...)
	d.Transactions = nil
}

type parseConfig struct {
	headerCheck func(Header) []ValidationError
}

type ParseOption func(*parseConfig)

// WithHeaderCheck adds document level checks on the header, such as whether
// the sender matches the authenticated caller.
func WithHeaderCheck(check func(Header) []ValidationError) ParseOption {
	return func(c *parseConfig) { c.headerCheck = check }
}

// Parse reads and validates a whole document. Validation problems are
// reported in the Document; the error is reserved for cancellation.
// Uniqueness of message and transaction IDs across messages is not checked
// here, see IdentifierRegistry.
func Parse(ctx context.Context, r io.Reader, opts ...ParseOption) (*Document, error) {
	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	ctx, span := otel.Tracer("marketroles/messaging/cim").Start(ctx, "cim.parse")
	defer span.End()

	doc, err := read(ctx, NewReader(r))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("cim.kind", doc.Header.Kind),
		attribute.String("cim.message_id", doc.Header.MessageID),
		attribute.Int("cim.records", len(doc.Transactions)),
	)
	if doc.Valid() && cfg.headerCheck != nil {
		if errs := cfg.headerCheck(doc.Header); len(errs) > 0 {
			doc.Reject(errs...)
		}
	}
	return doc, nil
}

func read(ctx context.Context, reader *Reader) (*Document, error) {
	doc := &Document{}
	header, errs, err := reader.ReadHeader(ctx)
	doc.Header = header
	doc.Errors = append(doc.Errors, errs...)
	if err != nil {
		return malformed(doc, err)
	}
	if len(doc.Errors) > 0 {
		return doc, nil
	}

	for {
		record, errs, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return malformed(doc, err)
		}
		if record == nil {
			doc.Errors = append(doc.Errors, errs...)
			continue
		}
		doc.Transactions = append(doc.Transactions, Transaction{TransactionID: record.TransactionID(), Record: record, Errors: errs})
	}
	if len(doc.Transactions) == 0 {
		doc.Errors = append(doc.Errors, ValidationError{Code: CodeMissingElement, Message: "document contains no " + recordElement})
	}
	if len(doc.Errors) > 0 {
		doc.Transactions = nil
	}
	return doc, nil
}

// malformed turns a stream error into a document error. Context errors are
// returned as is.
func malformed(doc *Document, err error) (*Document, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	ve := ValidationError{Code: CodeMalformedXML, Message: err.Error()}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		ve.Line = syntaxErr.Line
		ve.Message = syntaxErr.Msg
	}
	doc.Reject(ve)
	return doc, nil
}
