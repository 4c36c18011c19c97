// Package ingestion receives inbound market documents from energy suppliers,
// hands each transaction to its business process and answers every
// transaction with a confirm or reject document.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cosservice "marketroles/internal/changeofsupplier/service"
	"marketroles/internal/messaging/cim"
	"marketroles/internal/messaging/metrics"
	moveinservice "marketroles/internal/movein/service"
	"marketroles/internal/processing"
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/requestcontext"
)

// Document level codes added on top of the schema validation.
const (
	CodeSenderMismatch  cim.ValidationErrorCode = "SenderDoesNotMatchAuthenticatedActor"
	CodeInvalidReceiver cim.ValidationErrorCode = "InvalidReceiver"
)

const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

const defaultConflictRetries = 2

type MoveInProcess interface {
	RequestMoveIn(ctx context.Context, req moveinservice.Request) (processing.Result, error)
}

type ChangeOfSupplierProcess interface {
	RequestChangeOfSupplier(ctx context.Context, req cosservice.Request) (processing.Result, error)
	CancelChangeOfSupplier(ctx context.Context, req cosservice.CancelRequest) (processing.Result, error)
}

// Responder queues the answer to a transaction in the transaction carried by
// ctx.
type Responder interface {
	Confirm(ctx context.Context, resp cim.Response) error
	Reject(ctx context.Context, resp cim.Response) error
}

// IdentifierRegistry records message and transaction IDs per sender. The Try
// methods return false when the ID was registered before. Registrations join
// the unit of work carried by ctx and are released when it fails.
type IdentifierRegistry interface {
	TryRegisterMessageID(ctx context.Context, sender, messageID string) (bool, error)
	TryRegisterTransactionID(ctx context.Context, sender, transactionID string) (bool, error)
}

// TransactionOutcome is the synchronous answer for one transaction. The
// matching confirm or reject document is delivered asynchronously.
type TransactionOutcome struct {
	TransactionID string       `json:"transaction_id"`
	Status        string       `json:"status"`
	Reasons       []cim.Reason `json:"reasons,omitempty"`
}

// Receipt summarizes a received document. Errors are document level; when
// present no transaction was processed. Transactions follow document order.
type Receipt struct {
	MessageID    string                `json:"message_id,omitempty"`
	DocumentKind string                `json:"document_kind,omitempty"`
	Errors       []cim.ValidationError `json:"errors,omitempty"`
	Transactions []TransactionOutcome  `json:"transactions,omitempty"`
}

// Accepted reports whether the document was accepted for processing.
func (r *Receipt) Accepted() bool {
	return len(r.Errors) == 0
}

type Service struct {
	dataHubGln       string
	registry         IdentifierRegistry
	moveIn           MoveInProcess
	changeOfSupplier ChangeOfSupplierProcess
	responder        Responder
	tx               processing.TxRunner
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	conflictRetries  int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRegistry enforces message and transaction ID uniqueness per sender.
func WithRegistry(registry IdentifierRegistry) Option {
	return func(s *Service) { s.registry = registry }
}

// WithConflictRetries sets how often a document is retried after a
// concurrent modification of one of its accounting points.
func WithConflictRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.conflictRetries = n
		}
	}
}

func New(
	dataHubGln id.GlnNumber,
	moveIn MoveInProcess,
	changeOfSupplier ChangeOfSupplierProcess,
	responder Responder,
	tx processing.TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		dataHubGln:       dataHubGln.String(),
		moveIn:           moveIn,
		changeOfSupplier: changeOfSupplier,
		responder:        responder,
		tx:               tx,
		logger:           slog.Default(),
		tracer:           otel.Tracer("marketroles/messaging/ingestion"),
		conflictRetries:  defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive parses body as sent by actor and processes its transactions. The
// document is one unit of work: IDs are registered, transactions processed and
// answers queued together, so a failure leaves nothing behind and the sender
// may resend. The error is reserved for infrastructure failures; every
// validation outcome is in the Receipt.
func (s *Service) Receive(ctx context.Context, actor requestcontext.MarketActor, body io.Reader) (*Receipt, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ingestion.receive", trace.WithAttributes(
		attribute.String("actor.gln", actor.GLN),
	))
	defer span.End()

	doc, err := cim.Parse(ctx, body, cim.WithHeaderCheck(s.checkHeader(actor)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("parse market document: %w", err)
	}
	kind := doc.Header.Kind
	defer s.metrics.ObserveReceive(kind, start)
	span.SetAttributes(attribute.String("cim.kind", kind), attribute.String("cim.message_id", doc.Header.MessageID))

	receipt := &Receipt{MessageID: doc.Header.MessageID, DocumentKind: kind, Errors: doc.Errors}
	if !doc.Valid() {
		s.rejectDocument(ctx, actor, receipt)
		return receipt, nil
	}

	err = s.retryOnConflict(ctx, func() error {
		receipt.Errors, receipt.Transactions = nil, nil
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			return s.process(txCtx, doc, receipt)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !receipt.Accepted() {
		s.rejectDocument(ctx, actor, receipt)
		return receipt, nil
	}

	s.metrics.IncDocument(kind, StatusAccepted)
	s.logger.InfoContext(ctx, "market document processed",
		"sender", actor.GLN, "message_id", doc.Header.MessageID, "kind", kind,
		"transactions", len(receipt.Transactions))
	return receipt, nil
}

func (s *Service) checkHeader(actor requestcontext.MarketActor) func(cim.Header) []cim.ValidationError {
	return func(h cim.Header) []cim.ValidationError {
		var errs []cim.ValidationError
		if h.SenderID != actor.GLN {
			errs = append(errs, cim.ValidationError{
				Code:    CodeSenderMismatch,
				Message: "sender " + h.SenderID + " does not match the authenticated market actor",
			})
		}
		if h.SenderRole != cim.RoleEnergySupplier || !actor.HasRole(cim.RoleEnergySupplier) {
			errs = append(errs, cim.ValidationError{
				Code:    cim.CodeInvalidRole,
				Message: "sender must act as energy supplier (" + cim.RoleEnergySupplier + ")",
			})
		}
		if h.ReceiverID != s.dataHubGln {
			errs = append(errs, cim.ValidationError{
				Code:    CodeInvalidReceiver,
				Message: "receiver " + h.ReceiverID + " is not DataHub",
			})
		}
		if h.ReceiverRole != cim.RoleDataHub {
			errs = append(errs, cim.ValidationError{
				Code:    cim.CodeInvalidRole,
				Message: "receiver role must be " + cim.RoleDataHub,
			})
		}
		return errs
	}
}

func (s *Service) rejectDocument(ctx context.Context, actor requestcontext.MarketActor, receipt *Receipt) {
	for _, e := range receipt.Errors {
		s.metrics.IncDocumentError(string(e.Code))
	}
	s.metrics.IncDocument(receipt.DocumentKind, StatusRejected)
	s.logger.WarnContext(ctx, "market document rejected",
		"sender", actor.GLN, "message_id", receipt.MessageID, "kind", receipt.DocumentKind, "errors", len(receipt.Errors))
}

// process registers the message ID and answers every transaction in document
// order, inside the unit of work carried by ctx.
func (s *Service) process(ctx context.Context, doc *cim.Document, receipt *Receipt) error {
	header := doc.Header
	if s.registry != nil {
		ok, err := s.registry.TryRegisterMessageID(ctx, header.SenderID, header.MessageID)
		if err != nil {
			return fmt.Errorf("register message id: %w", err)
		}
		if !ok {
			receipt.Errors = []cim.ValidationError{{
				Code:    cim.CodeDuplicateMessageID,
				Message: "message id " + header.MessageID + " has already been received from " + header.SenderID,
			}}
			return nil
		}
	}
	for _, t := range doc.Transactions {
		outcome, err := s.processTransaction(ctx, header, t)
		if err != nil {
			return fmt.Errorf("process transaction %s: %w", t.TransactionID, err)
		}
		receipt.Transactions = append(receipt.Transactions, outcome)
	}
	return nil
}

// processTransaction runs one transaction through its business process and
// queues the answer. Records that failed validation or reuse a transaction ID
// are rejected without reaching a process.
func (s *Service) processTransaction(ctx context.Context, header cim.Header, t cim.Transaction) (TransactionOutcome, error) {
	errs := t.Errors
	if t.Valid() && s.registry != nil {
		ok, err := s.registry.TryRegisterTransactionID(ctx, header.SenderID, t.TransactionID)
		if err != nil {
			return TransactionOutcome{}, fmt.Errorf("register transaction id: %w", err)
		}
		if !ok {
			errs = []cim.ValidationError{{
				Code:          cim.CodeDuplicateTransactionID,
				TransactionID: t.TransactionID,
				Message:       "transaction id " + t.TransactionID + " has already been received from " + header.SenderID,
			}}
		}
	}
	if len(errs) > 0 {
		return s.respond(ctx, header, t.Record, false, reasonsForValidation(errs))
	}
	result, err := s.dispatch(ctx, header, t.Record)
	if err != nil {
		return TransactionOutcome{}, err
	}
	return s.respond(ctx, header, t.Record, result.Success, reasonsForResult(result))
}

func (s *Service) dispatch(ctx context.Context, header cim.Header, record cim.MarketActivityRecord) (processing.Result, error) {
	txID := id.TransactionID(record.TransactionID())
	switch r := record.(type) {
	case *cim.ChangeOfSupplierRecord:
		if r.EnergySupplierGln != header.SenderID {
			return supplierMismatch(txID, r.EnergySupplierGln), nil
		}
		switch header.ProcessType {
		case cim.ProcessTypeMoveIn:
			return s.moveIn.RequestMoveIn(ctx, moveInRequest(r))
		case cim.ProcessTypeChangeOfSupplier:
			return s.changeOfSupplier.RequestChangeOfSupplier(ctx, cosservice.Request{
				TransactionID:     r.MRID,
				GsrnNumber:        r.GsrnNumber,
				EnergySupplierGln: r.EnergySupplierGln,
				SupplyStartDate:   r.StartDate,
			})
		}
	case *cim.CancelChangeOfSupplierRecord:
		if r.EnergySupplierGln != header.SenderID {
			return supplierMismatch(txID, r.EnergySupplierGln), nil
		}
		return s.changeOfSupplier.CancelChangeOfSupplier(ctx, cosservice.CancelRequest{
			TransactionID:         r.MRID,
			OriginalTransactionID: r.OriginalTransactionID,
			GsrnNumber:            r.GsrnNumber,
			EnergySupplierGln:     r.EnergySupplierGln,
		})
	}
	return processing.Invalid(txID, processing.CodeUnsupportedBusinessProcess,
		"process type "+header.ProcessType+" is not supported for "+header.Kind), nil
}

func (s *Service) respond(ctx context.Context, header cim.Header, record cim.MarketActivityRecord, accepted bool, reasons []cim.Reason) (TransactionOutcome, error) {
	resp := cim.Response{
		ProcessType:  header.ProcessType,
		Receiver:     header.SenderID,
		GsrnNumber:   gsrnOf(record),
		Cancellation: header.Kind == cim.KindRequestCancelChangeOfSupplier,
	}
	if record != nil {
		resp.OriginalTransactionID = record.TransactionID()
	}
	if accepted {
		if err := s.responder.Confirm(ctx, resp); err != nil {
			return TransactionOutcome{}, err
		}
		return TransactionOutcome{TransactionID: resp.OriginalTransactionID, Status: StatusAccepted}, nil
	}
	resp.Reasons = reasons
	if err := s.responder.Reject(ctx, resp); err != nil {
		return TransactionOutcome{}, err
	}
	return TransactionOutcome{TransactionID: resp.OriginalTransactionID, Status: StatusRejected, Reasons: reasons}, nil
}

func (s *Service) retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.conflictRetries; attempt++ {
		if err = fn(); err == nil || !dErrors.HasCode(err, dErrors.CodeConflict) {
			return err
		}
		s.logger.WarnContext(ctx, "document hit a concurrent update, retrying", "attempt", attempt+1)
	}
	return err
}

func supplierMismatch(txID id.TransactionID, gln string) processing.Result {
	return processing.Invalid(txID, processing.CodeSupplierDoesNotMatchSender,
		"energy supplier "+gln+" does not match the sender of the document")
}

func moveInRequest(r *cim.ChangeOfSupplierRecord) moveinservice.Request {
	req := moveinservice.Request{
		TransactionID:     r.MRID,
		GsrnNumber:        r.GsrnNumber,
		EnergySupplierGln: r.EnergySupplierGln,
		ConsumerName:      r.ConsumerName,
		ConsumerIdentity:  r.ConsumerID,
		MoveInDate:        r.StartDate,
	}
	switch r.ConsumerIDScheme {
	case cim.CodingSchemeCPR:
		req.ConsumerIdentityKind = id.IdentityCPR
	case cim.CodingSchemeCVR:
		req.ConsumerIdentityKind = id.IdentityCVR
	}
	return req
}

func gsrnOf(record cim.MarketActivityRecord) string {
	switch r := record.(type) {
	case *cim.ChangeOfSupplierRecord:
		return r.GsrnNumber
	case *cim.CancelChangeOfSupplierRecord:
		return r.GsrnNumber
	}
	return ""
}
