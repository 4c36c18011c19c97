// Package cim reads and writes the CIM XML market documents exchanged with
// energy suppliers. Inbound documents are read as a stream: the header first,
// then one market activity record at a time, validating as it goes.
package cim

import (
	"fmt"
	"time"
)

// Document kinds accepted inbound.
const (
	KindRequestChangeOfSupplier       = "RequestChangeOfSupplier_MarketDocument"
	KindRequestCancelChangeOfSupplier = "RequestCancelChangeOfSupplier_MarketDocument"
)

// Document kinds written outbound.
const (
	KindConfirmRequestChangeOfSupplier = "ConfirmRequestChangeOfSupplier_MarketDocument"
	KindRejectRequestChangeOfSupplier  = "RejectRequestChangeOfSupplier_MarketDocument"
	KindConfirmCancelChangeOfSupplier  = "ConfirmRequestCancelChangeOfSupplier_MarketDocument"
	KindRejectCancelChangeOfSupplier   = "RejectRequestCancelChangeOfSupplier_MarketDocument"
	KindGenericNotification            = "GenericNotification_MarketDocument"
	KindAccountingPointCharacteristics = "AccountingPointCharacteristics_MarketDocument"
)

var namespaces = map[string]string{
	KindRequestChangeOfSupplier:        "urn:ediel.org:structure:requestchangeofsupplier:0:1",
	KindRequestCancelChangeOfSupplier:  "urn:ediel.org:structure:requestcancelchangeofsupplier:0:1",
	KindConfirmRequestChangeOfSupplier: "urn:ediel.org:structure:confirmrequestchangeofsupplier:0:1",
	KindRejectRequestChangeOfSupplier:  "urn:ediel.org:structure:rejectrequestchangeofsupplier:0:1",
	KindConfirmCancelChangeOfSupplier:  "urn:ediel.org:structure:confirmrequestcancelchangeofsupplier:0:1",
	KindRejectCancelChangeOfSupplier:   "urn:ediel.org:structure:rejectrequestcancelchangeofsupplier:0:1",
	KindGenericNotification:            "urn:ediel.org:structure:genericnotification:0:1",
	KindAccountingPointCharacteristics: "urn:ediel.org:structure:accountingpointcharacteristics:0:1",
}

// Namespace returns the target namespace of a document kind.
func Namespace(kind string) string {
	return namespaces[kind]
}

// Process, document and party codes.
const (
	ProcessTypeMoveIn           = "E65"
	ProcessTypeChangeOfSupplier = "E03"

	DocumentTypeRequest      = "392"
	DocumentTypeResponse     = "414"
	DocumentTypeNotification = "E44"
	DocumentTypeMasterData   = "E07"

	BusinessSectorElectricity = "23"

	RoleEnergySupplier = "DDQ"
	RoleDataHub        = "DDZ"

	CodingSchemeGS1 = "A10"
	CodingSchemeCPR = "ARR"
	CodingSchemeCVR = "VA"

	ReasonAccepted = "A01"
	ReasonRejected = "A02"
)

// TimeLayout is the ISO-8601 UTC layout used for every date and time element.
const TimeLayout = "2006-01-02T15:04:05Z"

// Header is the document envelope preceding the market activity records.
type Header struct {
	Kind               string
	MessageID          string
	DocumentType       string
	ProcessType        string
	BusinessSectorType string
	SenderID           string
	SenderRole         string
	ReceiverID         string
	ReceiverRole       string
	CreatedAt          time.Time
}

// MarketActivityRecord is one transaction of a document.
type MarketActivityRecord interface {
	TransactionID() string
}

// ChangeOfSupplierRecord requests a move-in (E65) or a change of supplier
// (E03) depending on the header process type.
type ChangeOfSupplierRecord struct {
	MRID                 string
	GsrnNumber           string
	EnergySupplierGln    string
	BalanceResponsibleID string
	ConsumerIDScheme     string
	ConsumerID           string
	ConsumerName         string
	StartDate            time.Time
}

// CancelChangeOfSupplierRecord withdraws the change of supplier requested by
// OriginalTransactionID.
type CancelChangeOfSupplierRecord struct {
	MRID                  string
	OriginalTransactionID string
	GsrnNumber            string
	EnergySupplierGln     string
}

func (r *ChangeOfSupplierRecord) TransactionID() string       { return r.MRID }
func (r *CancelChangeOfSupplierRecord) TransactionID() string { return r.MRID }

// ValidationErrorCode classifies a schema or uniqueness violation.
type ValidationErrorCode string

const (
	CodeMalformedXML              ValidationErrorCode = "MalformedXml"
	CodeUnsupportedDocument       ValidationErrorCode = "UnsupportedDocument"
	CodeInvalidNamespace          ValidationErrorCode = "InvalidNamespace"
	CodeMissingElement            ValidationErrorCode = "MissingElement"
	CodeUnexpectedElement         ValidationErrorCode = "UnexpectedElement"
	CodeDuplicateElement          ValidationErrorCode = "DuplicateElement"
	CodeInvalidValue              ValidationErrorCode = "InvalidValue"
	CodeInvalidCodingScheme       ValidationErrorCode = "InvalidCodingScheme"
	CodeInvalidDateTime           ValidationErrorCode = "InvalidDateTime"
	CodeInvalidProcessType        ValidationErrorCode = "InvalidProcessType"
	CodeInvalidDocumentType       ValidationErrorCode = "InvalidDocumentType"
	CodeInvalidBusinessSectorType ValidationErrorCode = "InvalidBusinessSectorType"
	CodeInvalidRole               ValidationErrorCode = "InvalidRole"
	CodeDuplicateMessageID        ValidationErrorCode = "DuplicateMessageId"
	CodeDuplicateTransactionID    ValidationErrorCode = "DuplicateTransactionId"
)

// ValidationError points at the offending element. TransactionID is empty for
// header errors.
type ValidationError struct {
	Code          ValidationErrorCode `json:"code"`
	Message       string              `json:"message"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Line          int                 `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

