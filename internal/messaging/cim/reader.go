package cim

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	id "marketroles/pkg/domain"
)

const recordElement = "MktActivityRecord"

var knownRoles = []string{RoleEnergySupplier, RoleDataHub, "DDM", "MDR", "STS", "EZ"}

// fieldSpec describes one simple element of a section.
type fieldSpec struct {
	required bool
	// schemes lists the accepted codingScheme attribute values; empty means
	// the element carries no coding scheme.
	schemes []string
}

var headerFields = map[string]fieldSpec{
	"mRID":                                       {required: true},
	"type":                                       {required: true},
	"process.processType":                        {required: true},
	"businessSector.type":                        {required: true},
	"sender_MarketParticipant.mRID":              {required: true, schemes: []string{CodingSchemeGS1}},
	"sender_MarketParticipant.marketRole.type":   {required: true},
	"receiver_MarketParticipant.mRID":            {required: true, schemes: []string{CodingSchemeGS1}},
	"receiver_MarketParticipant.marketRole.type": {required: true},
	"createdDateTime":                            {required: true},
}

const (
	elMRID               = "mRID"
	elOriginalMRID       = "originalTransactionIDReference_MktActivityRecord.mRID"
	elGsrn               = "marketEvaluationPoint.mRID"
	elEnergySupplier     = "marketEvaluationPoint.energySupplier_MarketParticipant.mRID"
	elBalanceResponsible = "marketEvaluationPoint.balanceResponsibleParty_MarketParticipant.mRID"
	elCustomerID         = "marketEvaluationPoint.customerMarketParticipant.mRID"
	elCustomerName       = "marketEvaluationPoint.customerMarketParticipant.name"
	elStartDate          = "start_DateAndOrTime.dateTime"
)

func changeOfSupplierFields(processType string) map[string]fieldSpec {
	moveIn := processType == ProcessTypeMoveIn
	return map[string]fieldSpec{
		elMRID:               {required: true},
		elGsrn:               {required: true, schemes: []string{CodingSchemeGS1}},
		elEnergySupplier:     {required: true, schemes: []string{CodingSchemeGS1}},
		elBalanceResponsible: {schemes: []string{CodingSchemeGS1}},
		elCustomerID:         {required: moveIn, schemes: []string{CodingSchemeCPR, CodingSchemeCVR}},
		elCustomerName:       {required: moveIn},
		elStartDate:          {required: true},
	}
}

var cancelFields = map[string]fieldSpec{
	elMRID:           {required: true},
	elOriginalMRID:   {required: true},
	elGsrn:           {required: true, schemes: []string{CodingSchemeGS1}},
	elEnergySupplier: {required: true, schemes: []string{CodingSchemeGS1}},
}

// element is a decoded simple element.
type element struct {
	Value        string `xml:",chardata"`
	CodingScheme string `xml:"codingScheme,attr"`
	line         int
}

// Reader streams a CIM document. Call ReadHeader once, then Next until it
// returns io.EOF.
type Reader struct {
	dec        *xml.Decoder
	header     Header
	namespace  string
	headerRead bool
	pending    *xml.StartElement
	done       bool
	seen       map[string]struct{}
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r), seen: make(map[string]struct{})}
}

// ReadHeader consumes the root element and the header elements. The returned
// validation errors describe the header; a non-nil error means the stream
// itself could not be read.
func (r *Reader) ReadHeader(ctx context.Context) (Header, []ValidationError, error) {
	if r.headerRead {
		return r.header, nil, errors.New("header already read")
	}
	r.headerRead = true

	root, err := r.nextStart(ctx)
	if err != nil {
		return Header{}, nil, err
	}
	line := r.line()
	kind := root.Name.Local
	if kind != KindRequestChangeOfSupplier && kind != KindRequestCancelChangeOfSupplier {
		r.done = true
		return Header{}, []ValidationError{{Code: CodeUnsupportedDocument, Message: "unsupported document " + kind, Line: line}}, nil
	}
	r.header.Kind = kind
	r.namespace = Namespace(kind)
	if root.Name.Space != r.namespace {
		r.done = true
		return r.header, []ValidationError{{
			Code: CodeInvalidNamespace, Line: line,
			Message: fmt.Sprintf("expected namespace %s, got %q", r.namespace, root.Name.Space),
		}}, nil
	}

	stop, values, errs, err := r.readSection(ctx, recordElement, headerFields)
	if err != nil {
		return r.header, errs, err
	}
	r.pending = stop
	if stop == nil {
		r.done = true
	}
	errs = append(errs, r.buildHeader(values)...)
	return r.header, errs, nil
}

// Next returns the next market activity record with its validation errors.
// A record with errors is still returned so callers can reject it by
// transaction ID. io.EOF marks the end of the document.
func (r *Reader) Next(ctx context.Context) (MarketActivityRecord, []ValidationError, error) {
	if !r.headerRead {
		return nil, nil, errors.New("header not read")
	}
	if r.done {
		return nil, nil, io.EOF
	}
	start := r.pending
	r.pending = nil
	var errs []ValidationError
	if start == nil {
		var err error
		start, errs, err = r.nextRecordStart(ctx)
		if err != nil {
			return nil, errs, err
		}
		if start == nil {
			r.done = true
			if len(errs) > 0 {
				return nil, errs, nil
			}
			return nil, nil, io.EOF
		}
	}
	record, recErrs, err := r.readRecord(ctx)
	return record, append(errs, recErrs...), err
}

// nextRecordStart advances to the next record element of the root, reporting
// anything else found between records.
func (r *Reader) nextRecordStart(ctx context.Context) (*xml.StartElement, []ValidationError, error) {
	var errs []ValidationError
	for {
		if err := ctx.Err(); err != nil {
			return nil, errs, err
		}
		tok, err := r.dec.Token()
		if err != nil {
			return nil, errs, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == recordElement && t.Name.Space == r.namespace {
				start := t.Copy()
				return &start, errs, nil
			}
			errs = append(errs, ValidationError{
				Code: CodeUnexpectedElement, Line: r.line(),
				Message: "unexpected element " + t.Name.Local + " after records",
			})
			if err := r.dec.Skip(); err != nil {
				return nil, errs, err
			}
		case xml.EndElement:
			return nil, errs, nil
		}
	}
}

func (r *Reader) readRecord(ctx context.Context) (MarketActivityRecord, []ValidationError, error) {
	fields := cancelFields
	if r.header.Kind == KindRequestChangeOfSupplier {
		fields = changeOfSupplierFields(r.header.ProcessType)
	}
	_, values, errs, err := r.readSection(ctx, "", fields)
	if err != nil {
		return nil, errs, err
	}
	txID := values[elMRID].Value
	for i := range errs {
		errs[i].TransactionID = txID
	}
	errs = append(errs, checkFields(values, fields, txID)...)
	checkIdentifier(&errs, values, elMRID, txID, parseTransactionID)
	if txID != "" {
		if _, dup := r.seen[txID]; dup {
			errs = append(errs, ValidationError{
				Code: CodeDuplicateTransactionID, TransactionID: txID, Line: values[elMRID].line,
				Message: "transaction id " + txID + " occurs more than once in the message",
			})
		}
		r.seen[txID] = struct{}{}
	}

	if r.header.Kind == KindRequestCancelChangeOfSupplier {
		checkIdentifier(&errs, values, elOriginalMRID, txID, parseTransactionID)
		return &CancelChangeOfSupplierRecord{
			MRID:                  txID,
			OriginalTransactionID: values[elOriginalMRID].Value,
			GsrnNumber:            values[elGsrn].Value,
			EnergySupplierGln:     values[elEnergySupplier].Value,
		}, errs, nil
	}

	record := &ChangeOfSupplierRecord{
		MRID:                 txID,
		GsrnNumber:           values[elGsrn].Value,
		EnergySupplierGln:    values[elEnergySupplier].Value,
		BalanceResponsibleID: values[elBalanceResponsible].Value,
		ConsumerIDScheme:     values[elCustomerID].CodingScheme,
		ConsumerID:           values[elCustomerID].Value,
		ConsumerName:         values[elCustomerName].Value,
	}
	if el, ok := values[elStartDate]; ok && el.Value != "" {
		t, err := parseTime(el, txID)
		if err != nil {
			errs = append(errs, *err)
		}
		record.StartDate = t
	}
	return record, errs, nil
}

func (r *Reader) buildHeader(values map[string]element) []ValidationError {
	errs := checkFields(values, headerFields, "")
	h := &r.header
	h.MessageID = values["mRID"].Value
	h.DocumentType = values["type"].Value
	h.ProcessType = values["process.processType"].Value
	h.BusinessSectorType = values["businessSector.type"].Value
	h.SenderID = values["sender_MarketParticipant.mRID"].Value
	h.SenderRole = values["sender_MarketParticipant.marketRole.type"].Value
	h.ReceiverID = values["receiver_MarketParticipant.mRID"].Value
	h.ReceiverRole = values["receiver_MarketParticipant.marketRole.type"].Value

	invalid := func(code ValidationErrorCode, name, msg string) {
		if el, ok := values[name]; ok && el.Value != "" {
			errs = append(errs, ValidationError{Code: code, Message: msg, Line: el.line})
		}
	}
	checkIdentifier(&errs, values, "mRID", "", func(v string) error {
		_, err := id.ParseMessageID(v)
		return err
	})
	if h.DocumentType != DocumentTypeRequest {
		invalid(CodeInvalidDocumentType, "type", "document type must be "+DocumentTypeRequest+", got "+h.DocumentType)
	}
	allowedProcesses := []string{ProcessTypeMoveIn, ProcessTypeChangeOfSupplier}
	if h.Kind == KindRequestCancelChangeOfSupplier {
		allowedProcesses = []string{ProcessTypeChangeOfSupplier}
	}
	if !slices.Contains(allowedProcesses, h.ProcessType) {
		invalid(CodeInvalidProcessType, "process.processType", "process type "+h.ProcessType+" is not supported for "+h.Kind)
	}
	if h.BusinessSectorType != BusinessSectorElectricity {
		invalid(CodeInvalidBusinessSectorType, "businessSector.type", "business sector type must be "+BusinessSectorElectricity)
	}
	if !slices.Contains(knownRoles, h.SenderRole) {
		invalid(CodeInvalidRole, "sender_MarketParticipant.marketRole.type", "unknown sender role "+h.SenderRole)
	}
	if !slices.Contains(knownRoles, h.ReceiverRole) {
		invalid(CodeInvalidRole, "receiver_MarketParticipant.marketRole.type", "unknown receiver role "+h.ReceiverRole)
	}
	if el, ok := values["createdDateTime"]; ok && el.Value != "" {
		t, err := parseTime(el, "")
		if err != nil {
			errs = append(errs, *err)
		}
		h.CreatedAt = t
	}
	return errs
}

// readSection consumes the simple child elements of the current element until
// its end tag, or until a child named stop starts, which is then returned.
func (r *Reader) readSection(ctx context.Context, stop string, fields map[string]fieldSpec) (*xml.StartElement, map[string]element, []ValidationError, error) {
	values := make(map[string]element)
	var errs []ValidationError
	for {
		if err := ctx.Err(); err != nil {
			return nil, values, errs, err
		}
		tok, err := r.dec.Token()
		if err != nil {
			return nil, values, errs, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line := r.line()
			name := t.Name.Local
			if name == stop && t.Name.Space == r.namespace {
				start := t.Copy()
				return &start, values, errs, nil
			}
			if t.Name.Space != r.namespace {
				errs = append(errs, ValidationError{Code: CodeInvalidNamespace, Line: line,
					Message: "element " + name + " is not in namespace " + r.namespace})
				if err := r.dec.Skip(); err != nil {
					return nil, values, errs, err
				}
				continue
			}
			if _, known := fields[name]; !known {
				errs = append(errs, ValidationError{Code: CodeUnexpectedElement, Line: line,
					Message: "unexpected element " + name})
				if err := r.dec.Skip(); err != nil {
					return nil, values, errs, err
				}
				continue
			}
			var el element
			if err := r.dec.DecodeElement(&el, &t); err != nil {
				return nil, values, errs, err
			}
			el.Value = strings.TrimSpace(el.Value)
			el.line = line
			if _, dup := values[name]; dup {
				errs = append(errs, ValidationError{Code: CodeDuplicateElement, Line: line,
					Message: "element " + name + " occurs more than once"})
				continue
			}
			values[name] = el
		case xml.EndElement:
			return nil, values, errs, nil
		}
	}
}

// nextStart returns the first start element of the stream.
func (r *Reader) nextStart(ctx context.Context) (xml.StartElement, error) {
	for {
		if err := ctx.Err(); err != nil {
			return xml.StartElement{}, err
		}
		tok, err := r.dec.Token()
		if err != nil {
			return xml.StartElement{}, unexpectedEOF(err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Copy(), nil
		}
	}
}

func (r *Reader) line() int {
	line, _ := r.dec.InputPos()
	return line
}

func checkFields(values map[string]element, fields map[string]fieldSpec, txID string) []ValidationError {
	var errs []ValidationError
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rule := fields[name]
		el, ok := values[name]
		if !ok || el.Value == "" {
			if rule.required {
				errs = append(errs, ValidationError{Code: CodeMissingElement, TransactionID: txID, Line: el.line,
					Message: "element " + name + " is required"})
			}
			continue
		}
		if len(rule.schemes) > 0 && !slices.Contains(rule.schemes, el.CodingScheme) {
			errs = append(errs, ValidationError{Code: CodeInvalidCodingScheme, TransactionID: txID, Line: el.line,
				Message: fmt.Sprintf("coding scheme %q of %s must be one of %s", el.CodingScheme, name, strings.Join(rule.schemes, ", "))})
		}
	}
	return errs
}

// checkIdentifier validates a present identifier with parse. Missing
// identifiers are reported by checkFields.
func checkIdentifier(errs *[]ValidationError, values map[string]element, name, txID string, parse func(string) error) {
	el, ok := values[name]
	if !ok || el.Value == "" {
		return
	}
	if err := parse(el.Value); err != nil {
		*errs = append(*errs, ValidationError{Code: CodeInvalidValue, TransactionID: txID, Line: el.line,
			Message: name + ": " + err.Error()})
	}
}

func parseTransactionID(v string) error {
	_, err := id.ParseTransactionID(v)
	return err
}

func parseTime(el element, txID string) (time.Time, *ValidationError) {
	t, err := time.Parse(TimeLayout, el.Value)
	if err != nil {
		return time.Time{}, &ValidationError{Code: CodeInvalidDateTime, TransactionID: txID, Line: el.line,
			Message: "date time " + el.Value + " must be in the format YYYY-MM-DDThh:mm:ssZ"}
	}
	return t.UTC(), nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
