package cim

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbound is a rendered document ready for the outbox.
type Outbound struct {
	MessageID string
	Kind      string
	Receiver  string
	Body      []byte
}

// Reason explains a rejected transaction.
type Reason struct {
	Code string `json:"code"`
	Text string `json:"text,omitempty"`
}

// Response answers one inbound transaction.
type Response struct {
	ProcessType           string
	Receiver              string
	OriginalTransactionID string
	GsrnNumber            string
	// Cancellation selects the cancel variants of confirm and reject.
	Cancellation bool
	Reasons      []Reason
}

// Notification tells a supplier that it will lose the accounting point.
type Notification struct {
	ProcessType           string
	Receiver              string
	OriginalTransactionID string
	GsrnNumber            string
	EffectiveDate         time.Time
}

// Characteristics describes an accounting point to its new supplier.
type Characteristics struct {
	ProcessType           string
	Receiver              string
	OriginalTransactionID string
	GsrnNumber            string
	// MeteringPointType is E17 for consumption and E18 for production.
	MeteringPointType string
	ConnectionState   string
	EnergySupplierGln string
	SupplyStart       time.Time
}

// Writer renders outbound documents sent by DataHub.
type Writer struct {
	senderGln string
	now       func() time.Time
	newID     func() string
}

type WriterOption func(*Writer)

func WithWriterClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithIDGenerator overrides how document and record mRIDs are generated.
func WithIDGenerator(newID func() string) WriterOption {
	return func(w *Writer) { w.newID = newID }
}

func NewWriter(senderGln string, opts ...WriterOption) *Writer {
	w := &Writer{
		senderGln: senderGln,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type codedValue struct {
	CodingScheme string `xml:"codingScheme,attr"`
	Value        string `xml:",chardata"`
}

type marketDocument[R any] struct {
	XMLName            xml.Name
	Xmlns              string     `xml:"xmlns:cim,attr"`
	MRID               string     `xml:"cim:mRID"`
	Type               string     `xml:"cim:type"`
	ProcessType        string     `xml:"cim:process.processType"`
	BusinessSectorType string     `xml:"cim:businessSector.type"`
	Sender             codedValue `xml:"cim:sender_MarketParticipant.mRID"`
	SenderRole         string     `xml:"cim:sender_MarketParticipant.marketRole.type"`
	Receiver           codedValue `xml:"cim:receiver_MarketParticipant.mRID"`
	ReceiverRole       string     `xml:"cim:receiver_MarketParticipant.marketRole.type"`
	CreatedDateTime    string     `xml:"cim:createdDateTime"`
	ReasonCode         string     `xml:"cim:reason.code,omitempty"`
	Records            []R        `xml:"cim:MktActivityRecord"`
}

type reasonElement struct {
	Code string `xml:"cim:code"`
	Text string `xml:"cim:text,omitempty"`
}

type responseRecord struct {
	MRID                  string          `xml:"cim:mRID"`
	OriginalTransactionID string          `xml:"cim:originalTransactionIDReference_MktActivityRecord.mRID"`
	MarketEvaluationPoint codedValue      `xml:"cim:marketEvaluationPoint.mRID"`
	Reasons               []reasonElement `xml:"cim:Reason,omitempty"`
}

type notificationRecord struct {
	MRID                  string     `xml:"cim:mRID"`
	OriginalTransactionID string     `xml:"cim:originalTransactionIDReference_MktActivityRecord.mRID"`
	MarketEvaluationPoint codedValue `xml:"cim:marketEvaluationPoint.mRID"`
	ValidityStart         string     `xml:"cim:validityStart_DateAndOrTime.dateTime"`
}

type characteristicsRecord struct {
	MRID                  string               `xml:"cim:mRID"`
	OriginalTransactionID string               `xml:"cim:originalTransactionIDReference_MktActivityRecord.mRID"`
	ValidityStart         string               `xml:"cim:validityStart_DateAndOrTime.dateTime"`
	MarketEvaluationPoint characteristicsPoint `xml:"cim:MarketEvaluationPoint"`
}

type characteristicsPoint struct {
	MRID            codedValue `xml:"cim:mRID"`
	Type            string     `xml:"cim:type"`
	ConnectionState string     `xml:"cim:connectionState"`
	EnergySupplier  codedValue `xml:"cim:energySupplier_MarketParticipant.mRID"`
	SupplyStart     string     `xml:"cim:supplyStart_DateAndOrTime.dateTime"`
}

// Confirm renders the confirmation of an accepted transaction.
func (w *Writer) Confirm(resp Response) (Outbound, error) {
	kind := KindConfirmRequestChangeOfSupplier
	if resp.Cancellation {
		kind = KindConfirmCancelChangeOfSupplier
	}
	return render(w, kind, DocumentTypeResponse, resp.ProcessType, resp.Receiver, ReasonAccepted, []responseRecord{{
		MRID:                  w.newID(),
		OriginalTransactionID: resp.OriginalTransactionID,
		MarketEvaluationPoint: codedValue{CodingScheme: CodingSchemeGS1, Value: resp.GsrnNumber},
	}})
}

// Reject renders the rejection of a transaction with one Reason per cause.
func (w *Writer) Reject(resp Response) (Outbound, error) {
	if len(resp.Reasons) == 0 {
		return Outbound{}, fmt.Errorf("reject of %s needs at least one reason", resp.OriginalTransactionID)
	}
	kind := KindRejectRequestChangeOfSupplier
	if resp.Cancellation {
		kind = KindRejectCancelChangeOfSupplier
	}
	reasons := make([]reasonElement, 0, len(resp.Reasons))
	for _, r := range resp.Reasons {
		reasons = append(reasons, reasonElement(r))
	}
	return render(w, kind, DocumentTypeResponse, resp.ProcessType, resp.Receiver, ReasonRejected, []responseRecord{{
		MRID:                  w.newID(),
		OriginalTransactionID: resp.OriginalTransactionID,
		MarketEvaluationPoint: codedValue{CodingScheme: CodingSchemeGS1, Value: resp.GsrnNumber},
		Reasons:               reasons,
	}})
}

// GenericNotification renders the notice to the current supplier.
func (w *Writer) GenericNotification(n Notification) (Outbound, error) {
	return render(w, KindGenericNotification, DocumentTypeNotification, n.ProcessType, n.Receiver, "", []notificationRecord{{
		MRID:                  w.newID(),
		OriginalTransactionID: n.OriginalTransactionID,
		MarketEvaluationPoint: codedValue{CodingScheme: CodingSchemeGS1, Value: n.GsrnNumber},
		ValidityStart:         n.EffectiveDate.UTC().Format(TimeLayout),
	}})
}

// AccountingPointCharacteristics renders the master data sent to a new
// supplier.
func (w *Writer) AccountingPointCharacteristics(c Characteristics) (Outbound, error) {
	return render(w, KindAccountingPointCharacteristics, DocumentTypeMasterData, c.ProcessType, c.Receiver, "", []characteristicsRecord{{
		MRID:                  w.newID(),
		OriginalTransactionID: c.OriginalTransactionID,
		ValidityStart:         c.SupplyStart.UTC().Format(TimeLayout),
		MarketEvaluationPoint: characteristicsPoint{
			MRID:            codedValue{CodingScheme: CodingSchemeGS1, Value: c.GsrnNumber},
			Type:            c.MeteringPointType,
			ConnectionState: c.ConnectionState,
			EnergySupplier:  codedValue{CodingScheme: CodingSchemeGS1, Value: c.EnergySupplierGln},
			SupplyStart:     c.SupplyStart.UTC().Format(TimeLayout),
		},
	}})
}

func render[R any](w *Writer, kind, documentType, processType, receiver, reasonCode string, records []R) (Outbound, error) {
	messageID := w.newID()
	doc := marketDocument[R]{
		XMLName:            xml.Name{Local: "cim:" + kind},
		Xmlns:              Namespace(kind),
		MRID:               messageID,
		Type:               documentType,
		ProcessType:        processType,
		BusinessSectorType: BusinessSectorElectricity,
		Sender:             codedValue{CodingScheme: CodingSchemeGS1, Value: w.senderGln},
		SenderRole:         RoleDataHub,
		Receiver:           codedValue{CodingScheme: CodingSchemeGS1, Value: receiver},
		ReceiverRole:       RoleEnergySupplier,
		CreatedDateTime:    w.now().UTC().Format(TimeLayout),
		ReasonCode:         reasonCode,
		Records:            records,
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return Outbound{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Outbound{MessageID: messageID, Kind: kind, Receiver: receiver, Body: buf.Bytes()}, nil
}
