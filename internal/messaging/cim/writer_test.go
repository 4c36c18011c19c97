package cim_test

import (
	"encoding/xml"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketroles/internal/messaging/cim"
)

func testWriter() *cim.Writer {
	n := 0
	return cim.NewWriter("5790001330583",
		cim.WithWriterClock(func() time.Time { return time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC) }),
		cim.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
}

// rootOf returns the root element name and namespace of a rendered document.
func rootOf(t *testing.T, body []byte) xml.Name {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := dec.Token()
		require.NoError(t, err)
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name
		}
	}
}

func TestWriterConfirm(t *testing.T) {
	out, err := testWriter().Confirm(cim.Response{
		ProcessType:           cim.ProcessTypeMoveIn,
		Receiver:              "5799999933318",
		OriginalTransactionID: "tx-1",
		GsrnNumber:            "571313100000000010",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", out.MessageID)
	assert.Equal(t, cim.KindConfirmRequestChangeOfSupplier, out.Kind)
	assert.Equal(t, "5799999933318", out.Receiver)

	name := rootOf(t, out.Body)
	assert.Equal(t, cim.KindConfirmRequestChangeOfSupplier, name.Local)
	assert.Equal(t, cim.Namespace(cim.KindConfirmRequestChangeOfSupplier), name.Space)

	body := string(out.Body)
	assert.True(t, strings.HasPrefix(body, xml.Header))
	assert.Contains(t, body, "<cim:reason.code>A01</cim:reason.code>")
	assert.Contains(t, body, "<cim:process.processType>E65</cim:process.processType>")
	assert.Contains(t, body, `<cim:sender_MarketParticipant.mRID codingScheme="A10">5790001330583</cim:sender_MarketParticipant.mRID>`)
	assert.Contains(t, body, "<cim:receiver_MarketParticipant.marketRole.type>DDQ</cim:receiver_MarketParticipant.marketRole.type>")
	assert.Contains(t, body, "<cim:originalTransactionIDReference_MktActivityRecord.mRID>tx-1</cim:originalTransactionIDReference_MktActivityRecord.mRID>")
	assert.Contains(t, body, "<cim:createdDateTime>2026-03-10T09:30:00Z</cim:createdDateTime>")
	assert.NotContains(t, body, "cim:Reason>")
}

func TestWriterReject(t *testing.T) {
	w := testWriter()
	out, err := w.Reject(cim.Response{
		ProcessType:           cim.ProcessTypeChangeOfSupplier,
		Receiver:              "5799999933318",
		OriginalTransactionID: "tx-2",
		GsrnNumber:            "571313100000000010",
		Cancellation:          true,
		Reasons: []cim.Reason{
			{Code: "E17", Text: "EffectiveDateInThePast"},
			{Code: "E22", Text: "ChangeOfSupplierRegisteredOnSameDate"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, cim.KindRejectCancelChangeOfSupplier, rootOf(t, out.Body).Local)

	body := string(out.Body)
	assert.Contains(t, body, "<cim:reason.code>A02</cim:reason.code>")
	assert.Equal(t, 2, strings.Count(body, "<cim:Reason>"))
	assert.Contains(t, body, "<cim:code>E17</cim:code>")

	_, err = w.Reject(cim.Response{OriginalTransactionID: "tx-3"})
	assert.Error(t, err, "a reject needs a reason")
}

func TestWriterGenericNotification(t *testing.T) {
	out, err := testWriter().GenericNotification(cim.Notification{
		ProcessType:           cim.ProcessTypeChangeOfSupplier,
		Receiver:              "5799999933325",
		OriginalTransactionID: "tx-4",
		GsrnNumber:            "571313100000000010",
		EffectiveDate:         time.Date(2026, 3, 23, 23, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	body := string(out.Body)
	assert.Equal(t, cim.KindGenericNotification, rootOf(t, out.Body).Local)
	assert.Contains(t, body, "<cim:type>E44</cim:type>")
	assert.Contains(t, body, "<cim:validityStart_DateAndOrTime.dateTime>2026-03-23T23:00:00Z</cim:validityStart_DateAndOrTime.dateTime>")
	assert.NotContains(t, body, "reason.code")
}

func TestWriterAccountingPointCharacteristics(t *testing.T) {
	out, err := testWriter().AccountingPointCharacteristics(cim.Characteristics{
		ProcessType:           cim.ProcessTypeMoveIn,
		Receiver:              "5799999933318",
		OriginalTransactionID: "tx-5",
		GsrnNumber:            "571313100000000010",
		MeteringPointType:     "E17",
		ConnectionState:       "E22",
		EnergySupplierGln:     "5799999933318",
		SupplyStart:           time.Date(2026, 3, 12, 23, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	body := string(out.Body)
	assert.Equal(t, cim.KindAccountingPointCharacteristics, rootOf(t, out.Body).Local)
	assert.Contains(t, body, "<cim:MarketEvaluationPoint>")
	assert.Contains(t, body, "<cim:connectionState>E22</cim:connectionState>")
	assert.Contains(t, body, "<cim:supplyStart_DateAndOrTime.dateTime>2026-03-12T23:00:00Z</cim:supplyStart_DateAndOrTime.dateTime>")
}
