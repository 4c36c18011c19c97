package cim_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketroles/internal/messaging/cim"
)

func codesOf(errs []cim.ValidationError) []cim.ValidationErrorCode {
	out := make([]cim.ValidationErrorCode, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestParseValidDocuments(t *testing.T) {
	for _, name := range []string{"move_in.xml", "change_of_supplier.xml", "cancel_change_of_supplier.xml"} {
		t.Run(name, func(t *testing.T) {
			doc, err := cim.Parse(context.Background(), strings.NewReader(fixture(t, name)))
			require.NoError(t, err)
			assert.True(t, doc.Valid(), "%v", doc.Errors)
			assert.NotEmpty(t, doc.Records())
			assert.Empty(t, doc.Rejected())
		})
	}
}

func TestParseDocumentErrors(t *testing.T) {
	moveIn := fixture(t, "move_in.xml")
	tests := []struct {
		name string
		doc  string
		want cim.ValidationErrorCode
	}{
		{"malformed xml", strings.Replace(moveIn, "</cim:MktActivityRecord>", "", 1), cim.CodeMalformedXML},
		{"unsupported root", strings.ReplaceAll(moveIn, "RequestChangeOfSupplier_MarketDocument", "NotifyBillingMasterData_MarketDocument"), cim.CodeUnsupportedDocument},
		{"wrong namespace", strings.Replace(moveIn, "requestchangeofsupplier:0:1", "requestchangeofsupplier:0:9", 1), cim.CodeInvalidNamespace},
		{"unknown process type", strings.Replace(moveIn, ">E65<", ">D07<", 1), cim.CodeInvalidProcessType},
		{"wrong document type", strings.Replace(moveIn, "<cim:type>392</cim:type>", "<cim:type>E44</cim:type>", 1), cim.CodeInvalidDocumentType},
		{"wrong business sector", strings.Replace(moveIn, ">23<", ">27<", 1), cim.CodeInvalidBusinessSectorType},
		{"unknown role", strings.Replace(moveIn, ">DDQ<", ">XYZ<", 1), cim.CodeInvalidRole},
		{"message id too long", strings.Replace(moveIn, "msg-move-in-1", strings.Repeat("m", 37), 1), cim.CodeInvalidValue},
		{"bad created time", strings.Replace(moveIn, "2026-03-10T09:00:00Z", "2026-03-10 09:00", 1), cim.CodeInvalidDateTime},
		{"missing sender", removeLine(moveIn, "sender_MarketParticipant.mRID"), cim.CodeMissingElement},
		{"sender coding scheme", strings.Replace(moveIn, `codingScheme="A10">5799999933318</cim:sender`, `codingScheme="VA">5799999933318</cim:sender`, 1), cim.CodeInvalidCodingScheme},
		{"unknown header element", strings.Replace(moveIn, "<cim:type>", "<cim:revisionNumber>1</cim:revisionNumber>\n  <cim:type>", 1), cim.CodeUnexpectedElement},
		{"duplicate header element", strings.Replace(moveIn, "<cim:type>392</cim:type>", "<cim:type>392</cim:type><cim:type>392</cim:type>", 1), cim.CodeDuplicateElement},
		{"no records", moveIn[:strings.Index(moveIn, "  <cim:MktActivityRecord>")] + "</cim:RequestChangeOfSupplier_MarketDocument>", cim.CodeMissingElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := cim.Parse(context.Background(), strings.NewReader(tt.doc))
			require.NoError(t, err)
			assert.False(t, doc.Valid())
			assert.Contains(t, codesOf(doc.Errors), tt.want)
			assert.Empty(t, doc.Transactions, "nothing is processed from an invalid document")
		})
	}
}

func TestParseRecordErrors(t *testing.T) {
	moveIn := fixture(t, "move_in.xml")
	tests := []struct {
		name string
		doc  string
		want cim.ValidationErrorCode
	}{
		{"missing consumer name for move-in", removeLine(moveIn, "customerMarketParticipant.name"), cim.CodeMissingElement},
		{"consumer coding scheme", strings.Replace(moveIn, `codingScheme="ARR"`, `codingScheme="A10"`, 1), cim.CodeInvalidCodingScheme},
		{"start date not utc", strings.Replace(moveIn, "2026-03-12T23:00:00Z", "2026-03-13T00:00:00+01:00", 1), cim.CodeInvalidDateTime},
		{"unknown record element", strings.Replace(moveIn, "<cim:start_", "<cim:end_DateAndOrTime.dateTime>x</cim:end_DateAndOrTime.dateTime>\n    <cim:start_", 1), cim.CodeUnexpectedElement},
		{"transaction id too long", strings.Replace(moveIn, "tx-move-in-1", strings.Repeat("x", 37), 1), cim.CodeInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := cim.Parse(context.Background(), strings.NewReader(tt.doc))
			require.NoError(t, err)
			require.True(t, doc.Valid(), "%v", doc.Errors)
			assert.Empty(t, doc.Records())
			require.Len(t, doc.Rejected(), 1)
			assert.Contains(t, codesOf(doc.Rejected()[0].Errors), tt.want)
		})
	}
}

func TestParseChangeOfSupplierDoesNotNeedConsumer(t *testing.T) {
	doc, err := cim.Parse(context.Background(), strings.NewReader(fixture(t, "change_of_supplier.xml")))
	require.NoError(t, err)
	assert.Len(t, doc.Records(), 2)
}

func TestParseDuplicateTransactionWithinMessage(t *testing.T) {
	doc := strings.Replace(fixture(t, "change_of_supplier.xml"), "tx-cos-2", "tx-cos-1", 1)
	parsed, err := cim.Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, parsed.Transactions, 2)
	assert.True(t, parsed.Transactions[0].Valid())
	assert.Equal(t, "tx-cos-1", parsed.Transactions[1].TransactionID)
	assert.Equal(t, []cim.ValidationErrorCode{cim.CodeDuplicateTransactionID}, codesOf(parsed.Transactions[1].Errors))
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	doc := strings.Replace(fixture(t, "change_of_supplier.xml"), "tx-cos-1", strings.Repeat("x", 37), 1)
	parsed, err := cim.Parse(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, parsed.Transactions, 2)
	assert.False(t, parsed.Transactions[0].Valid(), "the invalid record stays first")
	assert.Equal(t, "tx-cos-2", parsed.Transactions[1].TransactionID)
	assert.True(t, parsed.Transactions[1].Valid())
	require.Len(t, parsed.Records(), 1)
	require.Len(t, parsed.Rejected(), 1)
}

func TestParseHeaderCheckRejectsDocument(t *testing.T) {
	check := func(h cim.Header) []cim.ValidationError {
		return []cim.ValidationError{{Code: "SenderDoesNotMatchAuthenticatedActor", Message: h.SenderID}}
	}

	doc, err := cim.Parse(context.Background(), strings.NewReader(fixture(t, "move_in.xml")), cim.WithHeaderCheck(check))
	require.NoError(t, err)
	assert.False(t, doc.Valid())
	assert.Equal(t, []cim.ValidationErrorCode{"SenderDoesNotMatchAuthenticatedActor"}, codesOf(doc.Errors))
	assert.Empty(t, doc.Transactions)
}

func removeLine(doc, containing string) string {
	lines := strings.Split(doc, "\n")
	out := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, containing) {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
