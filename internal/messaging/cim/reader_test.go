package cim_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketroles/internal/messaging/cim"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestReaderStreamsRecords(t *testing.T) {
	ctx := context.Background()
	r := cim.NewReader(strings.NewReader(fixture(t, "change_of_supplier.xml")))

	header, errs, err := r.ReadHeader(ctx)
	require.NoError(t, err)
	require.Empty(t, errs)
	assert.Equal(t, cim.Header{
		Kind:               cim.KindRequestChangeOfSupplier,
		MessageID:          "msg-cos-1",
		DocumentType:       "392",
		ProcessType:        cim.ProcessTypeChangeOfSupplier,
		BusinessSectorType: "23",
		SenderID:           "5799999933318",
		SenderRole:         "DDQ",
		ReceiverID:         "5790001330583",
		ReceiverRole:       "DDZ",
		CreatedAt:          time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}, header)

	var ids []string
	for {
		record, errs, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Empty(t, errs)
		cos, ok := record.(*cim.ChangeOfSupplierRecord)
		require.True(t, ok)
		assert.Equal(t, "5799999933318", cos.EnergySupplierGln)
		assert.True(t, cos.StartDate.Equal(time.Date(2026, 3, 23, 23, 0, 0, 0, time.UTC)))
		ids = append(ids, record.TransactionID())
	}
	assert.Equal(t, []string{"tx-cos-1", "tx-cos-2"}, ids)

	_, _, err = r.Next(ctx)
	assert.Equal(t, io.EOF, err, "stays at end")
}

func TestReaderMoveInRecord(t *testing.T) {
	ctx := context.Background()
	r := cim.NewReader(strings.NewReader(fixture(t, "move_in.xml")))
	_, errs, err := r.ReadHeader(ctx)
	require.NoError(t, err)
	require.Empty(t, errs)

	record, errs, err := r.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, errs)
	moveIn := record.(*cim.ChangeOfSupplierRecord)
	assert.Equal(t, "tx-move-in-1", moveIn.MRID)
	assert.Equal(t, "571313100000000010", moveIn.GsrnNumber)
	assert.Equal(t, cim.CodingSchemeCPR, moveIn.ConsumerIDScheme)
	assert.Equal(t, "0101801234", moveIn.ConsumerID)
	assert.Equal(t, "Jens Hansen", moveIn.ConsumerName)
	assert.Equal(t, "5790000000005", moveIn.BalanceResponsibleID)
}

func TestReaderCancelRecord(t *testing.T) {
	ctx := context.Background()
	r := cim.NewReader(strings.NewReader(fixture(t, "cancel_change_of_supplier.xml")))
	header, _, err := r.ReadHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, cim.KindRequestCancelChangeOfSupplier, header.Kind)

	record, errs, err := r.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, errs)
	cancel := record.(*cim.CancelChangeOfSupplierRecord)
	assert.Equal(t, "tx-cancel-1", cancel.MRID)
	assert.Equal(t, "tx-cos-1", cancel.OriginalTransactionID)
}

func TestReaderRequiresHeaderFirst(t *testing.T) {
	r := cim.NewReader(strings.NewReader(fixture(t, "move_in.xml")))
	_, _, err := r.Next(context.Background())
	assert.Error(t, err)
}

func TestReaderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := cim.NewReader(strings.NewReader(fixture(t, "move_in.xml")))
	_, _, err := r.ReadHeader(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
