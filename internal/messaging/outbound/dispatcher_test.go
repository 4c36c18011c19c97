package outbound_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketroles/internal/messaging/cim"
	"marketroles/internal/messaging/outbound"
	"marketroles/internal/outbox"
	outboxstore "marketroles/internal/outbox/store"
	"marketroles/pkg/requestcontext"
)

func newDispatcher(store outbox.Store) *outbound.Dispatcher {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seq := 0
	writer := cim.NewWriter("5790001330583",
		cim.WithWriterClock(func() time.Time { return now }),
		cim.WithIDGenerator(func() string {
			seq++
			return "doc-" + string(rune('0'+seq))
		}),
	)
	return outbound.New(writer, store)
}

func TestConfirmIsQueuedForTheReceiver(t *testing.T) {
	store := outboxstore.NewInMemory()
	created := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), created), "req-1")

	err := newDispatcher(store).Confirm(ctx, cim.Response{
		ProcessType:           cim.ProcessTypeChangeOfSupplier,
		Receiver:              "5799999933318",
		OriginalTransactionID: "tx-1",
		GsrnNumber:            "571313100000000010",
	})
	require.NoError(t, err)

	entries := store.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, outbox.CategoryMarketDocument, entry.Category)
	assert.Equal(t, cim.KindConfirmRequestChangeOfSupplier, entry.Type)
	assert.Equal(t, "5799999933318", entry.Key)
	assert.Equal(t, outbox.ContentTypeXML, entry.ContentType)
	assert.True(t, created.Equal(entry.CreatedAt))
	assert.Equal(t, "5799999933318", entry.Headers[outbound.HeaderReceiver])
	assert.Equal(t, "tx-1", entry.Headers[outbound.HeaderOriginalTransactionID])
	assert.Equal(t, "req-1", entry.Headers[outbound.HeaderCorrelationID])
	assert.NotEmpty(t, entry.Headers[outbound.HeaderMessageID])
	assert.Contains(t, string(entry.Payload), "<cim:originalTransactionIDReference_MktActivityRecord.mRID>tx-1<")
}

func TestRejectWithoutReasonsQueuesNothing(t *testing.T) {
	store := outboxstore.NewInMemory()

	err := newDispatcher(store).Reject(context.Background(), cim.Response{
		ProcessType:           cim.ProcessTypeMoveIn,
		Receiver:              "5799999933318",
		OriginalTransactionID: "tx-1",
	})
	require.Error(t, err)
	assert.Empty(t, store.All())
}

func TestNotificationAndCharacteristicsUseTheirOwnKinds(t *testing.T) {
	store := outboxstore.NewInMemory()
	d := newDispatcher(store)
	ctx := context.Background()
	effective := time.Date(2026, 3, 23, 23, 0, 0, 0, time.UTC)

	require.NoError(t, d.NotifyCurrentSupplier(ctx, cim.Notification{
		ProcessType:           cim.ProcessTypeChangeOfSupplier,
		Receiver:              "5799999933325",
		OriginalTransactionID: "tx-2",
		GsrnNumber:            "571313100000000010",
		EffectiveDate:         effective,
	}))
	require.NoError(t, d.ForwardCharacteristics(ctx, cim.Characteristics{
		ProcessType:           cim.ProcessTypeChangeOfSupplier,
		Receiver:              "5799999933318",
		OriginalTransactionID: "tx-2",
		GsrnNumber:            "571313100000000010",
		MeteringPointType:     "E17",
		ConnectionState:       "E22",
		EnergySupplierGln:     "5799999933318",
		SupplyStart:           effective,
	}))

	entries := store.All()
	require.Len(t, entries, 2)
	assert.Equal(t, cim.KindGenericNotification, entries[0].Type)
	assert.Equal(t, "5799999933325", entries[0].Key)
	assert.Equal(t, cim.KindAccountingPointCharacteristics, entries[1].Type)
	assert.Equal(t, "5799999933318", entries[1].Key)
}
