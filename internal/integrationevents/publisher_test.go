package integrationevents_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"marketroles/internal/accountingpoint/models"
	"marketroles/internal/integrationevents"
	"marketroles/internal/outbox"
	"marketroles/internal/outbox/store"
	id "marketroles/pkg/domain"
	"marketroles/pkg/requestcontext"
)

const testGsrn = id.GsrnNumber("571313100000000027")

type PublisherSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *store.InMemory
	publisher *integrationevents.Publisher
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), s.now), "req-42")
	s.store = store.NewInMemory()
	s.publisher = integrationevents.NewPublisher(s.store)
}

func (s *PublisherSuite) TestAppendsOneEntryPerEventKeyedByGsrn() {
	ap, err := models.NewAccountingPoint(testGsrn, models.AccountingPointConsumption, models.PhysicalStateNew, s.now)
	s.Require().NoError(err)
	s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateConnected, s.now))

	s.Require().NoError(s.publisher.Publish(s.ctx, ap.PullDomainEvents()...))

	entries := s.store.All()
	s.Require().Len(entries, 2)
	s.Equal(models.EventAccountingPointCreated, entries[0].Type)
	s.Equal(models.EventPhysicalStateChanged, entries[1].Type)
	for _, e := range entries {
		s.Equal(outbox.CategoryIntegrationEvent, e.Category)
		s.Equal(outbox.ContentTypeJSON, e.ContentType)
		s.Equal(testGsrn.String(), e.Key)
		s.True(s.now.Equal(e.CreatedAt))
	}
}

func (s *PublisherSuite) TestEnvelopeCarriesVersionAndCorrelation() {
	supplier := id.NewEnergySupplierID()
	previous := id.NewEnergySupplierID()
	event := models.EnergySupplierChanged{
		AccountingPointID:        id.NewAccountingPointID(),
		GsrnNumber:               testGsrn,
		BusinessProcessID:        id.NewBusinessProcessID(),
		TransactionID:            "tx-7",
		EnergySupplierID:         supplier,
		PreviousEnergySupplierID: &previous,
		StartOfSupply:            s.now.Add(48 * time.Hour),
		OccurredAt:               s.now,
	}
	s.Require().NoError(s.publisher.Publish(s.ctx, event))

	entries := s.store.All()
	s.Require().Len(entries, 1)

	var envelope integrationevents.Envelope
	s.Require().NoError(json.Unmarshal(entries[0].Payload, &envelope))
	s.Equal(entries[0].ID.String(), envelope.EventID)
	s.Equal(models.EventEnergySupplierChanged, envelope.EventType)
	s.Equal(integrationevents.SchemaVersion, envelope.SchemaVersion)
	s.Equal("req-42", envelope.CorrelationID)
	s.True(s.now.Equal(envelope.OccurredAt))

	var data integrationevents.EnergySupplierChanged
	s.Require().NoError(json.Unmarshal(envelope.Data, &data))
	s.Equal(supplier.String(), data.EnergySupplierID)
	s.Equal(previous.String(), data.PreviousEnergySupplierID)
	s.Equal("tx-7", data.TransactionID)
}

func (s *PublisherSuite) TestFirstSupplierHasNoPrevious() {
	event := models.EnergySupplierChanged{
		AccountingPointID: id.NewAccountingPointID(),
		GsrnNumber:        testGsrn,
		BusinessProcessID: id.NewBusinessProcessID(),
		TransactionID:     "tx-8",
		EnergySupplierID:  id.NewEnergySupplierID(),
		StartOfSupply:     s.now,
		OccurredAt:        s.now,
	}
	s.Require().NoError(s.publisher.Publish(s.ctx, event))

	s.NotContains(string(s.store.All()[0].Payload), "previous_energy_supplier_id")
}

type unknownEvent struct{}

func (unknownEvent) EventName() string                     { return "Unknown" }
func (unknownEvent) AccountingPoint() id.AccountingPointID { return id.AccountingPointID{} }

func (s *PublisherSuite) TestUnmappedEventFails() {
	err := s.publisher.Publish(s.ctx, unknownEvent{})
	s.Require().Error(err)
	s.Empty(s.store.All())
}
