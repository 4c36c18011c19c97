package masterdata_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	apmodels "marketroles/internal/accountingpoint/models"
	"marketroles/internal/masterdata"
	"marketroles/internal/platform/kafka/consumer"
	"marketroles/internal/processing/processingtest"
)

type MasterDataSuite struct {
	suite.Suite
	env    *processingtest.Env
	router *masterdata.Router
	ctx    context.Context
	at     time.Time
}

func TestMasterDataSuite(t *testing.T) {
	suite.Run(t, new(MasterDataSuite))
}

func (s *MasterDataSuite) SetupTest() {
	s.env = processingtest.NewEnv()
	s.ctx = context.Background()
	s.at = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := masterdata.NewService(s.env.Points, s.env.Suppliers, s.env.Publisher, s.env.Runner, logger)
	s.router = svc.Router()
}

func (s *MasterDataSuite) deliver(eventType, body string) {
	msg := &consumer.Message{
		Topic:     "masterdata",
		Value:     []byte(body),
		Headers:   map[string]string{masterdata.HeaderEventType: eventType},
		Timestamp: s.at,
	}
	s.Require().NoError(s.router.Handle(s.ctx, msg))
}

func (s *MasterDataSuite) created() string {
	return `{"gsrn_number":"571313100000000010","metering_point_type":"consumption"}`
}

func (s *MasterDataSuite) TestMeteringPointCreatedIsIdempotent() {
	s.deliver(masterdata.EventMeteringPointCreated, s.created())
	s.deliver(masterdata.EventMeteringPointCreated, s.created())

	ap := s.env.Point(s.T(), processingtest.Gsrn)
	s.Equal(apmodels.PhysicalStateNew, ap.PhysicalState)
	s.Equal(apmodels.AccountingPointConsumption, ap.Type)
	s.Equal([]string{apmodels.EventAccountingPointCreated}, s.env.OutboxTypes())
}

func (s *MasterDataSuite) TestStateChangesFollowTheStateModel() {
	s.deliver(masterdata.EventMeteringPointCreated, s.created())
	state := `{"gsrn_number":"571313100000000010"}`

	s.deliver(masterdata.EventMeteringPointConnected, state)
	s.deliver(masterdata.EventMeteringPointConnected, state)
	s.Equal(apmodels.PhysicalStateConnected, s.env.Point(s.T(), processingtest.Gsrn).PhysicalState)

	s.deliver(masterdata.EventMeteringPointDisconnected, state)
	s.Equal(apmodels.PhysicalStateDisconnected, s.env.Point(s.T(), processingtest.Gsrn).PhysicalState)

	s.deliver(masterdata.EventMeteringPointClosedDown, state)
	s.deliver(masterdata.EventMeteringPointConnected, state)
	s.Equal(apmodels.PhysicalStateClosedDown, s.env.Point(s.T(), processingtest.Gsrn).PhysicalState)

	s.Equal([]string{
		apmodels.EventAccountingPointCreated,
		apmodels.EventPhysicalStateChanged,
		apmodels.EventPhysicalStateChanged,
		apmodels.EventPhysicalStateChanged,
	}, s.env.OutboxTypes())
}

func (s *MasterDataSuite) TestEnergySupplierRegisteredIsIdempotent() {
	body := `{"gln_number":"5799999933318"}`
	s.deliver(masterdata.EventEnergySupplierRegistered, body)
	s.deliver(masterdata.EventEnergySupplierRegistered, body)

	supplier, err := s.env.Suppliers.FindByGln(s.ctx, processingtest.SupplierGln)
	s.Require().NoError(err)
	s.Equal(processingtest.SupplierGln, supplier.GlnNumber)
}

func (s *MasterDataSuite) TestBadRecordsAreSkipped() {
	tests := []struct {
		name      string
		eventType string
		body      string
	}{
		{name: "malformed json", eventType: masterdata.EventMeteringPointCreated, body: `{`},
		{name: "invalid gsrn", eventType: masterdata.EventMeteringPointCreated, body: `{"gsrn_number":"123","metering_point_type":"consumption"}`},
		{name: "unknown type", eventType: masterdata.EventMeteringPointCreated, body: `{"gsrn_number":"571313100000000010","metering_point_type":"exchange"}`},
		{name: "unknown point", eventType: masterdata.EventMeteringPointConnected, body: `{"gsrn_number":"571313100000000027"}`},
		{name: "invalid gln", eventType: masterdata.EventEnergySupplierRegistered, body: `{"gln_number":"1"}`},
		{name: "unknown event", eventType: "MeteringPointMerged", body: `{}`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.deliver(tt.eventType, tt.body)
		})
	}
	s.Empty(s.env.OutboxTypes())
}

func (s *MasterDataSuite) TestEventTypeFromBody() {
	msg := &consumer.Message{
		Value: []byte(`{"type":"MeteringPointCreated","gsrn_number":"571313100000000010","metering_point_type":"production","physical_state":"connected"}`),
	}
	s.Require().NoError(s.router.Handle(s.ctx, msg))

	ap := s.env.Point(s.T(), processingtest.Gsrn)
	s.Equal(apmodels.AccountingPointProduction, ap.Type)
	s.Equal(apmodels.PhysicalStateConnected, ap.PhysicalState)
}
