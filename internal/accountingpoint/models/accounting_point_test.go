package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"marketroles/internal/accountingpoint/models"
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
)

const testGsrn = id.GsrnNumber("571313100000000010")

type AccountingPointSuite struct {
	suite.Suite
	now      time.Time
	today    time.Time
	current  id.EnergySupplierID
	incoming id.EnergySupplierID
	consumer id.ConsumerID
}

func TestAccountingPointSuite(t *testing.T) {
	suite.Run(t, new(AccountingPointSuite))
}

func (s *AccountingPointSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 10, 0, 0, 0, id.Copenhagen).UTC()
	s.today = id.StartOfDanishDay(s.now)
	s.current = id.NewEnergySupplierID()
	s.incoming = id.NewEnergySupplierID()
	s.consumer = id.NewConsumerID()
}

func (s *AccountingPointSuite) day(offset int) time.Time {
	return id.StartOfDanishDay(s.today.In(id.Copenhagen).AddDate(0, 0, offset))
}

// suppliedPoint returns a connected point supplied by s.current since three days ago.
func (s *AccountingPointSuite) suppliedPoint() *models.AccountingPoint {
	ap, err := models.NewAccountingPoint(testGsrn, models.AccountingPointConsumption, models.PhysicalStateConnected, s.now)
	s.Require().NoError(err)
	processID, err := ap.AcceptConsumerMoveIn(id.NewConsumerID(), s.current, "tx-initial", s.day(-3), s.now, models.DefaultMoveInPolicy)
	s.Require().NoError(err)
	s.Require().NoError(ap.EffectuateConsumerMoveIn(processID, s.now))
	ap.PullDomainEvents()
	return ap
}

func (s *AccountingPointSuite) TestConstruction() {
	s.Run("raises created event", func() {
		ap, err := models.NewAccountingPoint(testGsrn, models.AccountingPointProduction, models.PhysicalStateNew, s.now)
		s.Require().NoError(err)

		events := ap.PullDomainEvents()
		s.Require().Len(events, 1)
		s.Equal(models.EventAccountingPointCreated, events[0].EventName())
		s.Empty(ap.PullDomainEvents())
	})

	s.Run("rejects unknown type", func() {
		_, err := models.NewAccountingPoint(testGsrn, "exchange", models.PhysicalStateNew, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects missing gsrn", func() {
		_, err := models.NewAccountingPoint("", models.AccountingPointConsumption, models.PhysicalStateNew, s.now)
		s.Require().Error(err)
	})
}

func (s *AccountingPointSuite) TestChangeSupplierAcceptable() {
	s.Run("accepts a future change to another supplier", func() {
		ap := s.suppliedPoint()
		result := ap.ChangeSupplierAcceptable(s.incoming, s.day(10), s.now)
		s.True(result.Success())
	})

	s.Run("rejects when no supplier is associated", func() {
		ap, err := models.NewAccountingPoint(testGsrn, models.AccountingPointConsumption, models.PhysicalStateConnected, s.now)
		s.Require().NoError(err)

		result := ap.ChangeSupplierAcceptable(s.incoming, s.day(10), s.now)
		s.Require().False(result.Success())
		s.Equal(models.CodeNoEnergySupplierAssociated, result.Errors[0].Code)
	})

	s.Run("rejects the current supplier", func() {
		ap := s.suppliedPoint()
		result := ap.ChangeSupplierAcceptable(s.current, s.day(10), s.now)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.CodeAlreadyCurrentSupplier, result.Errors[0].Code)
	})

	s.Run("rejects a closed down point", func() {
		ap := s.suppliedPoint()
		s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateClosedDown, s.now))

		result := ap.ChangeSupplierAcceptable(s.incoming, s.day(10), s.now)
		s.Require().False(result.Success())
		s.Equal(models.CodeClosedDownAccountingPoint, result.Errors[0].Code)
	})

	s.Run("rejects an effective date in the past", func() {
		ap := s.suppliedPoint()
		result := ap.ChangeSupplierAcceptable(s.incoming, s.day(-1), s.now)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.CodeEffectiveDateInThePast, result.Errors[0].Code)
	})

	s.Run("rejects a second change on the same Danish date", func() {
		ap := s.suppliedPoint()
		_, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(10), s.now)
		s.Require().NoError(err)

		other := id.NewEnergySupplierID()
		result := ap.ChangeSupplierAcceptable(other, s.day(10).Add(3*time.Hour), s.now)
		s.Require().False(result.Success())
		s.Equal(models.CodeChangeOfSupplierRegisteredSameDate, result.Errors[0].Code)
	})

	s.Run("collects every broken rule", func() {
		ap := s.suppliedPoint()
		s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateClosedDown, s.now))

		result := ap.ChangeSupplierAcceptable(s.current, s.day(-2), s.now)
		s.Len(result.Errors, 3)
	})
}

func (s *AccountingPointSuite) TestChangeOfSupplierLifecycle() {
	s.Run("accept then effectuate hands over supply", func() {
		ap := s.suppliedPoint()
		processID, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(10), s.now)
		s.Require().NoError(err)

		accepted := ap.PullDomainEvents()
		s.Require().Len(accepted, 1)
		s.Equal(models.EventEnergySupplierChangeRegistered, accepted[0].EventName())

		err = ap.EffectuateChangeOfSupplier(processID, s.now)
		s.Require().Error(err, "effective date not reached")

		later := s.day(10).Add(time.Minute)
		s.Require().NoError(ap.EffectuateChangeOfSupplier(processID, later))

		s.Equal(s.incoming, ap.CurrentSupplier(later).EnergySupplierID)
		s.Equal(s.current, ap.CurrentSupplier(s.now).EnergySupplierID)

		events := ap.PullDomainEvents()
		s.Require().Len(events, 1)
		changed, ok := events[0].(models.EnergySupplierChanged)
		s.Require().True(ok)
		s.Require().NotNil(changed.PreviousEnergySupplierID)
		s.Equal(s.current, *changed.PreviousEnergySupplierID)
		s.Equal(s.day(10), changed.StartOfSupply)
	})

	s.Run("effectuating twice fails", func() {
		ap := s.suppliedPoint()
		processID, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(1), s.now)
		s.Require().NoError(err)
		s.Require().NoError(ap.EffectuateChangeOfSupplier(processID, s.day(1)))

		err = ap.EffectuateChangeOfSupplier(processID, s.day(2))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("unknown process is not found", func() {
		ap := s.suppliedPoint()
		err := ap.EffectuateChangeOfSupplier(id.NewBusinessProcessID(), s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *AccountingPointSuite) TestCancelChangeOfSupplier() {
	s.Run("cancels a pending change before its effective date", func() {
		ap := s.suppliedPoint()
		processID, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(10), s.now)
		s.Require().NoError(err)
		ap.PullDomainEvents()

		cancelled, err := ap.CancelChangeOfSupplier("tx-1", s.incoming, s.now)
		s.Require().NoError(err)
		s.Equal(processID, cancelled)
		s.Equal(models.ProcessCancelled, ap.BusinessProcessByTransaction("tx-1").Status)

		events := ap.PullDomainEvents()
		s.Require().Len(events, 1)
		s.Equal(models.EventChangeOfSupplierCancelled, events[0].EventName())

		s.Error(ap.EffectuateChangeOfSupplier(processID, s.day(11)))
		s.True(ap.ChangeSupplierAcceptable(s.incoming, s.day(10), s.now).Success(), "date is free again")
	})

	s.Run("rejects unknown transaction", func() {
		ap := s.suppliedPoint()
		result := ap.CancelChangeOfSupplierAcceptable("missing", s.incoming, s.now)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.CodeUnknownBusinessProcess, result.Errors[0].Code)
	})

	s.Run("rejects cancellation of a move-in", func() {
		ap := s.suppliedPoint()
		result := ap.CancelChangeOfSupplierAcceptable("tx-initial", s.current, s.now)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.CodeBusinessProcessNotChangeOfSupplier, result.Errors[0].Code)
	})

	s.Run("rejects another supplier", func() {
		ap := s.suppliedPoint()
		_, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(10), s.now)
		s.Require().NoError(err)

		_, err = ap.CancelChangeOfSupplier("tx-1", s.current, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), string(models.CodeCancellationByOtherSupplier))
	})

	s.Run("rejects on the effective date", func() {
		ap := s.suppliedPoint()
		_, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(2), s.now)
		s.Require().NoError(err)

		result := ap.CancelChangeOfSupplierAcceptable("tx-1", s.incoming, s.day(2))
		s.Require().Len(result.Errors, 1)
		s.Equal(models.CodeCancellationDeadlinePassed, result.Errors[0].Code)
	})
}

func (s *AccountingPointSuite) TestConsumerMoveIn() {
	s.Run("accepts and effectuates a move-in on a point without supplier", func() {
		ap, err := models.NewAccountingPoint(testGsrn, models.AccountingPointConsumption, models.PhysicalStateNew, s.now)
		s.Require().NoError(err)
		ap.PullDomainEvents()

		processID, err := ap.AcceptConsumerMoveIn(s.consumer, s.incoming, "tx-mi", s.day(1), s.now, models.DefaultMoveInPolicy)
		s.Require().NoError(err)
		s.Nil(ap.CurrentConsumer(s.day(1)), "not moved in before effectuation")

		s.Require().NoError(ap.EffectuateConsumerMoveIn(processID, s.day(1)))
		s.Equal(s.consumer, ap.CurrentConsumer(s.day(1)).ConsumerID)
		s.Equal(s.incoming, ap.CurrentSupplier(s.day(1)).EnergySupplierID)

		names := []string{}
		for _, e := range ap.PullDomainEvents() {
			names = append(names, e.EventName())
		}
		s.Equal([]string{
			models.EventConsumerMoveInAccepted,
			models.EventConsumerMovedIn,
			models.EventEnergySupplierChanged,
		}, names)
	})

	s.Run("replaces the existing supplier from the move-in date", func() {
		ap := s.suppliedPoint()
		processID, err := ap.AcceptConsumerMoveIn(s.consumer, s.incoming, "tx-mi", s.day(5), s.now, models.DefaultMoveInPolicy)
		s.Require().NoError(err)
		s.Require().NoError(ap.EffectuateConsumerMoveIn(processID, s.day(5)))

		s.Equal(s.current, ap.CurrentSupplier(s.day(4)).EnergySupplierID)
		s.Equal(s.incoming, ap.CurrentSupplier(s.day(5)).EnergySupplierID)
	})

	s.Run("rejects effective date not at Danish midnight", func() {
		ap := s.suppliedPoint()
		result := ap.ConsumerMoveInAcceptable(s.consumer, s.day(1).Add(time.Hour), s.now, models.DefaultMoveInPolicy)
		s.Require().False(result.Success())
		s.Equal(models.CodeEffectiveDateNotStartOfDay, result.Errors[0].Code)
	})

	s.Run("rejects dates outside the policy window", func() {
		ap := s.suppliedPoint()
		policy := models.EffectiveDatePolicy{AllowedDaysBeforeToday: 2, AllowedDaysAfterToday: 5}

		s.False(ap.ConsumerMoveInAcceptable(s.consumer, s.day(-3), s.now, policy).Success())
		s.False(ap.ConsumerMoveInAcceptable(s.consumer, s.day(6), s.now, policy).Success())
		s.True(ap.ConsumerMoveInAcceptable(s.consumer, s.day(-2), s.now, policy).Success())
		s.True(ap.ConsumerMoveInAcceptable(s.consumer, s.day(5), s.now, policy).Success())
	})

	s.Run("rejects the consumer already living there", func() {
		ap := s.suppliedPoint()
		processID, err := ap.AcceptConsumerMoveIn(s.consumer, s.incoming, "tx-mi", s.day(1), s.now, models.DefaultMoveInPolicy)
		s.Require().NoError(err)
		s.Require().NoError(ap.EffectuateConsumerMoveIn(processID, s.day(1)))

		result := ap.ConsumerMoveInAcceptable(s.consumer, s.day(3), s.now, models.DefaultMoveInPolicy)
		s.Require().Len(result.Errors, 1)
		s.Equal(models.CodeConsumerIsAlreadyCurrentConsumer, result.Errors[0].Code)
	})

	s.Run("rejects a second move-in on the same date", func() {
		ap := s.suppliedPoint()
		_, err := ap.AcceptConsumerMoveIn(s.consumer, s.incoming, "tx-mi", s.day(1), s.now, models.DefaultMoveInPolicy)
		s.Require().NoError(err)

		_, err = ap.AcceptConsumerMoveIn(id.NewConsumerID(), s.incoming, "tx-mi-2", s.day(1), s.now, models.DefaultMoveInPolicy)
		s.Require().Error(err)
		s.Contains(err.Error(), string(models.CodeMoveInRegisteredSameDate))
	})
}

func (s *AccountingPointSuite) TestPhysicalState() {
	s.Run("follows allowed transitions", func() {
		ap := s.suppliedPoint()
		s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateDisconnected, s.now))
		s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateConnected, s.now))
		s.Len(ap.PullDomainEvents(), 2)
	})

	s.Run("same state is a no-op", func() {
		ap := s.suppliedPoint()
		s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateConnected, s.now))
		s.Empty(ap.PullDomainEvents())
	})

	s.Run("closed down is terminal", func() {
		ap := s.suppliedPoint()
		s.Require().NoError(ap.ChangePhysicalState(models.PhysicalStateClosedDown, s.now))
		err := ap.ChangePhysicalState(models.PhysicalStateConnected, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *AccountingPointSuite) TestClone() {
	ap := s.suppliedPoint()
	_, err := ap.AcceptChangeOfSupplier(s.incoming, "tx-1", s.day(10), s.now)
	s.Require().NoError(err)

	clone := ap.Clone()
	clone.BusinessProcessByTransaction("tx-1").ApplyCancellation()
	*clone.SupplierRegistrations[0].StartOfSupplyDate = s.day(-100)

	s.Equal(models.ProcessPending, ap.BusinessProcessByTransaction("tx-1").Status)
	s.Equal(s.day(-3), *ap.SupplierRegistrations[0].StartOfSupplyDate)
	s.Empty(clone.PullDomainEvents())
}
