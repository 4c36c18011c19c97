//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"marketroles/internal/energysupplier/models"
	"marketroles/internal/energysupplier/store"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
	"marketroles/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "supplier_registrations", "energy_suppliers"))
}

func (s *PostgresStoreSuite) TestAddAndFind() {
	ctx := context.Background()
	supplier, err := models.NewEnergySupplier("5799999933318")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Add(ctx, supplier))

	byGln, err := s.store.FindByGln(ctx, "5799999933318")
	s.Require().NoError(err)
	s.Equal(supplier.ID, byGln.ID)

	byID, err := s.store.FindByID(ctx, supplier.ID)
	s.Require().NoError(err)
	s.Equal(supplier.GlnNumber, byID.GlnNumber)

	_, err = s.store.FindByGln(ctx, "5799999933325")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGlnIsUnique() {
	ctx := context.Background()
	first, err := models.NewEnergySupplier("5799999933318")
	s.Require().NoError(err)
	second, err := models.NewEnergySupplier("5799999933318")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Add(ctx, first))
	s.ErrorIs(s.store.Add(ctx, second), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestDuplicateGlnKeepsTransactionUsable() {
	ctx := context.Background()
	first, err := models.NewEnergySupplier("5799999933318")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Add(ctx, first))

	err = tx.NewSQLRunner(s.postgres.DB).RunInTx(ctx, func(txCtx context.Context) error {
		again, err := models.NewEnergySupplier("5799999933318")
		s.Require().NoError(err)
		s.ErrorIs(s.store.Add(txCtx, again), sentinel.ErrAlreadyUsed)
		next, err := models.NewEnergySupplier("5799999933325")
		s.Require().NoError(err)
		return s.store.Add(txCtx, next)
	})
	s.Require().NoError(err)

	_, err = s.store.FindByGln(ctx, "5799999933325")
	s.NoError(err)
}
