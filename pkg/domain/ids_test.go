package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "marketroles/pkg/domain-errors"
)

func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccountingPointID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAccountingPointID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAccountingPointID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseAccountingPointID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, AccountingPointID(valid), id)
		assert.Equal(t, valid.String(), id.String())
	})
}

func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE accounting_points;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConsumerID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errAP := ParseAccountingPointID(validUUID)
		_, errConsumer := ParseConsumerID(validUUID)
		_, errSupplier := ParseEnergySupplierID(validUUID)
		_, errProcess := ParseBusinessProcessID(validUUID)

		require.NoError(t, errAP)
		require.NoError(t, errConsumer)
		require.NoError(t, errSupplier)
		require.NoError(t, errProcess)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errAP := ParseAccountingPointID(input)
			_, errConsumer := ParseConsumerID(input)
			_, errSupplier := ParseEnergySupplierID(input)
			_, errProcess := ParseBusinessProcessID(input)

			require.Error(t, errAP)
			require.Error(t, errConsumer)
			require.Error(t, errSupplier)
			require.Error(t, errProcess)
		})
	}
}

func TestNewIDs_AreNotNil(t *testing.T) {
	assert.False(t, NewAccountingPointID().IsNil())
	assert.False(t, NewConsumerID().IsNil())
	assert.False(t, NewEnergySupplierID().IsNil())
	assert.False(t, NewBusinessProcessID().IsNil())
	assert.True(t, AccountingPointID{}.IsNil())
}
