package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerInitialState(t *testing.T) {
	b := New("kafka")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "kafka", b.Name())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("kafka", WithFailureThreshold(3))

	open, change := b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	open, change = b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	open, change = b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("kafka", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerFailureResetsSuccessCount(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(3))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerStaysOpenWithoutRepeatingTransition(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))

	b.RecordFailure()

	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.False(t, change.Opened)
}

func TestBreakerDefaultsOpenAfterFiveFailures(t *testing.T) {
	b := New("kafka")
	for i := 0; i < 4; i++ {
		open, _ := b.RecordFailure()
		assert.False(t, open)
	}
	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)

	closed, change := b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
}
