package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Name:             "test-circuit",
		MaxRequests:      2,
		Interval:         10 * time.Second,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func TestNew(t *testing.T) {
	cb := New(DefaultConfig("remote"))
	assert.Equal(t, "remote", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := New(testConfig())

	result, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	testErr := errors.New("test error")
	err = cb.Do(func() error { return testErr })
	assert.Equal(t, testErr, err)
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cb := New(testConfig())
	testErr := errors.New("test error")

	// 4 failures + 1 success, below MinRequests until the 6th call.
	for i := 0; i < 4; i++ {
		assert.Equal(t, testErr, cb.Do(func() error { return testErr }))
	}
	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, testErr, cb.Do(func() error { return testErr }))

	require.True(t, cb.IsOpen())

	err := cb.Do(func() error {
		t.Error("function should not be called when circuit is open")
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := New(testConfig())
	testErr := errors.New("test error")
	for i := 0; i < 6; i++ {
		_ = cb.Do(func() error { return testErr })
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(150 * time.Millisecond)

	require.NoError(t, cb.Do(func() error { return nil }))
	assert.NotEqual(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_IsSuccessfulIgnoresClientErrors(t *testing.T) {
	notFound := errors.New("404")
	cfg := testConfig()
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, notFound) }
	cb := New(cfg)

	for i := 0; i < 10; i++ {
		assert.Equal(t, notFound, cb.Do(func() error { return notFound }))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestPresetConfigs(t *testing.T) {
	remote := RemoteAPIConfig()
	assert.Equal(t, "remote-api", remote.Name)
	assert.Equal(t, uint32(5), remote.MinRequests)

	notify := NotifyConfig()
	assert.Equal(t, "remote-notify", notify.Name)
	assert.Equal(t, 2*time.Minute, notify.Timeout)

	store := StoreConfig()
	assert.Equal(t, "local-store", store.Name)
	assert.Equal(t, 1.0, store.FailureThreshold)
}
