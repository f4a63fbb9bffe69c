package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"storage-sync/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPassRunner struct {
	mock.Mock
}

func (m *MockPassRunner) RunDuePass(ctx context.Context) (*service.PassResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*service.PassResult)
	return result, args.Error(1)
}

func TestScheduler_Start(t *testing.T) {
	t.Run("rejects invalid spec", func(t *testing.T) {
		s := NewScheduler(new(MockPassRunner), "not a cron spec", time.Minute)
		err := s.Start()
		assert.Error(t, err)
	})

	t.Run("registers one job", func(t *testing.T) {
		s := NewScheduler(new(MockPassRunner), "*/30 * * * * *", time.Minute)
		require.NoError(t, s.Start())
		defer s.Stop()

		assert.Len(t, s.GetScheduledJobs(), 1)
	})

	t.Run("accepts five-field spec", func(t *testing.T) {
		s := NewScheduler(new(MockPassRunner), "*/5 * * * *", time.Minute)
		require.NoError(t, s.Start())
		s.Stop()
	})
}

func TestScheduler_RunNow(t *testing.T) {
	runner := new(MockPassRunner)
	expected := &service.PassResult{ManifestVersion: 3}
	runner.On("RunDuePass", mock.Anything).Return(expected, nil).Once()

	s := NewScheduler(runner, "@every 1h", time.Minute)
	result, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, result)
	runner.AssertExpectations(t)
}

func TestScheduler_RunDueSwallowsErrors(t *testing.T) {
	runner := new(MockPassRunner)
	runner.On("RunDuePass", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline
	})).Return(nil, errors.New("remote unavailable")).Once()

	s := NewScheduler(runner, "@every 1h", time.Minute)
	assert.NotPanics(t, s.runDue)
	runner.AssertExpectations(t)
}
