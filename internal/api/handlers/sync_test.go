package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storage-sync/internal/api"
	"storage-sync/internal/repository"
	"storage-sync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSyncRunner struct {
	mock.Mock
}

func (m *MockSyncRunner) RunPass(ctx context.Context) (*service.PassResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*service.PassResult)
	return result, args.Error(1)
}

func (m *MockSyncRunner) Status(ctx context.Context) (*service.Status, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*service.Status)
	return status, args.Error(1)
}

func (m *MockSyncRunner) ListPasses(ctx context.Context, limit, offset int32) ([]repository.SyncPass, error) {
	args := m.Called(ctx, limit, offset)
	passes, _ := args.Get(0).([]repository.SyncPass)
	return passes, args.Error(1)
}

func setupSyncRouter(runner *MockSyncRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSyncHandler(runner)
	r.GET("/sync/status", h.GetSyncStatus)
	r.POST("/sync/trigger", h.TriggerSync)
	r.GET("/sync/passes", h.ListPasses)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) api.APIResponse {
	t.Helper()
	var resp api.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSyncHandler_GetSyncStatus(t *testing.T) {
	runner := new(MockSyncRunner)
	runner.On("Status", mock.Anything).Return(&service.Status{
		State:       &repository.SyncState{Status: repository.SyncStatusIdle, ManifestVersion: 7},
		RemoteStore: "memory",
	}, nil)

	w := httptest.NewRecorder()
	setupSyncRouter(runner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Contains(t, w.Body.String(), `"manifest_version":7`)
	assert.Contains(t, w.Body.String(), `"remote_store":"memory"`)
}

func TestSyncHandler_TriggerSync(t *testing.T) {
	tests := []struct {
		name       string
		result     *service.PassResult
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "pass completes",
			result:     &service.PassResult{ID: uuid.New(), ManifestVersion: 4, RemoteInserts: 2},
			wantStatus: http.StatusOK,
		},
		{
			name:       "pass already running",
			err:        service.ErrPassInProgress,
			wantStatus: http.StatusConflict,
			wantCode:   api.ErrCodeInProgress,
		},
		{
			name:       "pass fails",
			err:        errors.New("fetch remote manifest: connection refused"),
			wantStatus: http.StatusBadGateway,
			wantCode:   api.ErrCodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockSyncRunner)
			runner.On("RunPass", mock.Anything).Return(tt.result, tt.err)

			w := httptest.NewRecorder()
			setupSyncRouter(runner).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/trigger", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			if tt.wantCode == "" {
				assert.True(t, resp.Success)
				assert.Contains(t, w.Body.String(), `"remote_inserts":2`)
			} else {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
			runner.AssertExpectations(t)
		})
	}
}

func TestSyncHandler_ListPasses(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		runner := new(MockSyncRunner)
		runner.On("ListPasses", mock.Anything, int32(20), int32(0)).
			Return([]repository.SyncPass{{ID: uuid.New(), Status: repository.PassStatusSuccess}}, nil)

		w := httptest.NewRecorder()
		setupSyncRouter(runner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/passes", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 1, resp.Meta.Pagination.Count)
		runner.AssertExpectations(t)
	})

	t.Run("explicit page", func(t *testing.T) {
		runner := new(MockSyncRunner)
		runner.On("ListPasses", mock.Anything, int32(5), int32(10)).Return(nil, nil)

		w := httptest.NewRecorder()
		setupSyncRouter(runner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/passes?limit=5&offset=10", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
		runner.AssertExpectations(t)
	})

	invalid := []string{"limit=0x", "limit=500", "offset=-1"}
	for _, q := range invalid {
		t.Run("rejects "+q, func(t *testing.T) {
			runner := new(MockSyncRunner)

			w := httptest.NewRecorder()
			setupSyncRouter(runner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/passes?"+q, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), api.ErrCodeValidation)
			runner.AssertNotCalled(t, "ListPasses", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
