package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/statcore/internal/config"
	"github.com/vk/statcore/internal/registry"
	"github.com/vk/statcore/internal/stat"
)

// Shares the process-wide pipeline handle, so it must not run in parallel
// with the lifecycle tests.
func TestHealthHandler_ReportsPipelineReadiness(t *testing.T) {
	// Arrange
	a := &App{ctx: context.Background()}
	request := httptest.NewRequest(http.MethodGet, "/health", nil)

	// Act & Assert: not ready before a pipeline is published.
	recorder := httptest.NewRecorder()
	a.healthHandler(recorder, request)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "pipeline not ready")

	// Publish an (empty) pipeline and check again.
	_, err := stat.Setup(context.Background(), &config.Model{}, registry.New())
	require.NoError(t, err)
	defer func() { require.NoError(t, stat.Close()) }()

	recorder = httptest.NewRecorder()
	a.healthHandler(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "OK")
}
