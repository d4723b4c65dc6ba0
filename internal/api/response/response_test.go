package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openshorts/openshorts/internal/api/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_WrapsInDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, map[string]string{"job_id": "abc"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "abc", env.Data["job_id"])
}

func TestAccepted(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Accepted(rec, "queued")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()
	response.Error(rec, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "Job not found", env.Error.Message)
}
