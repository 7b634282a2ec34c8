package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-relay/internal/api"
	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

// --- Mocks ---
type MockRelay struct {
	mock.Mock
}

func (m *MockRelay) Handle(ctx context.Context, req push.Request) push.Response {
	return m.Called(ctx, req).Get(0).(push.Response)
}

// --- Setup ---
func setupAPI(t *testing.T) (*api.RelayAPI, *MockRelay) {
	t.Helper()
	mockRelay := new(MockRelay)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewRelayAPI(mockRelay, logger), mockRelay
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- Tests ---

func TestSendGoogle(t *testing.T) {
	t.Run("Success - Key passed through to relay", func(t *testing.T) {
		apiHandler, mockRelay := setupAPI(t)
		body := `{"appId":"app1","mode":"dev","deviceId":"d1","key":"K1","notification":{"alert":"hi"},"debug":true}`
		req := httptest.NewRequest("POST", "/api/v1/push/google", bytes.NewReader([]byte(body)))
		w := httptest.NewRecorder()

		mockRelay.On("Handle", mock.Anything, mock.MatchedBy(func(r push.Request) bool {
			return r.AppID == "app1" && r.Mode == "dev" && r.DeviceID == "d1" &&
				r.HasKey() && *r.Key == "K1" && r.Debug &&
				string(r.Payload) == `{"alert":"hi"}`
		})).Return(push.OK())

		apiHandler.SendGoogle(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"status": "ok"}, decodeBody(t, w))
		mockRelay.AssertExpectations(t)
	})

	t.Run("Absent and null keys are not supplied", func(t *testing.T) {
		for _, body := range []string{
			`{"appId":"app1","mode":"dev","deviceId":"d1","notification":{}}`,
			`{"appId":"app1","mode":"dev","deviceId":"d1","key":null,"notification":{}}`,
		} {
			apiHandler, mockRelay := setupAPI(t)
			req := httptest.NewRequest("POST", "/api/v1/push/google", bytes.NewReader([]byte(body)))
			w := httptest.NewRecorder()

			mockRelay.On("Handle", mock.Anything, mock.MatchedBy(func(r push.Request) bool {
				return !r.HasKey()
			})).Return(push.Err(push.MissingKey, nil))

			apiHandler.SendGoogle(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, map[string]any{"status": "error", "error": "Missing Key"}, decodeBody(t, w))
			mockRelay.AssertExpectations(t)
		}
	})

	t.Run("Invalid device ids are echoed", func(t *testing.T) {
		apiHandler, mockRelay := setupAPI(t)
		body := `{"appId":"app1","mode":"dev","deviceId":"d1","notification":{}}`
		req := httptest.NewRequest("POST", "/api/v1/push/google", bytes.NewReader([]byte(body)))
		w := httptest.NewRecorder()

		mockRelay.On("Handle", mock.Anything, mock.Anything).
			Return(push.Err(push.InvalidDeviceID, []string{"d1"}))

		apiHandler.SendGoogle(w, req)

		assert.Equal(t, map[string]any{
			"status":     "error",
			"error":      "Invalid Device ID",
			"invalidIds": []any{"d1"},
		}, decodeBody(t, w))
	})

	t.Run("Rejects Malformed JSON", func(t *testing.T) {
		apiHandler, mockRelay := setupAPI(t)
		req := httptest.NewRequest("POST", "/api/v1/push/google", bytes.NewReader([]byte(`{"appId":`)))
		w := httptest.NewRecorder()

		apiHandler.SendGoogle(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRelay.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("Rejects Missing Device", func(t *testing.T) {
		apiHandler, mockRelay := setupAPI(t)
		req := httptest.NewRequest("POST", "/api/v1/push/google",
			bytes.NewReader([]byte(`{"appId":"app1","mode":"dev","notification":{}}`)))
		w := httptest.NewRecorder()

		apiHandler.SendGoogle(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRelay.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})
}

func TestEnvelope(t *testing.T) {
	assert.Equal(t, map[string]any{"status": "ok"}, api.Envelope(push.OK()))
	assert.Equal(t,
		map[string]any{"status": "error", "error": "Updated Device ID", "updatedIds": []string{"d9"}},
		api.Envelope(push.Err(push.UpdatedDeviceID, []string{"d9"})))
	assert.Equal(t,
		map[string]any{"status": "error", "error": "Unknown Error", "detail": "boom"},
		api.Envelope(push.Err(push.UnknownError, "boom")))
	assert.Equal(t,
		map[string]any{"status": "error", "error": "Internal Server Error"},
		api.Envelope(push.Err(push.InternalServerError, nil)))
}
