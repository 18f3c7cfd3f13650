package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
	"github.com/maysaraadmin/moodle-analytics/internal/dto"
	"github.com/maysaraadmin/moodle-analytics/internal/service"
	"github.com/maysaraadmin/moodle-analytics/internal/snapshot"
)

const (
	testTimestamp int64 = 1766702551
)

// MockEventService is a mock implementation of service.EventServicer
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ProcessEvent(ctx context.Context, event *dto.PublishEventRequest) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEventService) ProcessBulkEvents(ctx context.Context, events []dto.PublishEventRequest) ([]int64, []string, error) {
	args := m.Called(ctx, events)
	return args.Get(0).([]int64), args.Get(1).([]string), args.Error(2)
}

func (m *MockEventService) GetMetrics(ctx context.Context, req *dto.GetMetricsRequest) (*dto.GetMetricsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.GetMetricsResponse), args.Error(1)
}

// MockAnalyticsService is a mock implementation of service.AnalyticsServicer
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) Analyze(ctx context.Context, overrides service.OptionOverrides) (*service.Analysis, error) {
	args := m.Called(ctx, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Analysis), args.Error(1)
}

func (m *MockAnalyticsService) Table(ctx context.Context, name string, overrides service.OptionOverrides) (*service.Analysis, analytics.Table, error) {
	args := m.Called(ctx, name, overrides)
	if args.Get(0) == nil {
		return nil, analytics.Table{}, args.Error(2)
	}
	return args.Get(0).(*service.Analysis), args.Get(1).(analytics.Table), args.Error(2)
}

func (m *MockAnalyticsService) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

type stubChecker struct {
	err error
}

func (s stubChecker) Ping(context.Context) error {
	return s.err
}

func newTestHandler(eventService service.EventServicer, analyticsService service.AnalyticsServicer) *Handler {
	return NewHandler(analyticsService, eventService, nil, []string{"*"}, zap.NewNop())
}

func viewedRequest() dto.PublishEventRequest {
	return dto.PublishEventRequest{
		EventName: `\core\event\course_viewed`,
		Component: "core",
		CourseID:  "MATH101",
		UserID:    42,
		Timestamp: testTimestamp,
	}
}

func TestHandler_HealthCheck(t *testing.T) {
	handler := newTestHandler(new(MockEventService), new(MockAnalyticsService))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.HealthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "ok", response.Status)
	assert.Empty(t, response.Checks)
}

func TestHandler_HealthCheck_Dependencies(t *testing.T) {
	checks := map[string]HealthChecker{
		"clickhouse": stubChecker{},
		"moodle":     stubChecker{err: errors.New("connection refused")},
	}
	handler := NewHandler(new(MockAnalyticsService), nil, checks, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response dto.HealthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "degraded", response.Status)
	assert.Equal(t, "ok", response.Checks["clickhouse"])
	assert.Equal(t, "connection refused", response.Checks["moodle"])
}

func TestHandler_CORS(t *testing.T) {
	handler := NewHandler(new(MockAnalyticsService), nil, nil, []string{"https://lms.example.edu"}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://lms.example.edu")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://lms.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_EventRoutesDisabled(t *testing.T) {
	handler := newTestHandler(nil, new(MockAnalyticsService))

	body, _ := json.Marshal(viewedRequest())
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_SwaggerDoc(t *testing.T) {
	handler := newTestHandler(nil, new(MockAnalyticsService))

	req := httptest.NewRequest(http.MethodGet, "/docs/doc.json", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &doc)
	assert.NoError(t, err)
	assert.Equal(t, "Moodle Analytics API", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/analysis/{table}")
	assert.Contains(t, doc.Paths, "/events/bulk")
}

func TestHandler_PublishEvent_Success(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	eventReq := viewedRequest()

	mockService.On("ProcessEvent", mock.Anything, &eventReq).Return(int64(123456789), nil)

	body, _ := json.Marshal(eventReq)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response dto.PublishEventResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, int64(123456789), response.EventID)
	assert.Equal(t, "accepted", response.Status)
	mockService.AssertExpectations(t)
}

func TestHandler_PublishEvent_InvalidJSON(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	invalidJSON := []byte(`{"event_name": "test", invalid}`)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(invalidJSON))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "validation_error", response.Error)
	mockService.AssertNotCalled(t, "ProcessEvent")
}

func TestHandler_PublishEvent_MissingRequiredFields(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	eventReq := dto.PublishEventRequest{
		EventName: `\core\event\course_viewed`,
		// Missing required fields: Component, CourseID, UserID, Timestamp
	}

	body, _ := json.Marshal(eventReq)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "validation_error", response.Error)
	mockService.AssertNotCalled(t, "ProcessEvent")
}

func TestHandler_PublishEvent_FutureTimestamp(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	eventReq := viewedRequest()
	mockService.On("ProcessEvent", mock.Anything, &eventReq).
		Return(int64(0), fmt.Errorf("%w: timestamp cannot be in the future", service.ErrValidation))

	body, _ := json.Marshal(eventReq)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "validation_error", response.Error)
	assert.Contains(t, response.Message, "timestamp cannot be in the future")
}

func TestHandler_PublishEvent_ServiceError(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	eventReq := viewedRequest()

	serviceErr := errors.New("queue publish error")
	mockService.On("ProcessEvent", mock.Anything, &eventReq).Return(int64(0), serviceErr)

	body, _ := json.Marshal(eventReq)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "internal_error", response.Error)
	assert.Contains(t, response.Message, "queue publish error")
	mockService.AssertExpectations(t)
}

func TestHandler_PublishEventsBulk_Success(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	first, second := viewedRequest(), viewedRequest()
	second.UserID = 43
	bulkReq := dto.PublishEventsBulkRequest{Events: []dto.PublishEventRequest{first, second}}

	mockService.On("ProcessBulkEvents", mock.Anything, bulkReq.Events).
		Return([]int64{1, 2}, []string{}, nil)

	body, _ := json.Marshal(bulkReq)
	req := httptest.NewRequest(http.MethodPost, "/events/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response dto.PublishBulkEventsResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, 2, response.Accepted)
	assert.Equal(t, 0, response.Rejected)
	assert.Equal(t, []int64{1, 2}, response.EventIDs)
	mockService.AssertExpectations(t)
}

func TestHandler_PublishEventsBulk_PartialSuccess(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	first, second := viewedRequest(), viewedRequest()
	second.Timestamp = 2556144000
	bulkReq := dto.PublishEventsBulkRequest{Events: []dto.PublishEventRequest{first, second}}

	mockService.On("ProcessBulkEvents", mock.Anything, bulkReq.Events).
		Return([]int64{1}, []string{"event 1: timestamp cannot be in the future"}, nil)

	body, _ := json.Marshal(bulkReq)
	req := httptest.NewRequest(http.MethodPost, "/events/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response dto.PublishBulkEventsResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, 1, response.Accepted)
	assert.Equal(t, 1, response.Rejected)
	assert.Len(t, response.Errors, 1)
	mockService.AssertExpectations(t)
}

func TestHandler_PublishEventsBulk_InvalidRequest(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	invalidJSON := []byte(`{"events": [{"invalid"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/events/bulk", bytes.NewReader(invalidJSON))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "validation_error", response.Error)
	mockService.AssertNotCalled(t, "ProcessBulkEvents")
}

func TestHandler_PublishEventsBulk_EmptyEvents(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	bulkReq := dto.PublishEventsBulkRequest{
		Events: []dto.PublishEventRequest{},
	}

	body, _ := json.Marshal(bulkReq)
	req := httptest.NewRequest(http.MethodPost, "/events/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "validation_error", response.Error)
	mockService.AssertNotCalled(t, "ProcessBulkEvents")
}

func TestHandler_GetMetrics_Success(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	expectedResponse := &dto.GetMetricsResponse{
		CourseID:    "MATH101",
		From:        1723475612,
		To:          1723562012,
		TotalCount:  1000,
		UniqueCount: 500,
		GroupBy:     "component",
		Groups: []dto.MetricsGroupData{
			{GroupValue: "mod_forum", TotalCount: 600},
			{GroupValue: "mod_quiz", TotalCount: 400},
		},
	}

	mockService.On("GetMetrics", mock.Anything, &dto.GetMetricsRequest{
		CourseID: "MATH101",
		From:     1723475612,
		To:       1723562012,
		GroupBy:  "component",
	}).Return(expectedResponse, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics?course_id=MATH101&from=1723475612&to=1723562012&group_by=component", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.GetMetricsResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), response.TotalCount)
	assert.Len(t, response.Groups, 2)
	assert.Equal(t, "mod_forum", response.Groups[0].GroupValue)
	mockService.AssertExpectations(t)
}

func TestHandler_GetMetrics_InvalidQueryParams(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	req := httptest.NewRequest(http.MethodGet, "/metrics?event_name=x&from=abc", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "validation_error", response.Error)
	mockService.AssertNotCalled(t, "GetMetrics")
}

func TestHandler_GetMetrics_InvalidGroupBy(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	mockService.On("GetMetrics", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: invalid group_by value: week", service.ErrValidation))

	req := httptest.NewRequest(http.MethodGet, "/metrics?from=1723475612&to=1723562012&group_by=week", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_GetMetrics_ServiceError(t *testing.T) {
	mockService := new(MockEventService)
	handler := newTestHandler(mockService, new(MockAnalyticsService))

	mockService.On("GetMetrics", mock.Anything, mock.Anything).Return(nil, errors.New("database error"))

	req := httptest.NewRequest(http.MethodGet, "/metrics?from=1723475612&to=1723562012", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "internal_error", response.Error)
	mockService.AssertExpectations(t)
}
