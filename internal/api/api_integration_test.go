package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/console"
	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/repository"
	"github.com/wfunc/uart-console/internal/service"
	"github.com/wfunc/uart-console/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(input string) error {
	return m.Called(input).Error(0)
}

// APITestSuite 监控接口测试套件
type APITestSuite struct {
	suite.Suite
	db        *gorm.DB
	journal   *service.SerialLogService
	submitter *mockSubmitter
	hub       *websocket.Hub
	router    *Router
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.db = repository.SetupTestDB()
	s.journal = service.NewSerialLogService(s.db, config.JournalConfig{FlushInterval: time.Hour}, "/dev/ttyACM0")
	s.submitter = new(mockSubmitter)
	status := func() string { return "3" }
	s.hub = websocket.NewHub(zap.NewNop(), status, s.submitter)
	s.router = NewRouter(Dependencies{
		Status:    status,
		Commander: s.submitter,
		Journal:   s.journal,
		Hub:       s.hub,
	})
}

func (s *APITestSuite) TearDownTest() {
	s.journal.Close()
	repository.CleanupTestDB(s.db)
}

func (s *APITestSuite) do(method, target, body, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.router.Engine().ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *APITestSuite) seed() {
	s.journal.RecordSent([]byte("S"), console.SourceStartup, nil)
	s.journal.RecordReceived('2', "2")
	s.journal.RecordSent([]byte("A"), console.SourceConsole, nil)
	s.journal.RecordReceived('F', "2")
	s.journal.RecordRejected("AB", console.SourceMonitor)
	s.journal.Flush()
}

func (s *APITestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("healthy", s.decode(w)["status"])
}

func (s *APITestSuite) TestStatus() {
	w := s.do(http.MethodGet, "/api/v1/status", "", "")
	s.Require().Equal(http.StatusOK, w.Code)

	resp := s.decode(w)
	s.Equal("3", resp["status"])
	s.Equal(float64(0), resp["online_clients"])
}

func (s *APITestSuite) TestSubmitCommand() {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"accepted", `{"command":"A"}`, nil, http.StatusAccepted},
		{"multiple chars", `{"command":"AB"}`, errors.New(errors.ErrInvalidInput), http.StatusBadRequest},
		{"exit", `{"command":"X"}`, errors.New(errors.ErrExitCommand), http.StatusBadRequest},
		{"serial failure", `{"command":"D"}`, errors.New(errors.ErrSerialPortWrite), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			var req CommandRequest
			s.Require().NoError(json.Unmarshal([]byte(tt.body), &req))
			s.submitter.On("Submit", req.Command).Return(tt.err).Once()

			w := s.do(http.MethodPost, "/api/v1/commands", tt.body, "application/json")
			s.Equal(tt.code, w.Code)
			resp := s.decode(w)
			s.Equal(tt.err == nil, resp["success"])
		})
	}
	s.submitter.AssertExpectations(s.T())
}

func (s *APITestSuite) TestSubmitCommandBadJSON() {
	w := s.do(http.MethodPost, "/api/v1/commands", "{", "application/json")
	s.Equal(http.StatusBadRequest, w.Code)
	s.submitter.AssertNotCalled(s.T(), "Submit", mock.Anything)
}

func (s *APITestSuite) TestQueryLogs() {
	s.seed()

	w := s.do(http.MethodGet, "/api/v1/serial-logs?direction=SEND&order_by=created_at+ASC", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal(float64(2), resp["total"])

	data := resp["data"].([]interface{})
	s.Require().Len(data, 2)
	s.Equal("S", data[0].(map[string]interface{})["payload"])

	w = s.do(http.MethodGet, "/api/v1/serial-logs?kind=FAILURE", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), s.decode(w)["total"])

	w = s.do(http.MethodGet, "/api/v1/serial-logs?limit=abc", "", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestLatestAndStats() {
	s.seed()

	w := s.do(http.MethodGet, "/api/v1/serial-logs/latest?limit=2", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), s.decode(w)["count"])

	w = s.do(http.MethodGet, "/api/v1/serial-logs/stats", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal(s.journal.SessionID(), resp["session_id"])
	stats := resp["data"].(map[string]interface{})
	s.Equal(float64(5), stats["total_count"])

	w = s.do(http.MethodGet, "/api/v1/serial-logs/stats?start_time=yesterday", "", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestSessionLogs() {
	s.seed()

	w := s.do(http.MethodGet, "/api/v1/serial-logs/session/"+s.journal.SessionID(), "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal(float64(5), resp["count"])
	data := resp["data"].([]interface{})
	s.Equal("S", data[0].(map[string]interface{})["payload"])

	w = s.do(http.MethodGet, "/api/v1/serial-logs/session/unknown", "", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.NotContains(w.Body.String(), "stack")
}

func (s *APITestSuite) TestExportAndCleanup() {
	s.seed()

	w := s.do(http.MethodGet, "/api/v1/serial-logs/export", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Disposition"), "serial_logs_export.json")
	var logs []map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &logs))
	s.Len(logs, 5)

	form := url.Values{"retention_days": {"0"}}.Encode()
	w = s.do(http.MethodPost, "/api/v1/serial-logs/cleanup", form, "application/x-www-form-urlencoded")
	s.Equal(http.StatusBadRequest, w.Code)

	form = url.Values{"retention_days": {"7"}}.Encode()
	w = s.do(http.MethodPost, "/api/v1/serial-logs/cleanup", form, "application/x-www-form-urlencoded")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(0), s.decode(w)["deleted"])
}

func (s *APITestSuite) TestWebSocketRoute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	server := httptest.NewServer(s.router.Engine())
	defer server.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var msg websocket.Message
	s.Require().NoError(conn.ReadJSON(&msg))
	s.Equal(websocket.MessageTypeConnected, msg.Type)

	s.Eventually(func() bool {
		w := s.do(http.MethodGet, "/api/v1/status", "", "")
		return s.decode(w)["online_clients"] == float64(1)
	}, time.Second, 10*time.Millisecond)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestRouterWithoutJournal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Dependencies{Status: func() string { return console.UnknownStatus }})

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/api/v1/serial-logs", http.StatusNotImplemented},
		{http.MethodGet, "/api/v1/serial-logs/stats", http.StatusNotImplemented},
		{http.MethodPost, "/api/v1/commands", http.StatusNotImplemented},
		{http.MethodGet, "/ws", http.StatusNotFound},
		{http.MethodGet, "/api/v1/status", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.Engine().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestServerStartShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Dependencies{Status: func() string { return "1" }})
	server := NewServer(config.MonitorConfig{Host: "127.0.0.1", Port: 0}, router.Engine(), zap.NewNop())

	require.NoError(t, server.Start())
	require.NotEmpty(t, server.Addr())

	resp, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Shutdown(context.Background()))

	_, err = http.Get("http://" + server.Addr() + "/health")
	assert.Error(t, err)
}

func TestServerStartInvalidAddr(t *testing.T) {
	server := NewServer(config.MonitorConfig{Host: "127.0.0.1", Port: -1}, http.NotFoundHandler(), zap.NewNop())
	err := server.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigValidate))
}
