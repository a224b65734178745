package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// apiPrefix is the REST root the client is pointed at.
const apiPrefix = "/rest/api/2"

// Jira operations served by MockJira, keyed the same way the client labels
// its requests.
const (
	OpMyself         = "myself"
	OpGetProjects    = "get_projects"
	OpGetProject     = "get_project"
	OpGetComponents  = "get_project_components"
	OpSearch         = "search_issues"
	OpGetIssue       = "get_issue"
	OpCreateIssue    = "create_issue"
	OpUpdateIssue    = "update_issue"
	OpGetTransitions = "get_transitions"
	OpTransition     = "transition_issue"
	OpAddComment     = "add_comment"
)

var jiraRoutes = map[string]string{
	OpMyself:         "GET " + apiPrefix + "/myself",
	OpGetProjects:    "GET " + apiPrefix + "/project",
	OpGetProject:     "GET " + apiPrefix + "/project/{key}",
	OpGetComponents:  "GET " + apiPrefix + "/project/{key}/components",
	OpSearch:         "POST " + apiPrefix + "/search",
	OpGetIssue:       "GET " + apiPrefix + "/issue/{key}",
	OpCreateIssue:    "POST " + apiPrefix + "/issue",
	OpUpdateIssue:    "PUT " + apiPrefix + "/issue/{key}",
	OpGetTransitions: "GET " + apiPrefix + "/issue/{key}/transitions",
	OpTransition:     "POST " + apiPrefix + "/issue/{key}/transitions",
	OpAddComment:     "POST " + apiPrefix + "/issue/{key}/comment",
}

// MockJira is an HTTP test server that answers the Jira REST endpoints the
// client uses. Responses are queued per operation and every request is
// recorded for later assertion.
type MockJira struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.RWMutex
	operations map[string]*operationConfig
	received   map[string][]*RecordedRequest
}

// RecordedRequest captures the details of a request received by the mock.
type RecordedRequest struct {
	Method     string
	Path       string
	PathKey    string
	Headers    http.Header
	Body       map[string]any
	RawBody    []byte
	ReceivedAt time.Time
}

type operationConfig struct {
	mu        sync.Mutex
	responses []*mockResponse
	current   int
}

type mockResponse struct {
	status     int
	body       any
	delay      time.Duration
	connError  bool
	headerFunc func(http.Header)
}

// OperationMock configures the responses for one operation.
type OperationMock struct {
	mock *MockJira
	op   string
}

func newMockJira(t *testing.T) *MockJira {
	t.Helper()

	m := &MockJira{
		t:          t,
		operations: make(map[string]*operationConfig),
		received:   make(map[string][]*RecordedRequest),
	}

	mux := http.NewServeMux()
	for op, pattern := range jiraRoutes {
		mux.HandleFunc(pattern, m.handleOperation(op))
	}
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// APIURL returns the REST root to configure the client with.
func (m *MockJira) APIURL() string {
	return m.server.URL + apiPrefix
}

// On returns a builder for the named operation.
func (m *MockJira) On(op string) *OperationMock {
	return &OperationMock{mock: m, op: op}
}

// RespondWith queues a JSON response.
func (om *OperationMock) RespondWith(status int, body any) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{status: status, body: body})
	return om
}

// RespondWithError queues a Jira error body.
func (om *OperationMock) RespondWithError(status int, messages ...string) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{
		status: status,
		body:   map[string]any{"errorMessages": messages, "errors": map[string]string{}},
	})
	return om
}

// RespondWithDelay queues a delayed response to simulate a slow Jira.
func (om *OperationMock) RespondWithDelay(delay time.Duration, status int, body any) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{status: status, body: body, delay: delay})
	return om
}

// RespondWithConnectionError queues a response that drops the connection.
func (om *OperationMock) RespondWithConnectionError() *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{connError: true})
	return om
}

// RespondWithHeaders queues a response with additional headers.
func (om *OperationMock) RespondWithHeaders(status int, body any, headerFunc func(http.Header)) *OperationMock {
	om.mock.addResponse(om.op, &mockResponse{status: status, body: body, headerFunc: headerFunc})
	return om
}

func (m *MockJira) addResponse(op string, resp *mockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.operations[op]
	if !ok {
		cfg = &operationConfig{}
		m.operations[op] = cfg
	}
	cfg.responses = append(cfg.responses, resp)
}

func (m *MockJira) handleOperation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &RecordedRequest{
			Method:     r.Method,
			Path:       r.URL.Path,
			PathKey:    r.PathValue("key"),
			Headers:    r.Header.Clone(),
			ReceivedAt: time.Now(),
		}
		if r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			rec.RawBody = body
			if len(body) > 0 {
				var parsed map[string]any
				if err := json.Unmarshal(body, &parsed); err == nil {
					rec.Body = parsed
				}
			}
		}

		m.mu.Lock()
		m.received[op] = append(m.received[op], rec)
		m.mu.Unlock()

		resp := m.nextResponse(op)
		if resp == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errorMessages": []string{"mock: no response configured for " + op},
			})
			return
		}

		if resp.connError {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, _ := hj.Hijack(); conn != nil {
					_ = conn.Close()
				}
			}
			return
		}
		if resp.delay > 0 {
			select {
			case <-time.After(resp.delay):
			case <-r.Context().Done():
				return
			}
		}
		if resp.headerFunc != nil {
			resp.headerFunc(w.Header())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		if resp.body != nil {
			_ = json.NewEncoder(w).Encode(resp.body)
		}
	}
}

// nextResponse returns the next queued response. The last one repeats.
func (m *MockJira) nextResponse(op string) *mockResponse {
	m.mu.RLock()
	cfg, ok := m.operations[op]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	if len(cfg.responses) == 0 {
		return nil
	}
	idx := cfg.current
	if idx >= len(cfg.responses) {
		idx = len(cfg.responses) - 1
	} else {
		cfg.current++
	}
	return cfg.responses[idx]
}

// Calls returns how many requests the operation received.
func (m *MockJira) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.received[op])
}

// AssertCalled verifies the number of requests the operation received.
func (m *MockJira) AssertCalled(t *testing.T, op string, expected int) {
	t.Helper()
	if actual := m.Calls(op); actual != expected {
		t.Errorf("mock jira: %q called %d times, want %d", op, actual, expected)
	}
}

// LastRequest returns the last request received for the operation, or nil.
func (m *MockJira) LastRequest(op string) *RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reqs := m.received[op]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// Reset clears the queued responses and recorded requests of an operation.
func (m *MockJira) Reset(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, op)
	delete(m.received, op)
}
