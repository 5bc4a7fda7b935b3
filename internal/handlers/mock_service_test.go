package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockControl struct {
	powerOnErr  error
	powerOffErr error
	setModeErr  error
	setFanErr   error

	powerOnCalls  int
	powerOffCalls int
	setModeCalls  int
	setFanCalls   int
	lastSetMode   service.ModeParams
	lastFan       models.FanSpeed
}

func (m *mockControl) PowerOn(ctx context.Context) error {
	m.powerOnCalls++
	return m.powerOnErr
}
func (m *mockControl) PowerOff(ctx context.Context) error {
	m.powerOffCalls++
	return m.powerOffErr
}
func (m *mockControl) SetMode(ctx context.Context, p service.ModeParams) error {
	m.setModeCalls++
	m.lastSetMode = p
	return m.setModeErr
}
func (m *mockControl) SetFanSpeed(ctx context.Context, fan models.FanSpeed) error {
	m.setFanCalls++
	m.lastFan = fan
	return m.setFanErr
}

// mockMonitoring returns state, or walks seq and then repeats its last entry.
type mockMonitoring struct {
	mu    sync.Mutex
	state models.DeviceSnapshot
	seq   []models.DeviceSnapshot
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.DeviceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seq) > 0 {
		m.state = m.seq[0]
		if len(m.seq) > 1 {
			m.seq = m.seq[1:]
		}
	}
	return m.state, m.err
}

type mockIngestion struct {
	err        error
	calls      int
	lastState  models.DeviceState
	lastSource string
}

func (m *mockIngestion) Ingest(ctx context.Context, st models.DeviceState, source string) (models.DeviceSnapshot, error) {
	m.calls++
	m.lastState = st
	m.lastSource = source
	if m.err != nil {
		return models.DeviceSnapshot{}, m.err
	}
	return models.DeviceSnapshot{DeviceState: st, Source: source, ObservedAt: time.Now().UTC()}, nil
}

type mockEventLog struct {
	resp     []models.DeviceEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	lastLim  int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLim = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
