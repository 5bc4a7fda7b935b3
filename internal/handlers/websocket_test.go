package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"controlling_dehumidifier/internal/models"
	"controlling_dehumidifier/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil)

	cases := []struct {
		query string
		want  time.Duration
	}{
		{"", defaultInterval},
		{"interval=200ms", 200 * time.Millisecond},
		{"interval_ms=150", 150 * time.Millisecond},
		{"interval=10s", maxInterval},
		{"interval=20s", defaultInterval},
		{"interval=-1s", defaultInterval},
		{"interval_ms=20000", defaultInterval},
		{"interval=bogus", defaultInterval},
		{"interval_ms=NaN", defaultInterval},
		{"interval=2s&interval_ms=150", 2 * time.Second},
		{"interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/ws?"+tc.query, nil)
		if got := h.parseInterval(c); got != tc.want {
			t.Fatalf("?%s: got %v, want %v", tc.query, got, tc.want)
		}
	}
}

type wsFrame struct {
	Type    string               `json:"type"`
	Data    json.RawMessage      `json:"data"`
	Changes []models.FieldChange `json:"changes"`
	Error   string               `json:"error"`
}

func wsURL(srv *httptest.Server, query string) string {
	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = query
	return u.String()
}

// dialStream serves wsConnect alone, without the auth middleware.
func dialStream(t *testing.T, s *service.Service, query string) *websocket.Conn {
	t.Helper()
	r := gin.New()
	r.GET("/ws", NewHandler(s, nil).wsConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := (&websocket.Dialer{HandshakeTimeout: 2 * time.Second}).Dial(wsURL(srv, query), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestWebSocket_StateStream_InitialAndPeriodic(t *testing.T) {
	mon := &mockMonitoring{state: models.DeviceSnapshot{
		DeviceState: models.DeviceState{
			PowerOn:          true,
			Mode:             models.ModeContinuous,
			FanSpeed:         models.FanSpeedHigh,
			HumiditySetpoint: 50,
			CurrentHumidity:  63,
		},
		Source:     models.SourceSimulator,
		ObservedAt: time.Now().UTC(),
	}}
	conn := dialStream(t, &service.Service{Monitoring: mon}, "interval_ms=20")

	first := readFrame(t, conn)
	if first.Type != msgTypeState || len(first.Changes) != 0 {
		t.Fatalf("bad first frame: %+v", first)
	}
	var snap models.DeviceSnapshot
	if err := json.Unmarshal(first.Data, &snap); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if snap.DeviceState != mon.state.DeviceState || snap.Source != models.SourceSimulator {
		t.Fatalf("unexpected state: %+v", snap)
	}

	// without changes_only an unchanged record is still pushed every tick
	if next := readFrame(t, conn); next.Type != msgTypeState || len(next.Changes) != 0 {
		t.Fatalf("bad periodic frame: %+v", next)
	}
}

func TestWebSocket_ChangesOnlySkipsIdenticalFrames(t *testing.T) {
	base := models.DeviceState{
		PowerOn: true, Mode: models.ModeSetpoint, FanSpeed: models.FanSpeedMedium,
		HumiditySetpoint: 45, CurrentHumidity: 60,
	}
	smart := base
	smart.Mode = models.ModeSmart

	mon := &mockMonitoring{seq: []models.DeviceSnapshot{
		{DeviceState: base},
		{DeviceState: base},
		{DeviceState: base},
		{DeviceState: smart},
	}}
	conn := dialStream(t, &service.Service{Monitoring: mon}, "interval_ms=20&changes_only=true")

	first := readFrame(t, conn)
	if first.Type != msgTypeState || len(first.Changes) != 0 {
		t.Fatalf("first frame: %+v", first)
	}

	second := readFrame(t, conn)
	if second.Type != msgTypeState || len(second.Changes) != 1 {
		t.Fatalf("second frame should carry exactly the mode change: %+v", second)
	}
	ch := second.Changes[0]
	if ch.Field != models.FieldMode || ch.From != "SETPOINT" || ch.To != "SMART" {
		t.Fatalf("unexpected change: %+v", ch)
	}
}

func TestWebSocket_GetStateError_SendsErrorFrame(t *testing.T) {
	mon := &mockMonitoring{err: errors.New("boom")}
	conn := dialStream(t, &service.Service{Monitoring: mon}, "interval_ms=20")

	// The stream stays open and reports the failure on every tick.
	for i := 0; i < 2; i++ {
		f := readFrame(t, conn)
		if f.Type != msgTypeError || f.Error != errGetState || len(f.Data) != 0 {
			t.Fatalf("frame %d: %+v", i, f)
		}
	}
}

func TestWebSocket_QueryTokenThroughRouter(t *testing.T) {
	auth := &mockAuth{parseID: 1}
	mon := &mockMonitoring{state: models.DeviceSnapshot{DeviceState: models.DeviceState{
		Mode: models.ModeSmart, FanSpeed: models.FanSpeedLow, HumiditySetpoint: 40, CurrentHumidity: 55,
	}}}
	srv := httptest.NewServer(newTestRouter(&service.Service{Authorization: auth, Monitoring: mon}))
	t.Cleanup(srv.Close)
	dialer := &websocket.Dialer{HandshakeTimeout: 2 * time.Second}

	if _, resp, err := dialer.Dial(wsURL(srv, ""), nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token: err=%v resp=%v", err, resp)
	}

	conn, _, err := dialer.Dial(wsURL(srv, "access_token=abc&interval_ms=50"), nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if f := readFrame(t, conn); f.Type != msgTypeState {
		t.Fatalf("frame: %+v", f)
	}
}
