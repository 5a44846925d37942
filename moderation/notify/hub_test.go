package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
)

func dialHub(t *testing.T, server *httptest.Server, uuid, name string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?uuid=" + uuid + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("failed to decode event %q: %v", data, err)
	}
	return ev
}

func waitForStaffCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(hub.OnlineStaff()) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("online staff = %d, want %d", len(hub.OnlineStaff()), want)
}

func TestHubRejectsMissingUUID(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHubBroadcastsPunishment(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	conn := dialHub(t, server, "staff-1", "Alex")
	waitForStaffCount(t, hub, 1)

	p := models.NewPunishment("player-1", "Steve", "staff-1", "Alex", models.KindTempBan, "griefing", 1000, "main")
	hub.PunishmentIssued(p)

	ev := readEvent(t, conn)
	if ev.Type != "punishment_issued" {
		t.Fatalf("event type = %q", ev.Type)
	}
	if ev.PlayerUUID != "player-1" || ev.Kind != "TEMP_BAN" || ev.Reason != "griefing" {
		t.Fatalf("event = %+v, missing punishment fields", ev)
	}
	if ev.At == 0 {
		t.Error("event timestamp not set")
	}
}

func TestHubFanOutAndStaffChat(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	alex := dialHub(t, server, "staff-1", "Alex")
	mallory := dialHub(t, server, "staff-2", "Mallory")
	waitForStaffCount(t, hub, 2)

	hub.StaffChat(hub.OnlineStaff()[0], "checking player-1")

	for _, conn := range []*websocket.Conn{alex, mallory} {
		ev := readEvent(t, conn)
		if ev.Type != "staff_chat" || ev.Message != "checking player-1" {
			t.Fatalf("event = %+v, want the staff chat line", ev)
		}
	}
}

func TestHubOnlineStaffTracksDisconnects(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	conn := dialHub(t, server, "staff-1", "Alex")
	waitForStaffCount(t, hub, 1)

	staff := hub.OnlineStaff()
	if staff[0].UUID != "staff-1" || staff[0].Name != "Alex" {
		t.Fatalf("OnlineStaff = %v", staff)
	}

	conn.Close()
	waitForStaffCount(t, hub, 0)
}
