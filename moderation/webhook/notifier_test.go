package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

type captureServer struct {
	mu       sync.Mutex
	payloads []Payload
	server   *httptest.Server
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()
	cs := &captureServer{}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("webhook body did not decode: %v", err)
		}
		cs.mu.Lock()
		cs.payloads = append(cs.payloads, p)
		cs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(cs.server.Close)
	return cs
}

func (cs *captureServer) received() []Payload {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]Payload, len(cs.payloads))
	copy(out, cs.payloads)
	return out
}

func (cs *captureServer) waitFor(t *testing.T, want int) []Payload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := cs.received(); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("webhook received %d payloads, want %d", len(cs.received()), want)
	return nil
}

func webhookConfig(url string) *config.ModerationServiceConfig {
	return &config.ModerationServiceConfig{
		OriginServer:   "test",
		WebhookEnabled: true,
		WebhookURL:     url,
		WebhookBans:    true,
		WebhookMutes:   true,
		WebhookKicks:   false,
		WebhookWarns:   false,
		WebhookFreezes: true,
	}
}

func TestNotifierDeliversBan(t *testing.T) {
	cs := newCaptureServer(t)
	n := NewNotifier(webhookConfig(cs.server.URL))
	n.Start()
	defer n.Stop()

	p := models.NewPunishment("player-1", "Steve", "staff-1", "Alex", models.KindTempBan, "griefing", timeutil.Day, "test")
	n.PunishmentIssued(p)

	got := cs.waitFor(t, 1)
	if got[0].Event != "punishment_issued" || got[0].Kind != "TEMP_BAN" {
		t.Fatalf("payload = %+v", got[0])
	}
	if got[0].Duration != "1d" {
		t.Errorf("duration = %q, want 1d", got[0].Duration)
	}
	if got[0].Server != "test" {
		t.Errorf("server = %q, want test", got[0].Server)
	}
}

func TestNotifierGatesDisabledKinds(t *testing.T) {
	cs := newCaptureServer(t)
	n := NewNotifier(webhookConfig(cs.server.URL))
	n.Start()

	// Kicks and warns are off in the test config; only the mute lands.
	n.PunishmentIssued(models.NewPunishment("player-1", "Steve", "staff-1", "Alex", models.KindKick, "afk", 0, "test"))
	n.PunishmentIssued(models.NewPunishment("player-1", "Steve", "staff-1", "Alex", models.KindWarn, "spam", 0, "test"))
	n.PunishmentIssued(models.NewPunishment("player-1", "Steve", "staff-1", "Alex", models.KindMute, "spam", models.PermanentDuration, "test"))
	n.Stop() // drains the queue

	got := cs.received()
	if len(got) != 1 {
		t.Fatalf("payloads = %d, want 1 (gated kinds dropped)", len(got))
	}
	if got[0].Kind != "MUTE" || got[0].Duration != "permanent" {
		t.Fatalf("payload = %+v", got[0])
	}
}

func TestNotifierRevokedAndFreeze(t *testing.T) {
	cs := newCaptureServer(t)
	n := NewNotifier(webhookConfig(cs.server.URL))
	n.Start()

	n.PunishmentRevoked(models.CategoryBan, "player-1", "Alex")
	n.FreezeToggled("player-1", "Steve", "Alex", true)
	n.Stop()

	got := cs.received()
	if len(got) != 2 {
		t.Fatalf("payloads = %d, want 2", len(got))
	}
	if got[0].Event != "punishment_revoked" || got[0].Category != "ban" {
		t.Fatalf("payload[0] = %+v", got[0])
	}
	if got[1].Event != "freeze_toggled" || !got[1].Frozen {
		t.Fatalf("payload[1] = %+v", got[1])
	}
}
