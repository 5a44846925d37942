// moderation/webhook/notifier.go
package webhook

import (
	"context"
	"log"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/api"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

// Payload is the JSON body posted to the configured webhook endpoint.
type Payload struct {
	Event      string `json:"event"`
	At         int64  `json:"at"` // ms since epoch
	PlayerUUID string `json:"player_uuid,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	StaffName  string `json:"staff_name,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Category   string `json:"category,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Duration   string `json:"duration,omitempty"` // human readable, "permanent" for -1
	Frozen     bool   `json:"frozen,omitempty"`
	Server     string `json:"server,omitempty"`
}

// Notifier posts moderation events to an external webhook, best effort. It is
// an event sink: engine calls only enqueue, a single sender goroutine does the
// HTTP work, and a full queue drops the event rather than slowing the engine.
type Notifier struct {
	cfg      *config.ModerationServiceConfig
	client   *api.Client
	queue    chan Payload
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewNotifier creates a Notifier posting to cfg.WebhookURL.
func NewNotifier(cfg *config.ModerationServiceConfig) *Notifier {
	return &Notifier{
		cfg:      cfg,
		client:   api.NewClient(cfg.WebhookURL, api.NewDefaultHTTPClient()),
		queue:    make(chan Payload, 128),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the sender goroutine.
func (n *Notifier) Start() {
	log.Printf("INFO: Webhook notifier starting (target: %s)", n.cfg.WebhookURL)
	go n.run()
}

// Stop shuts the sender down after draining what is already queued.
func (n *Notifier) Stop() {
	close(n.stopChan)
	<-n.doneChan
	log.Println("INFO: Webhook notifier stopped.")
}

func (n *Notifier) run() {
	defer close(n.doneChan)
	for {
		select {
		case payload := <-n.queue:
			n.deliver(payload)
		case <-n.stopChan:
			for {
				select {
				case payload := <-n.queue:
					n.deliver(payload)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(payload Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.client.Post(ctx, "", payload, nil); err != nil {
		// Best effort only. Moderation outcomes never depend on the webhook.
		log.Printf("WARN: Webhook delivery of %q failed: %v", payload.Event, err)
	}
}

func (n *Notifier) enqueue(payload Payload) {
	payload.At = timeutil.Now()
	payload.Server = n.cfg.OriginServer
	select {
	case n.queue <- payload:
	default:
		log.Printf("WARN: Webhook queue full, dropping %q event", payload.Event)
	}
}

// wantsKind applies the per-kind webhook gating from config.
func (n *Notifier) wantsKind(kind models.Kind) bool {
	switch kind {
	case models.KindBan, models.KindTempBan:
		return n.cfg.WebhookBans
	case models.KindMute, models.KindTempMute:
		return n.cfg.WebhookMutes
	case models.KindKick:
		return n.cfg.WebhookKicks
	case models.KindWarn:
		return n.cfg.WebhookWarns
	default:
		return false
	}
}

func formatWebhookDuration(durationMs int64) string {
	if durationMs == models.PermanentDuration {
		return "permanent"
	}
	if durationMs == 0 {
		return ""
	}
	return timeutil.FormatDurationShort(durationMs)
}

// PunishmentIssued enqueues a punishment event if its kind is enabled.
func (n *Notifier) PunishmentIssued(p *models.Punishment) {
	if !n.wantsKind(p.Kind) {
		return
	}
	n.enqueue(Payload{
		Event:      "punishment_issued",
		PlayerUUID: p.PlayerUUID,
		PlayerName: p.PlayerName,
		StaffName:  p.StaffName,
		Kind:       string(p.Kind),
		Reason:     p.Reason,
		Duration:   formatWebhookDuration(p.DurationMs),
	})
}

// PunishmentRevoked enqueues a revocation event, gated by the category's kind
// setting.
func (n *Notifier) PunishmentRevoked(category models.Category, playerUUID, staffName string) {
	switch category {
	case models.CategoryBan:
		if !n.cfg.WebhookBans {
			return
		}
	case models.CategoryMute:
		if !n.cfg.WebhookMutes {
			return
		}
	}
	n.enqueue(Payload{
		Event:      "punishment_revoked",
		PlayerUUID: playerUUID,
		StaffName:  staffName,
		Category:   string(category),
	})
}

// FreezeToggled enqueues freeze state changes if enabled.
func (n *Notifier) FreezeToggled(playerUUID, playerName, staffName string, frozen bool) {
	if !n.cfg.WebhookFreezes {
		return
	}
	n.enqueue(Payload{
		Event:      "freeze_toggled",
		PlayerUUID: playerUUID,
		PlayerName: playerName,
		StaffName:  staffName,
		Frozen:     frozen,
	})
}
