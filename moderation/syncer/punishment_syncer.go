// moderation/syncer/punishment_syncer.go
package syncer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/api"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/cluster"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/registry"
)

// Revocation describes a punishment lift propagated to peers.
type Revocation struct {
	Category   models.Category `json:"category"`
	PlayerUUID string          `json:"player_uuid"`
	StaffName  string          `json:"staff_name"`
}

// Event is one propagated moderation change. Exactly one field is set.
type Event struct {
	Punishment *models.Punishment `json:"punishment,omitempty"`
	Revocation *Revocation        `json:"revocation,omitempty"`
}

// PunishmentSyncer propagates committed punishments and revocations to peer
// moderation-service instances so each replica's fast-path mirrors (Redis ban
// entries, in-memory mute caches) converge without waiting for the next
// database read. MongoDB stays the single source of truth; this is purely a
// cache-warming channel.
//
// It is an event sink: engine calls only enqueue. A single delivery goroutine
// pushes to peers, and failed deliveries are retried on a ticker by whichever
// instance currently holds the retry leadership.
type PunishmentSyncer struct {
	cfg               *config.ModerationServiceConfig
	registryClient    *registry.RegistryClient
	serviceRegistrar  *registry.ServiceRegistrar
	assignmentManager *cluster.ServiceAssignmentManager

	queue chan Event

	pendingMu sync.Mutex
	pending   []Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPunishmentSyncer creates a PunishmentSyncer. It builds its own
// assignment manager on top of the given registry client and registrar.
func NewPunishmentSyncer(
	cfg *config.ModerationServiceConfig,
	registryClient *registry.RegistryClient,
	serviceRegistrar *registry.ServiceRegistrar,
) *PunishmentSyncer {
	ctx, cancel := context.WithCancel(context.Background())

	assignmentManager := cluster.NewServiceAssignmentManager(
		registryClient,
		serviceRegistrar,
		cfg.HeartbeatInterval,
	)

	return &PunishmentSyncer{
		cfg:               cfg,
		registryClient:    registryClient,
		serviceRegistrar:  serviceRegistrar,
		assignmentManager: assignmentManager,
		queue:             make(chan Event, 256),
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
}

// Start launches the delivery loop and the retry ticker.
func (ps *PunishmentSyncer) Start() {
	log.Printf("INFO: Punishment syncer starting (retry interval: %v)", ps.cfg.SyncRetryInterval)
	go ps.assignmentManager.Start()
	go ps.run()
}

// Stop shuts the syncer down. Still-pending events are abandoned; peers
// converge from MongoDB on their next cache miss.
func (ps *PunishmentSyncer) Stop() {
	ps.cancel()
	<-ps.done
	ps.assignmentManager.Stop()
	log.Println("INFO: Punishment syncer stopped.")
}

func (ps *PunishmentSyncer) run() {
	defer close(ps.done)
	ticker := time.NewTicker(ps.cfg.SyncRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ps.ctx.Done():
			return
		case ev := <-ps.queue:
			ps.deliverToPeers(ev)
		case <-ticker.C:
			ps.retryPending()
		}
	}
}

// deliverToPeers pushes one event to every active peer instance. A peer that
// cannot be reached moves the event to the pending list for the retry pass.
func (ps *PunishmentSyncer) deliverToPeers(ev Event) {
	ctx, cancel := context.WithTimeout(ps.ctx, 10*time.Second)
	defer cancel()

	peers, err := ps.registryClient.GetActiveServices(ctx, ps.serviceRegistrar.GetServiceType())
	if err != nil {
		log.Printf("ERROR: Punishment syncer failed to list peers: %v", err)
		ps.addPending(ev)
		return
	}

	failed := false
	for instanceID, info := range peers {
		if instanceID == ps.serviceRegistrar.GetServiceID() {
			continue
		}
		client := api.NewClient(info.BaseURL(), api.NewDefaultHTTPClient())
		if err := client.Post(ctx, "/mod/sync", ev, nil); err != nil {
			log.Printf("WARN: Punishment sync to peer %s failed: %v", instanceID, err)
			failed = true
		}
	}
	if failed {
		ps.addPending(ev)
	}
}

func (ps *PunishmentSyncer) addPending(ev Event) {
	ps.pendingMu.Lock()
	defer ps.pendingMu.Unlock()
	// Bounded; oldest entries fall off first. Peers self-heal from MongoDB,
	// so dropped retries cost only cache warmth.
	const maxPending = 512
	if len(ps.pending) >= maxPending {
		ps.pending = ps.pending[1:]
	}
	ps.pending = append(ps.pending, ev)
}

// retryPending re-delivers failed events. Only the instance holding the retry
// leadership runs the pass, so a cluster-wide outage does not turn into a
// thundering herd when peers come back.
func (ps *PunishmentSyncer) retryPending() {
	ps.pendingMu.Lock()
	if len(ps.pending) == 0 {
		ps.pendingMu.Unlock()
		return
	}
	batch := ps.pending
	ps.pending = nil
	ps.pendingMu.Unlock()

	const retryTaskKey = "punishment_sync_retry_task"
	isLeader, err := ps.assignmentManager.IsResponsible(retryTaskKey)
	if err != nil {
		log.Printf("ERROR: Punishment syncer failed to check retry leadership: %v", err)
		isLeader = true // alone or ring unreadable; retrying locally is harmless
	}
	if !isLeader {
		// Not ours to retry; put the batch back.
		ps.pendingMu.Lock()
		ps.pending = append(batch, ps.pending...)
		ps.pendingMu.Unlock()
		return
	}

	log.Printf("INFO: Punishment syncer retrying %d pending events.", len(batch))
	for _, ev := range batch {
		ps.deliverToPeers(ev)
	}
}

func (ps *PunishmentSyncer) enqueue(ev Event) {
	select {
	case ps.queue <- ev:
	default:
		log.Println("WARN: Punishment sync queue full, event moved straight to retry list.")
		ps.addPending(ev)
	}
}

// PunishmentIssued propagates a committed punishment to peers. Kicks and
// warnings carry no cross-instance state and are skipped.
func (ps *PunishmentSyncer) PunishmentIssued(p *models.Punishment) {
	if !p.Kind.HasOngoingEffect() {
		return
	}
	ps.enqueue(Event{Punishment: p})
}

// PunishmentRevoked propagates a revocation to peers.
func (ps *PunishmentSyncer) PunishmentRevoked(category models.Category, playerUUID, staffName string) {
	ps.enqueue(Event{Revocation: &Revocation{
		Category:   category,
		PlayerUUID: playerUUID,
		StaffName:  staffName,
	}})
}

// FreezeToggled is a no-op: freezes are bound to the live session owned by
// this instance and never replicate.
func (ps *PunishmentSyncer) FreezeToggled(playerUUID, playerName, staffName string, frozen bool) {}
