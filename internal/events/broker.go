package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event types emitted over the activity feed.
const (
	TypeRunStarted    = "sync.run.started"
	TypeRunFinished   = "sync.run.finished"
	TypeBatchFinished = "sync.batch.finished"
)

// Event is one activity-feed message, scoped to an organization.
type Event struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	OrgID uuid.UUID   `json:"org_id"`
}

// Broker fans sync activity out to connected SSE clients, keyed by
// organization so members only see their own org's runs.
type Broker struct {
	clients map[uuid.UUID]map[chan Event]bool
	mu      sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		clients: make(map[uuid.UUID]map[chan Event]bool),
	}
}

// Register adds a client channel for an organization.
func (b *Broker) Register(orgID uuid.UUID, clientChan chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[orgID]; !ok {
		b.clients[orgID] = make(map[chan Event]bool)
	}

	b.clients[orgID][clientChan] = true
	log.Printf("📡 [Events] Registered client for org %s (total clients: %d)",
		orgID, len(b.clients[orgID]))
}

// Unregister removes a client channel and closes it.
func (b *Broker) Unregister(orgID uuid.UUID, clientChan chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if orgClients, ok := b.clients[orgID]; ok {
		delete(orgClients, clientChan)
		close(clientChan)

		if len(orgClients) == 0 {
			delete(b.clients, orgID)
		}

		log.Printf("📡 [Events] Unregistered client for org %s (remaining: %d)",
			orgID, len(orgClients))
	}
}

// Broadcast sends an event to every client of the event's organization. Data
// is marshaled once and sent as a raw copy so a slow client can never observe
// a half-written payload; blocked channels are skipped.
func (b *Broker) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	orgClients, ok := b.clients[event.OrgID]
	if !ok {
		return
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		log.Printf("❌ [Events] Failed to marshal event data: %v", err)
		return
	}
	eventCopy := Event{
		Type:  event.Type,
		Data:  json.RawMessage(dataJSON),
		OrgID: event.OrgID,
	}

	for clientChan := range orgClients {
		select {
		case clientChan <- eventCopy:
		default:
			log.Printf("⚠️ [Events] Client channel blocked for org %s", event.OrgID)
		}
	}

	log.Printf("📡 [Events] Broadcast %s to %d client(s) for org %s",
		event.Type, len(orgClients), event.OrgID)
}

// BroadcastToAll sends an event to every connected client regardless of org.
func (b *Broker) BroadcastToAll(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		log.Printf("❌ [Events] Failed to marshal event data: %v", err)
		return
	}

	totalClients := 0
	for orgID, orgClients := range b.clients {
		totalClients += len(orgClients)

		eventCopy := Event{
			Type:  event.Type,
			Data:  json.RawMessage(dataJSON),
			OrgID: orgID,
		}
		for clientChan := range orgClients {
			select {
			case clientChan <- eventCopy:
			default:
				log.Printf("⚠️ [Events] Client channel blocked for org %s", orgID)
			}
		}
	}

	if totalClients > 0 {
		log.Printf("📡 [Events] Broadcast %s to %d total client(s)", event.Type, totalClients)
	}
}

// Publish is the producer-side convenience used by the sync job.
func (b *Broker) Publish(orgID uuid.UUID, eventType string, data interface{}) {
	b.Broadcast(Event{Type: eventType, Data: data, OrgID: orgID})
}

// PublishAll broadcasts to every connected client.
func (b *Broker) PublishAll(eventType string, data interface{}) {
	b.BroadcastToAll(Event{Type: eventType, Data: data})
}

// ClientCount returns the number of connected clients for an organization.
func (b *Broker) ClientCount(orgID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if orgClients, ok := b.clients[orgID]; ok {
		return len(orgClients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients.
func (b *Broker) TotalClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, orgClients := range b.clients {
		total += len(orgClients)
	}
	return total
}
