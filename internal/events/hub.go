package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cafeline/api/internal/ws"
	"github.com/google/uuid"
)

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToCafe(cafeID uuid.UUID, event ws.Event)
}

// HubPublisher pushes events to the websocket clients watching a café,
// such as kitchen displays.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	p.hub.BroadcastToCafe(e.CafeID, ws.Event{Type: e.Type, Payload: payload})
	return nil
}
