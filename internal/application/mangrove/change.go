package mangrove

import (
	domain "github.com/zjrosen/mangrove/internal/domain/mangrove"
	"github.com/zjrosen/mangrove/internal/pubsub"
)

// ChangeKind names the mutation a Change reports.
type ChangeKind string

const (
	ChangeDepthConfigured ChangeKind = "depth_configured"
	ChangeRegistered      ChangeKind = "registered"
	ChangeUpdated         ChangeKind = "updated"
	ChangeMigrated        ChangeKind = "migrated"
	ChangeBound           ChangeKind = "bound"
	ChangeGrouped         ChangeKind = "grouped"
	ChangeDisposed        ChangeKind = "disposed"
)

// Change describes one successful mutation. Name holds the variable, binding
// or group key depending on Kind.
type Change struct {
	Kind     ChangeKind     `json:"kind"`
	Name     string         `json:"name,omitempty"`
	Depth    int            `json:"depth"`
	Type     domain.TypeTag `json:"type,omitempty"`
	Revision uint64         `json:"revision"`
}

func (k ChangeKind) eventType() pubsub.EventType {
	switch k {
	case ChangeUpdated:
		return pubsub.UpdatedEvent
	case ChangeMigrated:
		return pubsub.MovedEvent
	case ChangeDisposed:
		return pubsub.DisposedEvent
	default:
		return pubsub.CreatedEvent
	}
}
