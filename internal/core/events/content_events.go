package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRBACChanged       = "rbac.changed"
	EventTypeMediaCommitted    = "media.committed"
	EventTypeMediaDeleteFailed = "media.delete_failed"
)

// RBACChangedEvent is published after roles, permissions or their links change.
type RBACChangedEvent struct {
	BaseEvent
	Subject   string `json:"subject"`
	SubjectID uint   `json:"subject_id"`
}

func NewRBACChangedEvent(subject string, id uint) *RBACChangedEvent {
	return &RBACChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRBACChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"subject":    subject,
				"subject_id": id,
			},
		},
		Subject:   subject,
		SubjectID: id,
	}
}

type MediaCommittedEvent struct {
	BaseEvent
	MediaID   uint   `json:"media_id"`
	OwnerType string `json:"owner_type"`
	OwnerID   uint   `json:"owner_id"`
	Size      int64  `json:"size"`
}

func NewMediaCommittedEvent(mediaID uint, ownerType string, ownerID uint, size int64) *MediaCommittedEvent {
	return &MediaCommittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMediaCommitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"media_id":   mediaID,
				"owner_type": ownerType,
				"owner_id":   ownerID,
				"size":       size,
			},
		},
		MediaID:   mediaID,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Size:      size,
	}
}

// MediaDeleteFailedEvent reports a tombstoned row whose file could not be removed.
type MediaDeleteFailedEvent struct {
	BaseEvent
	MediaID     uint   `json:"media_id"`
	StoragePath string `json:"storage_path"`
	Reason      string `json:"reason"`
}

func NewMediaDeleteFailedEvent(mediaID uint, path string, reason string) *MediaDeleteFailedEvent {
	return &MediaDeleteFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMediaDeleteFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"media_id":     mediaID,
				"storage_path": path,
				"reason":       reason,
			},
		},
		MediaID:     mediaID,
		StoragePath: path,
		Reason:      reason,
	}
}
