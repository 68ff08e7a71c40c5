package chat

import "context"

// RelayKind says what a relayed message asks the receiving instance to do.
type RelayKind string

const (
	RelayPublish  RelayKind = "publish"
	RelayRevoke   RelayKind = "revoke"
	RelayEvict    RelayKind = "evict"
	RelayRestrict RelayKind = "restrict"
)

// RelayMessage carries a fanout to sessions connected to other instances.
type RelayMessage struct {
	Kind    RelayKind `json:"kind"`
	RoomID  string    `json:"roomId"`
	UserID  string    `json:"userId,omitempty"`
	Members []string  `json:"members,omitempty"`
	Event   Event     `json:"event"`
}

// Relay forwards fanouts to other instances. Messages an instance receives back are
// applied with Router.HandleRelay and never forwarded again.
type Relay interface {
	Forward(ctx context.Context, msg RelayMessage) error
}
