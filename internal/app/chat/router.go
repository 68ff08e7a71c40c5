package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/logx"
)

// maxConcurrentDeliveries bounds the goroutines one Publish may use.
const maxConcurrentDeliveries = 64

// ErrSinkClosed is returned by a Sink whose session has gone away.
var ErrSinkClosed = errors.New("chat: sink closed")

// Sink is the delivery endpoint of a live session.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Authorizer decides whether a user may receive a room's events. admit must be called
// while the decision still holds.
type Authorizer interface {
	AuthorizeSubscribe(ctx context.Context, roomID, userID string, admit func() error) error
}

// PublishResult counts the outcome of one fanout.
type PublishResult struct {
	Delivered int `json:"delivered"`
	Dropped   int `json:"dropped"`
}

type session struct {
	id     string
	userID string
	sink   Sink
	rooms  map[string]struct{}
}

// Router tracks live sessions and their room subscriptions and fans events out to them.
// Delivery is best effort: each session gets at most one attempt per event.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]*session

	auth            Authorizer
	relay           Relay
	deliveryTimeout time.Duration
	logger          zerolog.Logger
}

// NewRouter builds a router. relay may be nil for a single instance.
func NewRouter(auth Authorizer, relay Relay, deliveryTimeout time.Duration) *Router {
	return &Router{
		sessions:        make(map[string]*session),
		rooms:           make(map[string]map[string]*session),
		auth:            auth,
		relay:           relay,
		deliveryTimeout: deliveryTimeout,
		logger:          logx.Component("router"),
	}
}

// Connect registers a session. userID is empty for anonymous sessions.
func (r *Router) Connect(sessionID, userID string, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; ok {
		return errs.NewError(errs.ErrSessionExists)
	}

	r.sessions[sessionID] = &session{
		id:     sessionID,
		userID: userID,
		sink:   sink,
		rooms:  make(map[string]struct{}),
	}

	r.logger.Debug().Str("session_id", sessionID).Str("user_id", userID).Msg("Session connected.")
	return nil
}

// Disconnect removes a session and all its subscriptions. Unknown ids are ignored.
func (r *Router) Disconnect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	r.dropSessionLocked(s)
}

func (r *Router) dropSessionLocked(s *session) {
	if cur, ok := r.sessions[s.id]; !ok || cur != s {
		return
	}

	for roomID := range s.rooms {
		r.unsubscribeLocked(s, roomID)
	}
	delete(r.sessions, s.id)

	r.logger.Debug().Str("session_id", s.id).Msg("Session disconnected.")
}

// Subscribe starts delivering a room's events to the session. Subscribing twice is a no-op.
func (r *Router) Subscribe(ctx context.Context, sessionID, roomID string) error {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return errs.NewError(errs.ErrSessionNotFound)
	}

	return r.auth.AuthorizeSubscribe(ctx, roomID, s.userID, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		if cur, ok := r.sessions[sessionID]; !ok || cur != s {
			return errs.NewError(errs.ErrSessionNotFound)
		}

		s.rooms[roomID] = struct{}{}
		subs, ok := r.rooms[roomID]
		if !ok {
			subs = make(map[string]*session)
			r.rooms[roomID] = subs
		}
		subs[s.id] = s

		r.logger.Debug().Str("session_id", sessionID).Str("room_id", roomID).Msg("Session subscribed.")
		return nil
	})
}

// Unsubscribe stops delivering one room's events to the session.
func (r *Router) Unsubscribe(sessionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		r.unsubscribeLocked(s, roomID)
	}
}

func (r *Router) unsubscribeLocked(s *session, roomID string) {
	delete(s.rooms, roomID)

	subs, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(r.rooms, roomID)
	}
}

// Subscribers lists the session ids subscribed to a room.
func (r *Router) Subscribers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		ids = append(ids, id)
	}
	return ids
}

// Sessions reports how many sessions are connected.
func (r *Router) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Publish delivers ev to every session subscribed to the room when Publish is called,
// then forwards it to other instances.
func (r *Router) Publish(ctx context.Context, roomID string, ev Event) PublishResult {
	res := r.publishLocal(ctx, roomID, ev)
	r.forward(ctx, RelayMessage{Kind: RelayPublish, RoomID: roomID, Event: ev})
	return res
}

func (r *Router) publishLocal(ctx context.Context, roomID string, ev Event) PublishResult {
	r.mu.RLock()
	targets := make([]*session, 0, len(r.rooms[roomID]))
	for _, s := range r.rooms[roomID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	return r.deliver(ctx, targets, ev)
}

// OnMembershipChanged ends the live subscriptions of a removed user and tells each
// affected session why. Additions need no action: new members subscribe themselves.
func (r *Router) OnMembershipChanged(ctx context.Context, roomID, userID string, op Op) {
	if op != OpRemove {
		return
	}

	ev := mustEvent(EventMembershipRevoked, roomID, MemberPayload{UserID: userID})
	r.revokeLocal(ctx, roomID, userID, ev)
	r.forward(ctx, RelayMessage{Kind: RelayRevoke, RoomID: roomID, UserID: userID, Event: ev})
}

func (r *Router) revokeLocal(ctx context.Context, roomID, userID string, ev Event) PublishResult {
	r.mu.Lock()
	var revoked []*session
	for _, s := range r.rooms[roomID] {
		if s.userID == userID {
			revoked = append(revoked, s)
		}
	}
	for _, s := range revoked {
		r.unsubscribeLocked(s, roomID)
	}
	r.mu.Unlock()

	if len(revoked) > 0 {
		r.logger.Info().
			Str("room_id", roomID).
			Str("user_id", userID).
			Int("sessions", len(revoked)).
			Msg("Revoked subscriptions of removed member.")
	}
	return r.deliver(ctx, revoked, ev)
}

// RestrictRoom unsubscribes every session whose user is not in members, sending each
// one a membership.revoked event. It is called when a room turns private.
func (r *Router) RestrictRoom(ctx context.Context, roomID string, members []string) PublishResult {
	res := r.restrictLocal(ctx, roomID, members)
	r.forward(ctx, RelayMessage{Kind: RelayRestrict, RoomID: roomID, Members: members})
	return res
}

func (r *Router) restrictLocal(ctx context.Context, roomID string, members []string) PublishResult {
	allowed := make(map[string]struct{}, len(members))
	for _, m := range members {
		allowed[m] = struct{}{}
	}

	r.mu.Lock()
	byUser := make(map[string][]*session)
	for _, s := range r.rooms[roomID] {
		if _, ok := allowed[s.userID]; ok && s.userID != "" {
			continue
		}
		byUser[s.userID] = append(byUser[s.userID], s)
	}
	for _, sessions := range byUser {
		for _, s := range sessions {
			r.unsubscribeLocked(s, roomID)
		}
	}
	r.mu.Unlock()

	var res PublishResult
	for userID, sessions := range byUser {
		ev := mustEvent(EventMembershipRevoked, roomID, MemberPayload{UserID: userID})
		part := r.deliver(ctx, sessions, ev)
		res.Delivered += part.Delivered
		res.Dropped += part.Dropped
	}

	if n := res.Delivered + res.Dropped; n > 0 {
		r.logger.Info().Str("room_id", roomID).Int("sessions", n).Msg("Revoked subscriptions of non-members in private room.")
	}
	return res
}

// EvictRoom unsubscribes every session from a room, sending each one ev first.
func (r *Router) EvictRoom(ctx context.Context, roomID string, ev Event) PublishResult {
	res := r.evictLocal(ctx, roomID, ev)
	r.forward(ctx, RelayMessage{Kind: RelayEvict, RoomID: roomID, Event: ev})
	return res
}

func (r *Router) evictLocal(ctx context.Context, roomID string, ev Event) PublishResult {
	r.mu.Lock()
	targets := make([]*session, 0, len(r.rooms[roomID]))
	for _, s := range r.rooms[roomID] {
		targets = append(targets, s)
		delete(s.rooms, roomID)
	}
	delete(r.rooms, roomID)
	r.mu.Unlock()

	return r.deliver(ctx, targets, ev)
}

// HandleRelay applies a message received from another instance to local sessions only.
func (r *Router) HandleRelay(ctx context.Context, msg RelayMessage) {
	switch msg.Kind {
	case RelayPublish:
		r.publishLocal(ctx, msg.RoomID, msg.Event)
	case RelayRevoke:
		r.revokeLocal(ctx, msg.RoomID, msg.UserID, msg.Event)
	case RelayEvict:
		r.evictLocal(ctx, msg.RoomID, msg.Event)
	case RelayRestrict:
		r.restrictLocal(ctx, msg.RoomID, msg.Members)
	default:
		r.logger.Warn().Str("kind", string(msg.Kind)).Msg("Ignoring relay message of unknown kind.")
	}
}

// deliver sends ev to each target concurrently, each attempt bounded by the delivery
// timeout. Sessions whose sink reports closed are disconnected afterwards.
//
// Events describe changes that have already committed, so the caller's cancellation is
// not passed on to the sinks.
func (r *Router) deliver(ctx context.Context, targets []*session, ev Event) PublishResult {
	if len(targets) == 0 {
		return PublishResult{}
	}

	var (
		delivered atomic.Int64
		closedMu  sync.Mutex
		closed    []*session
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)

	for _, s := range targets {
		g.Go(func() error {
			dctx, cancel := r.deliveryCtx(ctx)
			defer cancel()

			if err := s.sink.Deliver(dctx, ev); err != nil {
				if errors.Is(err, ErrSinkClosed) {
					closedMu.Lock()
					closed = append(closed, s)
					closedMu.Unlock()
				}
				r.logger.Debug().
					Err(err).
					Str("session_id", s.id).
					Str("event_type", string(ev.Type)).
					Msg("Dropped event for session.")
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if len(closed) > 0 {
		r.mu.Lock()
		for _, s := range closed {
			r.dropSessionLocked(s)
		}
		r.mu.Unlock()
	}

	n := int(delivered.Load())
	return PublishResult{Delivered: n, Dropped: len(targets) - n}
}

func (r *Router) deliveryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.deliveryTimeout)
}

func (r *Router) forward(ctx context.Context, msg RelayMessage) {
	if r.relay == nil {
		return
	}

	fctx, cancel := r.deliveryCtx(ctx)
	defer cancel()

	if err := r.relay.Forward(fctx, msg); err != nil {
		r.logger.Warn().
			Err(err).
			Str("room_id", msg.RoomID).
			Str("kind", string(msg.Kind)).
			Msg("Failed to forward event to other instances.")
	}
}
