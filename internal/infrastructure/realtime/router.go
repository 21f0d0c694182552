package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"go-messenger/internal/infrastructure/pubsub/port"
)

// Router coordinates websocket sessions and the channels they subscribed to.
// It keeps one active Connection per user and fans frames out to every connection
// subscribed to a channel (personal "user:<email>" or shared "conversation:<id>").
type Router struct {
	mu              sync.RWMutex
	sessions        map[string]*Connection            // sessionID -> connection
	userSessions    map[string]string                 // userID -> sessionID
	channels        map[string]map[string]*Connection // channel -> sessionID -> connection
	sessionChannels map[string]map[string]struct{}    // sessionID -> set of channels
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		sessions:        make(map[string]*Connection),
		userSessions:    make(map[string]string),
		channels:        make(map[string]map[string]*Connection),
		sessionChannels: make(map[string]map[string]struct{}),
	}
}

var _ port.Deliverer = (*Router)(nil)

// Attach registers a connection for the given user. If a previous session exists,
// it is removed and closed after the swap to enforce one active socket per user.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection

	r.mu.Lock()
	if existingID, ok := r.userSessions[conn.UserID]; ok {
		if existing := r.sessions[existingID]; existing != nil {
			previous = existing
			r.detachLocked(existingID)
		}
	}

	r.sessions[conn.ID] = conn
	r.userSessions[conn.UserID] = conn.ID
	r.sessionChannels[conn.ID] = make(map[string]struct{})
	r.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(CloseSessionReplaced, "session replaced")
	}
}

// Detach removes a connection if it is still tracked.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	r.detachLocked(conn.ID)
	r.mu.Unlock()
}

// Join subscribes the connection to channel. Callers authorize the subscription first.
func (r *Router) Join(channel string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conn.ID]; !ok {
		return false
	}

	subs := r.channels[channel]
	if subs == nil {
		subs = make(map[string]*Connection)
		r.channels[channel] = subs
	}
	subs[conn.ID] = conn

	memberships := r.sessionChannels[conn.ID]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.sessionChannels[conn.ID] = memberships
	}
	memberships[channel] = struct{}{}
	return true
}

// Leave unsubscribes the connection from channel.
func (r *Router) Leave(channel string, conn *Connection) {
	r.mu.Lock()
	r.leaveLocked(channel, conn.ID)
	r.mu.Unlock()
}

// Deliver writes frame to all connections subscribed to channel and returns how many
// accepted it. Slow consumers are dropped by Connection.Send.
func (r *Router) Deliver(channel string, frame []byte) int {
	r.mu.RLock()
	subs := r.channels[channel]
	targets := make([]*Connection, 0, len(subs))
	for _, conn := range subs {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(frame); err == nil {
			delivered++
		}
	}
	return delivered
}

// Subscribers counts connections subscribed to channel.
func (r *Router) Subscribers(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// Close terminates all tracked connections and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.userSessions = make(map[string]string)
	r.channels = make(map[string]map[string]*Connection)
	r.sessionChannels = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(websocket.CloseGoingAway, "router shutdown")
	}
}

func (r *Router) detachLocked(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)

	if current, ok := r.userSessions[conn.UserID]; ok && current == sessionID {
		delete(r.userSessions, conn.UserID)
	}

	for channel := range r.sessionChannels[sessionID] {
		r.leaveLocked(channel, sessionID)
	}
	delete(r.sessionChannels, sessionID)
}

func (r *Router) leaveLocked(channel string, sessionID string) {
	if sessionID == "" {
		return
	}
	subs := r.channels[channel]
	if subs == nil {
		return
	}
	delete(subs, sessionID)
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
	if memberships, ok := r.sessionChannels[sessionID]; ok {
		delete(memberships, channel)
	}
}
