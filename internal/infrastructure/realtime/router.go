package realtime

import (
	"sync"
)

// StopFunc releases whatever a session started for one conversation, such as
// a live message stream.
type StopFunc func()

// Router tracks websocket sessions and the conversations each session
// follows. It keeps one active Connection per session key; attaching a second
// connection for the same key replaces the first.
type Router struct {
	mu          sync.RWMutex
	sessions    map[string]*Connection         // sessionID -> connection
	keySessions map[string]string              // session key -> sessionID
	follows     map[string]map[string]StopFunc // sessionID -> conversationID -> stop
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		sessions:    make(map[string]*Connection),
		keySessions: make(map[string]string),
		follows:     make(map[string]map[string]StopFunc),
	}
}

// Attach registers a connection and starts its write loop. A previous
// session with the same key is detached and closed.
func (r *Router) Attach(conn *Connection) {
	var previous *Connection
	var stops []StopFunc

	r.mu.Lock()
	if existingID, ok := r.keySessions[conn.Key]; ok {
		if existing := r.sessions[existingID]; existing != nil {
			previous = existing
			stops = r.detachLocked(existingID)
		}
	}
	r.sessions[conn.ID] = conn
	r.keySessions[conn.Key] = conn.ID
	r.follows[conn.ID] = make(map[string]StopFunc)
	r.mu.Unlock()

	runStops(stops)
	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

// Detach removes a connection if it is still tracked and stops everything it followed.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	stops := r.detachLocked(conn.ID)
	r.mu.Unlock()
	runStops(stops)
}

// Follow records that conn follows conversationID; stop is called on
// Unfollow, Detach or Close. Following the same conversation again replaces
// (and stops) the previous registration. It returns false, after calling
// stop, when conn is not attached.
func (r *Router) Follow(conversationID string, conn *Connection, stop StopFunc) bool {
	r.mu.Lock()
	follows, ok := r.follows[conn.ID]
	if !ok {
		r.mu.Unlock()
		if stop != nil {
			stop()
		}
		return false
	}
	previous := follows[conversationID]
	follows[conversationID] = stop
	r.mu.Unlock()

	if previous != nil {
		previous()
	}
	return true
}

// Unfollow stops following conversationID.
func (r *Router) Unfollow(conversationID string, conn *Connection) bool {
	r.mu.Lock()
	follows := r.follows[conn.ID]
	stop, ok := follows[conversationID]
	if ok {
		delete(follows, conversationID)
	}
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	return ok
}

// Following reports whether conn follows conversationID.
func (r *Router) Following(conversationID string, conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.follows[conn.ID][conversationID]
	return ok
}

// Sessions returns the number of attached connections.
func (r *Router) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// NotifyUser delivers payload to the current connection of the session key.
func (r *Router) NotifyUser(key string, payload []byte) bool {
	r.mu.RLock()
	sessionID, ok := r.keySessions[key]
	if !ok {
		r.mu.RUnlock()
		return false
	}
	conn := r.sessions[sessionID]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// Close terminates all tracked connections and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	var stops []StopFunc
	for id, conn := range r.sessions {
		sessions = append(sessions, conn)
		stops = append(stops, r.detachLocked(id)...)
	}
	r.mu.Unlock()

	runStops(stops)
	for _, conn := range sessions {
		conn.Close(1001, "router shutdown")
	}
}

func (r *Router) detachLocked(sessionID string) []StopFunc {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	if current, ok := r.keySessions[conn.Key]; ok && current == sessionID {
		delete(r.keySessions, conn.Key)
	}

	var stops []StopFunc
	for _, stop := range r.follows[sessionID] {
		if stop != nil {
			stops = append(stops, stop)
		}
	}
	delete(r.follows, sessionID)
	return stops
}

func runStops(stops []StopFunc) {
	for _, stop := range stops {
		stop()
	}
}
