package hub

// registry is the in-memory presence map: userID <-> connection handle.
// A user has at most one live connection; a fresh register for the same
// user replaces the previous handle. Not safe for concurrent use; callers
// hold the hub mutex.
type registry struct {
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
}

func newRegistry() *registry {
	return &registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// register records a user's connection handle. If the user already held a
// live handle (a reconnect racing the old socket's teardown), the previous
// handle is displaced and returned so the caller can tear down any state
// still bound to it.
func (r *registry) register(userID, connID string) (string, bool) {
	old, had := r.byUser[userID]
	if had {
		delete(r.byConn, old)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	if had && old != connID {
		return old, true
	}
	return "", false
}

// unregisterConn removes the presence entry tied to a connection handle.
// It is a no-op when the handle was already displaced by a newer register,
// so a late disconnect of a replaced socket does not knock the user offline.
func (r *registry) unregisterConn(connID string) (string, bool) {
	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}
	return userID, true
}

// handleFor returns the current connection handle for a user.
func (r *registry) handleFor(userID string) (string, bool) {
	connID, ok := r.byUser[userID]
	return connID, ok
}

// userFor returns the user registered on a connection handle.
func (r *registry) userFor(connID string) (string, bool) {
	userID, ok := r.byConn[connID]
	return userID, ok
}

func (r *registry) count() int {
	return len(r.byUser)
}
