package main

// isOnline reports whether userID has a live /ws/matches connection.
// Presence is not persisted; a restart marks everyone offline.
func (h *Hub) isOnline(userID string) bool {
	if h == nil {
		return false
	}
	return h.connected(userID) > 0
}
