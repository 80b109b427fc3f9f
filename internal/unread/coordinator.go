// Package unread tracks the global unread counter and which conversation
// is currently on screen, so inbound messages for the open chat are not
// double-counted as notifications.
package unread

import "sync"

// Coordinator owns the active-conversation marker and the process-wide
// unread counter. The counter has view-level granularity: it resets when
// the messaging view is opened, not per message read.
type Coordinator struct {
	mu     sync.Mutex
	active int64 // peer id of the conversation on screen, 0 if none
	count  int
}

func New() *Coordinator {
	return &Coordinator{}
}

// SetActive records which peer's conversation is being viewed. 0 clears.
func (c *Coordinator) SetActive(peerID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = peerID
}

// Active returns the peer id of the conversation on screen, or 0.
func (c *Coordinator) Active() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// OnInboundActivity bumps the counter for a message or shared post whose
// sender is neither the local user nor the active peer. It reports
// whether the counter changed.
func (c *Coordinator) OnInboundActivity(senderID, localUserID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if senderID == localUserID || senderID == c.active {
		return false
	}
	c.count++
	return true
}

// Reset zeroes the counter; called when the messaging view mounts.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
}

// Count returns the current unread total.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
