package server

import (
	"echonet/internal/transport"
)

// connSet is the ordered set of polled descriptors.  Slot 0 is always
// the listener; slots 1..n are accepted peers in accept order.  The
// wake descriptor is appended to the poll set but is not a member.
type connSet struct {
	listenFD int
	peers    []*transport.StreamEndpoint
	fds      []int
}

func newConnSet(listenFD int) *connSet {
	return &connSet{listenFD: listenFD}
}

// add appends a freshly accepted peer.
func (c *connSet) add(ep *transport.StreamEndpoint) error {
	fd, err := ep.FD()
	if err != nil {
		return err
	}
	c.peers = append(c.peers, ep)
	c.fds = append(c.fds, fd)
	return nil
}

// pollFDs returns the descriptors to poll: listener, peers, then wake.
func (c *connSet) pollFDs(wakeFD int) []int {
	fds := make([]int, 0, len(c.fds)+2)
	fds = append(fds, c.listenFD)
	fds = append(fds, c.fds...)
	return append(fds, wakeFD)
}

// retain keeps only the peers whose keep flag is set, preserving order.
// keep must have one entry per current peer.
func (c *connSet) retain(keep []bool) {
	peers := c.peers[:0]
	fds := c.fds[:0]
	for i, ep := range c.peers {
		if keep[i] {
			peers = append(peers, ep)
			fds = append(fds, c.fds[i])
		}
	}
	for i := len(peers); i < len(c.peers); i++ {
		c.peers[i] = nil
	}
	c.peers = peers
	c.fds = fds
}

// len returns the number of peers, excluding the listener.
func (c *connSet) len() int { return len(c.peers) }

// drain closes every peer and empties the set.  It returns how many
// peers were closed.
func (c *connSet) drain() int {
	n := len(c.peers)
	for _, ep := range c.peers {
		ep.Close() //nolint:errcheck
	}
	c.peers = nil
	c.fds = nil
	return n
}
