package chat

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Notifier tracks which connections belong to which room and fans inbound
// messages out to every member of the sender's room. Rooms exist only as map
// entries: created on first join, dropped when the last member leaves.
type Notifier struct {
	mu    sync.Mutex
	rooms map[string]map[*Connection]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{
		rooms: make(map[string]map[*Connection]struct{}),
	}
}

// Connect adds the connection to the room. Calling it again for the same
// pair is a no-op, which is what the self-healing rejoin in the handler
// relies on.
func (n *Notifier) Connect(c *Connection, roomName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	members, ok := n.rooms[roomName]
	if !ok {
		members = make(map[*Connection]struct{})
		n.rooms[roomName] = members
	}
	members[c] = struct{}{}
	log.Debugf("[Notifier] room %s has %d member(s)", roomName, len(members))
}

// Members returns a snapshot of the room's members, nil when the room does
// not exist.
func (n *Notifier) Members(roomName string) []*Connection {
	n.mu.Lock()
	defer n.mu.Unlock()
	members, ok := n.rooms[roomName]
	if !ok {
		return nil
	}
	snapshot := make([]*Connection, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

func (n *Notifier) Contains(c *Connection, roomName string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	members, ok := n.rooms[roomName]
	if !ok {
		return false
	}
	_, ok = members[c]
	return ok
}

// Remove detaches the connection from the room and drops the room entry when
// it empties. Safe to call for connections that already left.
func (n *Notifier) Remove(c *Connection, roomName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	members, ok := n.rooms[roomName]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(n.rooms, roomName)
	}
}

// Notify delivers the message to every member of the room. Delivery is
// best-effort per member: a member that cannot be written to is removed from
// the room and the rest still get the message. The member snapshot is taken
// under the lock, writes happen outside it.
func (n *Notifier) Notify(message interface{}, roomName string) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Errorf("[Notifier] marshal for room %s: %v", roomName, err)
		return
	}
	for _, member := range n.Members(roomName) {
		if err := member.Send(payload); err != nil {
			log.Warnf("[Notifier] dropping member of room %s: %v", roomName, err)
			n.Remove(member, roomName)
		}
	}
}
