package ws

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	userID int64

	mu       sync.Mutex
	got      []Message
	failSend bool
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failSend {
		return errors.New("connection lost")
	}
	c.got = append(c.got, msg)
	return nil
}

func (c *fakeConn) Close() error  { return nil }
func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) UserID() int64 { return c.userID }

func (c *fakeConn) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.got))
	copy(out, c.got)
	return out
}

func TestHub_AddRemove(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	c := &fakeConn{id: "c1", userID: 1}

	req.Empty(h.Conns(1))

	h.Add(1, c)
	req.Len(h.Conns(1), 1)

	// duplicate add is a no-op (set semantics)
	h.Add(1, c)
	req.Len(h.Conns(1), 1)

	h.Remove(1, c)
	req.Empty(h.Conns(1))

	// idempotent: removing an absent pair is not an error
	h.Remove(1, c)
	h.Remove(42, c)
	req.Empty(h.Conns(1))
}

func TestHub_Fanout_BothParticipants(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	a := &fakeConn{id: "a", userID: 1}
	b := &fakeConn{id: "b", userID: 2}
	other := &fakeConn{id: "other", userID: 3}
	h.Add(1, a)
	h.Add(2, b)
	h.Add(3, other)

	h.Fanout(Message{Type: TypeDelivered}, 1, 2)

	req.Len(a.received(), 1)
	req.Len(b.received(), 1)
	req.Empty(other.received(), "non-participant must not receive the push")
}

func TestHub_Fanout_DedupUnion(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	// one connection registered under both participants
	c := &fakeConn{id: "c1", userID: 1}
	h.Add(1, c)
	h.Add(2, c)

	h.Fanout(Message{Type: TypeDelivered}, 1, 2)

	req.Len(c.received(), 1, "exactly one push, never two")
}

func TestHub_Fanout_SelfDialog(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	c := &fakeConn{id: "c1", userID: 7}
	h.Add(7, c)

	// sender == receiver: union of the two sets is the same set
	h.Fanout(Message{Type: TypeDelivered}, 7, 7)

	req.Len(c.received(), 1)
}

func TestHub_Fanout_BestEffort(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	dead := &fakeConn{id: "dead", userID: 1, failSend: true}
	alive := &fakeConn{id: "alive", userID: 1}
	b := &fakeConn{id: "b", userID: 2}
	h.Add(1, dead)
	h.Add(1, alive)
	h.Add(2, b)

	h.Fanout(Message{Type: TypeDelivered}, 1, 2)

	req.Len(alive.received(), 1, "push failure to one connection must not abort the others")
	req.Len(b.received(), 1)
}

func TestHub_MultiDevice(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	tab1 := &fakeConn{id: "tab1", userID: 1}
	tab2 := &fakeConn{id: "tab2", userID: 1}
	h.Add(1, tab1)
	h.Add(1, tab2)

	h.Fanout(Message{Type: TypeDelivered}, 1, 2)

	req.Len(tab1.received(), 1)
	req.Len(tab2.received(), 1)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := &fakeConn{id: string(rune('a' + n)), userID: int64(n%2 + 1)}
			for j := 0; j < 200; j++ {
				h.Add(c.UserID(), c)
				h.Fanout(Message{Type: TypeDelivered}, 1, 2)
				h.Conns(c.UserID())
				h.Remove(c.UserID(), c)
			}
		}(i)
	}
	wg.Wait()
}
