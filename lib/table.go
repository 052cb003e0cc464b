package lib

// ConnTable owns every live Connection, keyed by Quad. It is not safe for
// concurrent use; the frame loop is its only user.
type ConnTable struct {
	conns map[Quad]*Connection
}

func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[Quad]*Connection)}
}

func (t *ConnTable) Get(q Quad) (*Connection, bool) {
	c, ok := t.conns[q]
	return c, ok
}

func (t *ConnTable) Put(c *Connection) {
	t.conns[c.quad] = c
}

func (t *ConnTable) Remove(q Quad) {
	delete(t.conns, q)
}

func (t *ConnTable) Len() int {
	return len(t.conns)
}

// Range calls fn for every connection until fn returns false.
func (t *ConnTable) Range(fn func(*Connection) bool) {
	for _, c := range t.conns {
		if !fn(c) {
			return
		}
	}
}
