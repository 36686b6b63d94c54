package alloc

import "sync/atomic"

// Default numbering bases. Display :100 keeps well clear of any real X
// server; the VNC range starts at the conventional 5900 and the
// websocket bridge range mirrors it at 6900.
const (
	DefaultDisplayBase = 100
	DefaultVNCBase     = 5900
	DefaultWSBase      = 6900
)

// Resources is one session's worth of numeric allocations. All three
// values are derived from the same counter index, so triples handed out
// by a single Allocator never overlap.
type Resources struct {
	Display int `json:"display"`
	VNCPort int `json:"vncPort"`
	WSPort  int `json:"wsPort"`
}

// Allocator hands out display/port triples from a monotonically
// increasing counter. Numbers are never reused while the process lives;
// a restart resets the counter. There is deliberately no free-list.
type Allocator struct {
	displayBase int
	vncBase     int
	wsBase      int
	next        atomic.Int64
}

func New(displayBase, vncBase, wsBase int) *Allocator {
	if displayBase <= 0 {
		displayBase = DefaultDisplayBase
	}
	if vncBase <= 0 {
		vncBase = DefaultVNCBase
	}
	if wsBase <= 0 {
		wsBase = DefaultWSBase
	}
	return &Allocator{displayBase: displayBase, vncBase: vncBase, wsBase: wsBase}
}

// Allocate reserves the next counter index and derives the triple from
// it. Safe for concurrent use: the increment is a single atomic op, so
// two callers can never observe the same index.
func (a *Allocator) Allocate() Resources {
	idx := int(a.next.Add(1) - 1)
	return Resources{
		Display: a.displayBase + idx,
		VNCPort: a.vncBase + idx,
		WSPort:  a.wsBase + idx,
	}
}
