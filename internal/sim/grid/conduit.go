package grid

// GridID is the arena handle of a network. Zero means detached.
type GridID uint64

type SideMode uint8

const (
	// SideOpen joins neighbouring conduits; on a logic node it bridges a neighbouring
	// device as a single-channel node.
	SideOpen SideMode = iota
	// SideOmni bridges a neighbouring device as an omni node.
	SideOmni
	// SideIsolated neither joins conduits nor bridges devices.
	SideIsolated
)

func (m SideMode) String() string {
	switch m {
	case SideOmni:
		return "OMNI"
	case SideIsolated:
		return "ISOLATED"
	default:
		return "OPEN"
	}
}

func ParseSideMode(s string) (SideMode, bool) {
	switch s {
	case "", "OPEN":
		return SideOpen, true
	case "OMNI":
		return SideOmni, true
	case "ISOLATED":
		return SideIsolated, true
	}
	return 0, false
}

type Side struct {
	Mode    SideMode
	Channel int
	Weak    bool
}

// Conduit is one linkable segment. Its grid handle is owned by Network lifecycle
// operations; callers read it through Handler.NetworkOf.
type Conduit struct {
	Pos       Vec3i
	LogicNode bool
	Sides     [6]Side

	grid GridID
}

func NewConduit(pos Vec3i, logicNode bool) *Conduit {
	return &Conduit{Pos: pos, LogicNode: logicNode}
}

func (c *Conduit) GridID() GridID {
	if c == nil {
		return 0
	}
	return c.grid
}

// CanInterface reports whether c links to other across direction d (d points from c
// to other). The relation is symmetric.
func (c *Conduit) CanInterface(other *Conduit, d Dir) bool {
	if c == nil || other == nil || c == other || !d.Valid() {
		return false
	}
	if c.Sides[d].Mode == SideIsolated {
		return false
	}
	return other.Sides[d.Opposite()].Mode != SideIsolated
}
