package grid

// Channels is the number of independent signal lanes carried by every network.
const Channels = 16

// World is the spatial substrate the networks live in. Implementations answer for
// load state and occupants; they never mutate networks themselves.
type World interface {
	IsLoaded(p Vec3i) bool
	OccupantAt(p Vec3i) Occupant
	// StrongSignal and WeakSignal are native scalar readings of the block at p as
	// seen from side. Weak is the indirect reading.
	StrongSignal(p Vec3i, side Dir) int
	WeakSignal(p Vec3i, side Dir) int
}

type OccupantKind uint8

const (
	OccupantNone OccupantKind = iota
	OccupantConduit
	OccupantDevice
	OccupantLegacy
	OccupantBlock
)

func (k OccupantKind) String() string {
	switch k {
	case OccupantConduit:
		return "CONDUIT"
	case OccupantDevice:
		return "DEVICE"
	case OccupantLegacy:
		return "LEGACY"
	case OccupantBlock:
		return "BLOCK"
	default:
		return "NONE"
	}
}

// Occupant is what the world reports at a position, resolved once per lookup.
// Conduit is set only for OccupantConduit. Output/Input are optional capabilities
// of an OccupantDevice.
type Occupant struct {
	Kind    OccupantKind
	Conduit *Conduit
	Output  SignalOutput
	Input   SignalInput
}

// SignalOutput is a device exposing structured per-channel output.
// OutputValues returns nil when the device has no vector to report.
type SignalOutput interface {
	OutputValue(p Vec3i, side Dir, channel int) int
	OutputValues(p Vec3i, side Dir) []int
}

// SignalInput is a device that wants to hear about channel level changes.
type SignalInput interface {
	InputChanged(p Vec3i, side Dir, value int)
	InputsChanged(p Vec3i, side Dir, values [Channels]int)
}

// NodePos identifies a bridged peripheral: the device position plus the direction
// from the bridging conduit to the device. The device is addressed on Face.Opposite().
type NodePos struct {
	Pos  Vec3i `json:"pos"`
	Face Dir   `json:"face"`
}

func (n NodePos) String() string { return n.Pos.String() + "@" + n.Face.String() }
