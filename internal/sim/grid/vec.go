package grid

import "fmt"

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Step(d Dir) Vec3i {
	o := d.Offset()
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// ChunkSize is the edge length of a chunk column.
const ChunkSize = 16

// Chunk returns the ChunkSize x ChunkSize column that holds v. Load state is
// tracked per column.
func (v Vec3i) Chunk() ChunkKey {
	return ChunkKey{CX: v.X >> 4, CZ: v.Z >> 4}
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

type ChunkKey struct {
	CX int
	CZ int
}

// Dir is one of the six axis-aligned directions. Ordinals are stable and used as
// indexes into per-side arrays.
type Dir uint8

const (
	Down Dir = iota
	Up
	North
	South
	West
	East
)

var Dirs = [6]Dir{Down, Up, North, South, West, East}

var dirOffsets = [6]Vec3i{
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: 1},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
}

var dirNames = [6]string{"DOWN", "UP", "NORTH", "SOUTH", "WEST", "EAST"}

func (d Dir) Offset() Vec3i {
	if int(d) >= len(dirOffsets) {
		return Vec3i{}
	}
	return dirOffsets[d]
}

func (d Dir) Opposite() Dir { return d ^ 1 }

func (d Dir) Valid() bool { return int(d) < len(dirOffsets) }

func (d Dir) String() string {
	if !d.Valid() {
		return "UNKNOWN"
	}
	return dirNames[d]
}

// ParseDir accepts the upper-case names returned by Dir.String.
func ParseDir(s string) (Dir, bool) {
	for i, n := range dirNames {
		if n == s {
			return Dir(i), true
		}
	}
	return 0, false
}
