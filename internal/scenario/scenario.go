package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"rednet.ai/internal/sim/grid"
)

//go:embed scenario.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("scenario.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Scenario is a scripted sequence of world edits, ticks and assertions.
type Scenario struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Chunks      [][]int `yaml:"chunks,omitempty" json:"chunks,omitempty"`
	Steps       []Step  `yaml:"steps" json:"steps"`
}

type ChannelValue struct {
	Channel int `yaml:"channel" json:"channel"`
	Value   int `yaml:"value" json:"value"`
}

type Step struct {
	Op   string `yaml:"op" json:"op"`
	Note string `yaml:"note,omitempty" json:"note,omitempty"`

	Pos   []int `yaml:"pos,omitempty" json:"pos,omitempty"`
	Chunk []int `yaml:"chunk,omitempty" json:"chunk,omitempty"`

	Logic   bool   `yaml:"logic,omitempty" json:"logic,omitempty"`
	Dir     string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Mode    string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Channel int    `yaml:"channel,omitempty" json:"channel,omitempty"`
	Weak    bool   `yaml:"weak,omitempty" json:"weak,omitempty"`

	Value     int            `yaml:"value,omitempty" json:"value,omitempty"`
	Power     int            `yaml:"power,omitempty" json:"power,omitempty"`
	Strong    int            `yaml:"strong,omitempty" json:"strong,omitempty"`
	WeakPower int            `yaml:"weak_power,omitempty" json:"weak_power,omitempty"`
	Outputs   []ChannelValue `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

type Expect struct {
	Networks    *int            `yaml:"networks,omitempty" json:"networks,omitempty"`
	Ticking     *int            `yaml:"ticking,omitempty" json:"ticking,omitempty"`
	At          []int           `yaml:"at,omitempty" json:"at,omitempty"`
	Detached    bool            `yaml:"detached,omitempty" json:"detached,omitempty"`
	Conduits    *int            `yaml:"conduits,omitempty" json:"conduits,omitempty"`
	Nodes       *int            `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Levels      []ChannelValue  `yaml:"levels,omitempty" json:"levels,omitempty"`
	Provider    *ProviderExpect `yaml:"provider,omitempty" json:"provider,omitempty"`
	SameNetwork [][]int         `yaml:"same_network,omitempty" json:"same_network,omitempty"`
	Input       *InputExpect    `yaml:"input,omitempty" json:"input,omitempty"`
}

type ProviderExpect struct {
	Channel int    `yaml:"channel" json:"channel"`
	Pos     []int  `yaml:"pos,omitempty" json:"pos,omitempty"`
	Face    string `yaml:"face,omitempty" json:"face,omitempty"`
	None    bool   `yaml:"none,omitempty" json:"none,omitempty"`
}

type InputExpect struct {
	Pos   []int  `yaml:"pos" json:"pos"`
	Side  string `yaml:"side" json:"side"`
	Value int    `yaml:"value" json:"value"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse validates raw YAML against the embedded schema and decodes it.
func Parse(raw []byte) (*Scenario, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	// Round-trip through JSON so the validator sees plain JSON values.
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile scenario schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return &sc, nil
}

func vec(p []int) grid.Vec3i {
	if len(p) != 3 {
		return grid.Vec3i{}
	}
	return grid.Vec3i{X: p[0], Y: p[1], Z: p[2]}
}

func chunkKey(c []int) grid.ChunkKey {
	if len(c) != 2 {
		return grid.ChunkKey{}
	}
	return grid.ChunkKey{CX: c[0], CZ: c[1]}
}

func parseDir(s string) (grid.Dir, error) {
	d, ok := grid.ParseDir(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}
