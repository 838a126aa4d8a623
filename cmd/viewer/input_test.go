package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"rednet.ai/internal/scenario"
	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
)

func TestKeyToAction(t *testing.T) {
	cases := []struct {
		ev   *tcell.EventKey
		want Action
	}{
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), ActionPanN},
		{tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone), ActionLayerUp},
		{tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), ActionQuit},
		{tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone), ActionStep},
		{tcell.NewEventKey(tcell.KeyRune, 'N', tcell.ModNone), ActionStepTen},
		{tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone), ActionLayerDown},
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), ActionNone},
	}
	for _, c := range cases {
		if got := keyToAction(c.ev); got != c.want {
			t.Fatalf("keyToAction(%v)=%v, want %v", c.ev.Name(), got, c.want)
		}
	}
}

func TestPanDelta(t *testing.T) {
	if dx, dz := panDelta(ActionPanW); dx != -1 || dz != 0 {
		t.Fatalf("west=(%d,%d), want (-1,0)", dx, dz)
	}
	if dx, dz := panDelta(ActionStep); dx != 0 || dz != 0 {
		t.Fatalf("non-pan=(%d,%d), want (0,0)", dx, dz)
	}
}

func TestScenarioFocus(t *testing.T) {
	sc := &scenario.Scenario{
		Chunks: [][]int{{2, -1}},
		Steps:  []scenario.Step{{Op: "tick"}, {Op: "place_conduit", Pos: []int{3, 4, 5}}},
	}
	if got := scenarioFocus(sc); got != (grid.Vec3i{X: 3, Y: 4, Z: 5}) {
		t.Fatalf("focus=%v, want first pos", got)
	}
	sc.Steps = nil
	if got := scenarioFocus(sc); got != (grid.Vec3i{X: 32, Z: -16}) {
		t.Fatalf("focus=%v, want chunk corner", got)
	}
}

func TestRun_StepsAndQuits(t *testing.T) {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer s.Fini()
	s.SetSize(40, 20)

	eng := engine.New(engine.Config{RunID: "t"})
	for _, r := range "nnq" {
		if err := s.PostEvent(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	run(s, eng, grid.Vec3i{}, nil)

	if got := eng.CurrentTick(); got != 3 {
		t.Fatalf("tick=%d, want 3", got)
	}
}
