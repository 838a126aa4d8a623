package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"

	"rednet.ai/internal/render"
	"rednet.ai/internal/scenario"
	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
)

func main() {
	scenarioPath := flag.String("scenario", "", "scenario to load before viewing (optional)")
	flag.Parse()

	logger := log.New(io.Discard, "", 0)
	eng := engine.New(engine.Config{RunID: "viewer", Logger: logger})

	var messages []string
	var focus grid.Vec3i
	if *scenarioPath != "" {
		sc, err := scenario.Load(*scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		focus = scenarioFocus(sc)
		res, err := scenario.NewRunner(eng, logger).Run(context.Background(), sc)
		switch {
		case errors.Is(err, scenario.ErrExpectations):
			for _, f := range res.Failures {
				messages = append(messages, "FAIL "+f.String())
			}
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		default:
			messages = append(messages, fmt.Sprintf("%s: %d expectations ok", res.Name, res.Expectations))
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	run(screen, eng, focus, messages)
}

// run owns the screen until the user quits. The engine is stepped only from here.
func run(screen tcell.Screen, eng *engine.Engine, focus grid.Vec3i, messages []string) {
	r := render.NewRenderer(screen)
	r.SetLayer(focus.Y)
	r.CenterOn(focus.X, focus.Z)

	ctx := context.Background()
	entry, ok := eng.Latest()
	if !ok {
		entry = eng.StepOnce(ctx)
	}

	for {
		r.DrawFrame(eng.Store(), entry, messages)

		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
			r = resized(screen, r)
		case *tcell.EventKey:
			switch a := keyToAction(ev); a {
			case ActionQuit:
				return
			case ActionPanN, ActionPanS, ActionPanE, ActionPanW:
				dx, dz := panDelta(a)
				r.Camera().Pan(dx, dz)
			case ActionLayerUp:
				r.SetLayer(r.Layer() + 1)
			case ActionLayerDown:
				r.SetLayer(r.Layer() - 1)
			case ActionStep:
				entry = eng.StepOnce(ctx)
			case ActionStepTen:
				for i := 0; i < 10; i++ {
					entry = eng.StepOnce(ctx)
				}
			case ActionCenter:
				r.SetLayer(focus.Y)
				r.CenterOn(focus.X, focus.Z)
			}
		case nil:
			return
		}
	}
}

// resized rebuilds the renderer for the new screen size, keeping layer and view center.
func resized(screen tcell.Screen, old *render.Renderer) *render.Renderer {
	cam := old.Camera()
	cx := cam.OffsetX + (cam.ViewWidth/2)/2
	cz := cam.OffsetZ + cam.ViewHeight/2
	r := render.NewRenderer(screen)
	r.SetLayer(old.Layer())
	r.CenterOn(cx, cz)
	return r
}

// scenarioFocus picks the first placed position, falling back to the first chunk's corner.
func scenarioFocus(sc *scenario.Scenario) grid.Vec3i {
	for _, st := range sc.Steps {
		if len(st.Pos) == 3 {
			return grid.Vec3i{X: st.Pos[0], Y: st.Pos[1], Z: st.Pos[2]}
		}
	}
	if len(sc.Chunks) > 0 && len(sc.Chunks[0]) == 2 {
		return grid.Vec3i{X: sc.Chunks[0][0] * grid.ChunkSize, Z: sc.Chunks[0][1] * grid.ChunkSize}
	}
	return grid.Vec3i{}
}
