package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "rednet.ai/internal/persistence/log"
	"rednet.ai/internal/scenario"
	"rednet.ai/internal/sim/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		scenarioPath = flag.String("scenario", "", "path to scenario .yaml")
		verifyDir    = flag.String("verify", "", "run dir containing events/events-*.jsonl.zst to compare against (optional)")
		outDir       = flag.String("out", "", "write the replayed tick and op logs under this run dir (optional)")
		jsonOut      = flag.Bool("json", false, "print the result as JSON")
		verbose      = flag.Bool("v", false, "log engine output")
	)
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "missing -scenario")
		return 2
	}

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load scenario:", err)
		return 2
	}

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := log.New(logOut, "[replay] ", log.LstdFlags|log.Lmicroseconds)

	eng := engine.New(engine.Config{RunID: "replay", TickRateHz: 20, Logger: logger})
	rec := &recorder{}
	eng.AddSink(rec)

	runner := scenario.NewRunner(eng, logger)
	if *outDir != "" {
		tl := persistlog.NewTickLogger(*outDir)
		defer tl.Close()
		eng.AddSink(tl)
		ol := persistlog.NewOpLogger(*outDir)
		defer ol.Close()
		runner.RecordOps(ol)
	}

	start := time.Now()
	res, runErr := runner.Run(context.Background(), sc)
	elapsed := time.Since(start)
	if runErr != nil && !errors.Is(runErr, scenario.ErrExpectations) {
		fmt.Fprintln(os.Stderr, "run:", runErr)
		return 1
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	} else {
		printSummary(res, elapsed)
	}

	if *verifyDir != "" {
		recorded, err := persistlog.ReadTicks(*verifyDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read events:", err)
			return 1
		}
		checked, err := verify(rec.entries, recorded)
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify:", err)
			return 1
		}
		fmt.Printf("verify ok: checked=%s ticks\n", humanize.Comma(int64(checked)))
	}

	if runErr != nil {
		return 1
	}
	return 0
}

type recorder struct {
	entries []engine.TickEntry
}

func (r *recorder) WriteTick(e engine.TickEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func printSummary(res scenario.Result, elapsed time.Duration) {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(res.Ticks) / elapsed.Seconds()
	}
	fmt.Printf("scenario %q: %s steps, %s ticks in %s (%s), %s expectations\n",
		res.Name,
		humanize.Comma(int64(res.Steps)),
		humanize.Comma(int64(res.Ticks)),
		elapsed.Round(time.Microsecond),
		humanize.SIWithDigits(rate, 1, "tick/s"),
		humanize.Comma(int64(res.Expectations)),
	)
	fmt.Printf("last tick=%d digest=%s\n", res.LastTick, res.Digest)
	for _, f := range res.Failures {
		fmt.Println("FAIL", f.String())
	}
}

// verify compares digests and network levels for every tick present in both
// streams. The recorded run may continue past the end of the scenario.
func verify(replayed, recorded []engine.TickEntry) (int, error) {
	byTick := make(map[uint64]engine.TickEntry, len(recorded))
	for _, e := range recorded {
		byTick[e.Tick] = e
	}
	checked := 0
	for _, got := range replayed {
		want, ok := byTick[got.Tick]
		if !ok {
			continue
		}
		if got.Digest != want.Digest {
			return checked, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", got.Tick, got.Digest, want.Digest)
		}
		if len(got.Networks) != len(want.Networks) {
			return checked, fmt.Errorf("network count mismatch at tick %d: got=%d want=%d", got.Tick, len(got.Networks), len(want.Networks))
		}
		for i := range got.Networks {
			g, w := got.Networks[i], want.Networks[i]
			if g.ID != w.ID || g.Levels != w.Levels {
				return checked, fmt.Errorf("network %d differs at tick %d: got=%v want=%v", w.ID, got.Tick, g.Levels, w.Levels)
			}
		}
		checked++
	}
	if checked == 0 && len(replayed) > 0 {
		return 0, fmt.Errorf("no overlapping ticks (replayed %d, recorded %d)", len(replayed), len(recorded))
	}
	return checked, nil
}
