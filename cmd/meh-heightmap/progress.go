package main

import (
	"fmt"
	"time"

	"github.com/gruppe-adler/meh-heightmap/internal/pipeline"
)

// printProgress prints the phases and progress of a run until events is
// closed, then closes done
func printProgress(events <-chan pipeline.Event, done chan<- struct{}) {
	defer close(done)

	var phase string
	var timer time.Time
	total, finished, reported := 0, 0, 0

	for ev := range events {
		switch ev := ev.(type) {
		case pipeline.PhaseEvent:
			if phase != "" {
				fmt.Printf("✔️  %s in %s\n", phase, time.Since(timer).String())
			}
			phase = ""
			if ev.Label == "Completed" {
				continue
			}

			phase = ev.Label
			timer = time.Now()
			fmt.Printf("▶️  %s\n", phase)

		case pipeline.TotalEvent:
			total += ev.N

		case pipeline.ProgressEvent:
			finished++
			if total == 0 {
				continue
			}
			if pct := finished * 100 / total; pct/25 > reported/25 {
				reported = pct
				fmt.Printf("ℹ️  %d%% (%d/%d)\n", pct, finished, total)
			}
		}
	}
}
