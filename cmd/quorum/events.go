package main

import (
	"github.com/fatih/color"

	"github.com/quorumhq/quorum/internal/orchestrator"
)

// watchEvents consumes the engine's event stream for one request and
// prints progress lines when verbose. The returned stop function ends
// the watcher and waits for it to drain.
func watchEvents(ch <-chan orchestrator.Event, verbose bool) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case evt := <-ch:
				if verbose {
					printEvent(evt)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func printEvent(evt orchestrator.Event) {
	dim := color.New(color.Faint)
	switch evt.Type {
	case orchestrator.EventClassified:
		dim.Printf("  · classified as %s\n", evt.Message)
	case orchestrator.EventPlanBuilt:
		dim.Printf("  · plan ready (%s)\n", evt.Message)
	case orchestrator.EventTaskDispatched:
		dim.Printf("  · %s → %s\n", evt.TaskID, evt.WorkerID)
	case orchestrator.EventTaskRetried:
		dim.Printf("  · %s retrying\n", evt.TaskID)
	case orchestrator.EventTaskFailed:
		dim.Printf("  · %s failed\n", evt.TaskID)
	case orchestrator.EventTaskCompleted:
		dim.Printf("  · %s done\n", evt.TaskID)
	case orchestrator.EventPlanExtended:
		dim.Printf("  · plan extended after %s\n", evt.TaskID)
	}
}
