package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/quorumhq/quorum/pkg/models"
)

const traceContentWidth = 100

// printTrace renders the communication trace one step per line.
func printTrace(entries []models.TraceEntry) {
	fmt.Println(color.New(color.Bold).Sprint("Trace"))
	for _, e := range entries {
		content := e.Content
		if len(content) > traceContentWidth {
			content = content[:traceContentWidth-3] + "..."
		}
		fmt.Printf("  %3d  %s  %s → %s  %s\n",
			e.Step, kindLabel(e.Kind), e.From, e.To, content)
	}
}

// printFlow renders the condensed communication summary, one hop per line.
func printFlow(flow []models.FlowStep) {
	fmt.Println(color.New(color.Bold).Sprint("Flow"))
	for _, f := range flow {
		fmt.Printf("  %s → %s  (%s)\n", f.From, f.To, f.Kind)
	}
}

func kindLabel(kind models.MessageKind) string {
	switch kind {
	case models.KindRequest:
		return color.CyanString("%-14s", string(kind))
	case models.KindResponse:
		return color.GreenString("%-14s", string(kind))
	case models.KindDelegate:
		return color.YellowString("%-14s", string(kind))
	case models.KindFinalResponse:
		return color.New(color.Bold).Sprintf("%-14s", string(kind))
	default:
		return fmt.Sprintf("%-14s", string(kind))
	}
}
