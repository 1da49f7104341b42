// Package summary renders the final ENTRY/EXIT/TOTAL snapshot of a run.
package summary

import (
	"fmt"
	"io"
	"math"
	"time"

	"FootfallCounter/counter"
)

// DefaultHold is how long the summary overlay stays on screen.
const DefaultHold = 2 * time.Second

type View struct {
	Entry int `json:"entry"`
	Exit  int `json:"exit"`
	Total int `json:"total"`
}

func Report(counts counter.Counts) View {
	return View{
		Entry: counts.Entry,
		Exit:  counts.Exit,
		Total: counts.Total(),
	}
}

// Lines are the overlay text rows, title first.
func (v View) Lines() []string {
	return []string{
		"FINAL FOOTFALL SUMMARY",
		fmt.Sprintf("ENTRY COUNT : %d", v.Entry),
		fmt.Sprintf("EXIT COUNT  : %d", v.Exit),
		fmt.Sprintf("TOTAL COUNT : %d", v.Total),
	}
}

// HoldFrames is round(fps * hold). A valid frame rate always yields at least one
// frame; an unknown or broken one yields none.
func HoldFrames(fps float64, hold time.Duration) int {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 || hold <= 0 {
		return 0
	}
	n := int(math.Round(fps * hold.Seconds()))
	if n < 1 {
		return 1
	}
	return n
}

func WriteTerminal(w io.Writer, v View) error {
	_, err := fmt.Fprintf(w, "\nCOMPLETED\nENTRY : %d\nEXIT  : %d\nTOTAL : %d\n", v.Entry, v.Exit, v.Total)
	return err
}
