// Package view reconciles queue snapshots into the visitor and
// administrator presentations. Every render starts from the snapshot alone;
// nothing from a previous render survives except the rolling wait series.
//
// Views are not safe for concurrent use. The poll task that drives them
// applies results one at a time, so it is their only writer; readers get
// copies through Frame.
package view

import (
	"math"
	"strconv"

	"qms/kiosk-service/internal/models"
)

const placeholderWait = "-- min"

type VisitorFrame struct {
	EstimatedWait string `json:"estimated_wait"`
}

// VisitorView owns the aggregate estimated-wait label on the landing page.
type VisitorView struct {
	label string
}

func NewVisitorView() *VisitorView {
	return &VisitorView{label: placeholderWait}
}

func (v *VisitorView) Render(snapshot models.QueueSnapshot) {
	v.label = WaitLabel(snapshot.Stats.AvgWaitTime)
}

func (v *VisitorView) Frame() VisitorFrame {
	return VisitorFrame{EstimatedWait: v.label}
}

// WaitLabel rounds minutes up to a whole number for display.
func WaitLabel(minutes float64) string {
	if minutes <= 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return "0 min"
	}
	return strconv.Itoa(int(math.Ceil(minutes))) + " min"
}
