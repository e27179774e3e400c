package view

import (
	"context"

	"qms/kiosk-service/internal/queuestatus"
)

// Synchronizer feeds each applied poll result to both views and publishes
// the new frames. Nil views and callbacks are skipped.
type Synchronizer struct {
	Visitor   *VisitorView
	Admin     *AdminView
	OnVisitor func(VisitorFrame)
	OnAdmin   func(AdminFrame)
}

func (s *Synchronizer) Apply(result queuestatus.Result) {
	if s.Visitor != nil {
		s.Visitor.Render(result.Snapshot)
		if s.OnVisitor != nil {
			s.OnVisitor(s.Visitor.Frame())
		}
	}
	if s.Admin != nil {
		s.Admin.Render(result.Snapshot, result.At)
		if s.OnAdmin != nil {
			s.OnAdmin(s.Admin.Frame())
		}
	}
}

// Mount starts polling into the synchronizer. The caller stops the returned
// task when the view is torn down.
func (s *Synchronizer) Mount(ctx context.Context, poller *queuestatus.Poller) *queuestatus.Task {
	return poller.Start(ctx, s.Apply)
}
