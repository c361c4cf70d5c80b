package launcher

import (
	"fmt"
	"time"

	"github.com/josephgoksu/taskfleet/internal/reconcile"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// Eligible picks the items worth launching from a reconciled snapshot:
// accepted by filter, without a terminal result, without a worker that may
// still be writing its log or result, and with every dependency already
// completed. relaunch allows items whose worker is launched, running or
// stalled to be started again. skipped maps each rejected item to the reason.
func Eligible(snap *reconcile.Snapshot, filter task.Filter, relaunch bool) (eligible []task.WorkItem, skipped map[string]string) {
	skipped = make(map[string]string)
	states := make(map[string]reconcile.ItemState, len(snap.Items))
	items := make([]task.WorkItem, 0, len(snap.Items))
	for _, st := range snap.Items {
		states[st.Item.ID] = st
		items = append(items, st.Item)
	}

	for _, it := range filter.Apply(items) {
		st := states[it.ID]
		if reason, busy := occupied(st, snap.PolledAt); busy && !(relaunch && st.Result == nil) {
			skipped[it.ID] = reason
			continue
		}
		if dep, ok := firstIncomplete(it, states); ok {
			skipped[it.ID] = fmt.Sprintf("waiting on %s", dep)
			continue
		}
		eligible = append(eligible, it)
	}
	return eligible, skipped
}

// occupied reports whether st already has an outcome or a worker that
// owns its log and result files.
func occupied(st reconcile.ItemState, now time.Time) (string, bool) {
	switch st.State {
	case reconcile.StateCompleted, reconcile.StateFailed, reconcile.StateBlocked:
		return fmt.Sprintf("already %s", st.State), true
	case reconcile.StateRunning:
		return "worker running", true
	case reconcile.StateStalled:
		return "worker stalled (" + st.Note + ")", true
	case reconcile.StatePending:
		if !st.LaunchedAt.IsZero() {
			return fmt.Sprintf("launched %s ago, no output yet", now.Sub(st.LaunchedAt).Truncate(time.Second)), true
		}
	}
	return "", false
}

func firstIncomplete(it task.WorkItem, states map[string]reconcile.ItemState) (string, bool) {
	for _, dep := range it.DependsOn {
		if states[dep].State != reconcile.StateCompleted {
			return dep, true
		}
	}
	return "", false
}
