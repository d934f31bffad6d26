package pipeline

import "time"

// InterruptedReason is the pause reason given to tasks whose stage execution
// was lost to a process restart.
const InterruptedReason = "interrupted by restart"

// RestoreInterrupted loads persisted states into the registry. A task that
// had a stage running when it was saved cannot pick that run up again, so it
// comes back paused at the same stage; Resume re-runs the stage. It returns
// the number of tasks that were marked interrupted.
func RestoreInterrupted(reg *Registry, states []*TaskState, now time.Time) (int, error) {
	interrupted := 0
	for _, st := range states {
		st = st.Clone()
		if interruptedRun(st) {
			st.RunID = ""
			if !st.Paused {
				st.Paused = true
				st.PauseReason = InterruptedReason
				ts := now
				st.PauseTimestamp = &ts
			}
			st.record("Task paused: "+InterruptedReason, 0, now)
			interrupted++
		}
		if err := reg.Restore(st); err != nil {
			return interrupted, err
		}
	}
	return interrupted, nil
}

func interruptedRun(t *TaskState) bool {
	if t.Complete || t.AwaitingUserApproval || !t.CurrentStage.Valid() {
		return false
	}
	if t.InFlight() {
		return true
	}
	switch t.Status(t.CurrentStage) {
	case StatusInProgress, StatusNeedsRevision:
		return true
	}
	return false
}
