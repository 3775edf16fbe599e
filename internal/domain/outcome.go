package domain

// OutcomeCode classifies how an engine invocation ended.
type OutcomeCode string

const (
	OutcomeApplied       OutcomeCode = "APPLIED"
	OutcomeNotApplicable OutcomeCode = "EVENT_NOT_APPLICABLE"
	OutcomeActionFailed  OutcomeCode = "ACTION_FAILED"
)

// Outcome is produced once per engine invocation. Callers use Success to
// decide whether the new status should be persisted; NotApplicable is a
// normal "nothing to do" result, not an error.
type Outcome struct {
	Success bool
	Code    OutcomeCode
	Detail  string
}

func Applied() Outcome {
	return Outcome{Success: true, Code: OutcomeApplied}
}

func NotApplicable(status OrderStatus, event LifecycleEvent) Outcome {
	return Outcome{
		Success: false,
		Code:    OutcomeNotApplicable,
		Detail:  "event " + string(event) + " not applicable to status " + string(status),
	}
}

func ActionFailed(err error) Outcome {
	return Outcome{
		Success: false,
		Code:    OutcomeActionFailed,
		Detail:  err.Error(),
	}
}
