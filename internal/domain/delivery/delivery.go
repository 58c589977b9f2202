package delivery

import "time"

type Outcome string

const (
	OutcomeDelivered     Outcome = "delivered"
	OutcomePublishFailed Outcome = "publish_failed"
	OutcomeResolveFailed Outcome = "resolve_failed"
	OutcomeDropped       Outcome = "dropped"
	OutcomeRejected      Outcome = "rejected"
)

// Report is the result of one notification's trip through the delivery path.
// Waited and Publish are zero for notifications that never reached the worker.
type Report struct {
	Channel string
	Op      string
	Path    string
	Outcome Outcome
	Err     error

	Waited  time.Duration
	Publish time.Duration
	Total   time.Duration
}
