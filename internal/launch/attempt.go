package launch

import "errors"

// State is the outcome of a launch attempt.
type State string

const (
	Attempting      State = "Attempting"
	Succeeded       State = "Succeeded"
	BlockedByUpdate State = "BlockedByUpdate"
	OtherFailure    State = "OtherFailure"
)

const (
	LabelBack         = "Back"
	LabelLaunchAnyway = "Launch anyway"
)

// Recovery is an action offered after a failed launch.
type Recovery struct {
	Label string
	// Force re-invokes the launch bypassing the update check. Back leaves it false.
	Force bool
}

// Outcome classifies the result of Launch.
func Outcome(err error) State {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, ErrUpdatePending):
		return BlockedByUpdate
	}
	return OtherFailure
}

// Recoveries lists the actions offered for a launch in state s. Only an
// update-blocked launch can be forced.
func Recoveries(s State) []Recovery {
	switch s {
	case BlockedByUpdate:
		return []Recovery{{Label: LabelBack}, {Label: LabelLaunchAnyway, Force: true}}
	case OtherFailure:
		return []Recovery{{Label: LabelBack}}
	}
	return nil
}
