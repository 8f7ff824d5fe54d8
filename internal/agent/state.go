package agent

// State names the phases of the request control loop. The loop always
// starts at Idle and returns to Idle, successful or not.
type State int

const (
	StateIdle State = iota
	StateMatchMemory
	StateFastReturn
	StatePlan
	StateGuard
	StateExecute
	StateReplan
	StateRecord
	StateCorrect
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateMatchMemory: "match_memory",
	StateFastReturn:  "fast_return",
	StatePlan:        "plan",
	StateGuard:       "guard",
	StateExecute:     "execute",
	StateReplan:      "replan",
	StateRecord:      "record",
	StateCorrect:     "correct",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
