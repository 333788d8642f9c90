package lifecycle

// State is a step of the server's life. States only move forward.
type State int32

const (
	Starting State = iota
	Listening
	BrowserOpened
	Serving
	Draining
	Stopped
)

var stateNames = [...]string{
	Starting:      "starting",
	Listening:     "listening",
	BrowserOpened: "browser-opened",
	Serving:       "serving",
	Draining:      "draining",
	Stopped:       "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
