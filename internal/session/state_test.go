package session

import "testing"

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "IDLE",
		StateListening:  "LISTENING",
		StateProcessing: "PROCESSING",
		StateGenerating: "GENERATING",
		StateSpeaking:   "SPEAKING",
		StateClosed:     "CLOSED",
		State(99):       "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
