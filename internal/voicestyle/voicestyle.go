// Package voicestyle defines the closed set of five voice styles from
// spec.md §4.11, each bundling a system-prompt modifier, TTS prosody
// parameters, and a fast-layer feedback level.
package voicestyle

// Feedback controls how eagerly the fast layer produces an acknowledgment.
type Feedback string

const (
	FeedbackNone    Feedback = "none"
	FeedbackMinimal Feedback = "minimal"
	FeedbackVerbose Feedback = "verbose"
)

// Prosody carries the parameters passed to every TTS call in a turn.
type Prosody struct {
	SpeechRate   float64
	Exaggeration float64
}

// Style is one entry in the closed five-style set.
type Style struct {
	ID             string
	PromptModifier string
	Prosody        Prosody
	Feedback       Feedback
}

// AcknowledgmentsEnabled reports whether the fast layer should run at all
// for this style (spec.md §4.11: feedback=none disables it).
func (s Style) AcknowledgmentsEnabled() bool {
	return s.Feedback != FeedbackNone
}

const (
	Normal    = "normal"
	Formal    = "formal"
	Concise   = "concise"
	Immersive = "immersive"
	Learning  = "learning"
)

var styles = map[string]Style{
	Normal: {
		ID:             Normal,
		PromptModifier: "Speak in a natural, conversational tone.",
		Prosody:        Prosody{SpeechRate: 1.0, Exaggeration: 0.3},
		Feedback:       FeedbackMinimal,
	},
	Formal: {
		ID:             Formal,
		PromptModifier: "Speak formally and precisely, avoiding contractions and slang.",
		Prosody:        Prosody{SpeechRate: 0.95, Exaggeration: 0.1},
		Feedback:       FeedbackMinimal,
	},
	Concise: {
		ID:             Concise,
		PromptModifier: "Answer as briefly as possible; omit pleasantries.",
		Prosody:        Prosody{SpeechRate: 1.1, Exaggeration: 0.1},
		Feedback:       FeedbackNone,
	},
	Immersive: {
		ID:             Immersive,
		PromptModifier: "Stay in character; speak with rich, expressive narration.",
		Prosody:        Prosody{SpeechRate: 0.9, Exaggeration: 0.7},
		Feedback:       FeedbackVerbose,
	},
	Learning: {
		ID:             Learning,
		PromptModifier: "Explain your reasoning step by step, as if teaching a student.",
		Prosody:        Prosody{SpeechRate: 0.85, Exaggeration: 0.2},
		Feedback:       FeedbackVerbose,
	},
}

// Get resolves a style id, defaulting to Normal for unknown or empty ids.
func Get(id string) Style {
	if s, ok := styles[id]; ok {
		return s
	}
	return styles[Normal]
}
