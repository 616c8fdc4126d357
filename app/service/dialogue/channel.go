package dialogue

// Speech channel capability interfaces. The browser hosts the actual
// recognition/synthesis engines; adapters relay their events here. Both
// channels are callback-driven with no ordering guarantees, the
// controller ignores events that arrive in the wrong state.

type InputEventKind int

const (
	InputStarted InputEventKind = iota
	InputResult
	InputError
	InputEnded
)

type InputEvent struct {
	Kind       InputEventKind
	Transcript string
	Err        error
}

// SpeechInput is the microphone capture channel.
type SpeechInput interface {
	Start() error
	Stop()
	Events() <-chan InputEvent
}

type OutputEventKind int

const (
	OutputEnded OutputEventKind = iota
	OutputError
)

type OutputEvent struct {
	Kind OutputEventKind
	Err  error
}

type Utterance struct {
	Text   string
	Voice  string
	Lang   string
	Rate   float64
	Pitch  float64
	Volume float64
}

// SpeechOutput is the synthesis playback channel. Speak starts playback
// and completion arrives on Events; Cancel aborts anything pending.
type SpeechOutput interface {
	Speak(u Utterance) error
	Cancel()
	Events() <-chan OutputEvent
}
