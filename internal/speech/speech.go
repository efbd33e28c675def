// Package speech defines the capability interfaces for the platform speech
// engines the trainer drives. The engines themselves live on the far side of
// the transport (the learner's browser); the service sends commands through
// these interfaces and receives engine events as values pushed back in.
package speech

// ErrorKind classifies recognizer faults. Only NotAllowed is fatal; every
// other kind is treated as recoverable and triggers a restart.
type ErrorKind string

const (
	// ErrorNotAllowed means microphone or recognition permission was denied.
	ErrorNotAllowed ErrorKind = "not-allowed"
	// ErrorNoSpeech means the engine gave up after a silent stretch.
	ErrorNoSpeech ErrorKind = "no-speech"
	// ErrorAborted means the engine was torn down out from under the session.
	ErrorAborted ErrorKind = "aborted"
	// ErrorUnknown covers every other engine-reported condition.
	ErrorUnknown ErrorKind = "unknown"
)

// Fatal reports whether a fault cannot be healed by restarting the engine.
func (k ErrorKind) Fatal() bool {
	return k == ErrorNotAllowed
}

// KindOf maps a raw engine error string onto an ErrorKind.
func KindOf(raw string) ErrorKind {
	switch raw {
	case string(ErrorNotAllowed), "service-not-allowed":
		return ErrorNotAllowed
	case string(ErrorNoSpeech):
		return ErrorNoSpeech
	case string(ErrorAborted):
		return ErrorAborted
	default:
		return ErrorUnknown
	}
}

// RecognizerEventType enumerates the events a recognition engine reports.
type RecognizerEventType string

const (
	// RecognizerStarted confirms the engine is capturing audio.
	RecognizerStarted RecognizerEventType = "started"
	// RecognizerEnded signals the engine stopped, requested or not.
	RecognizerEnded RecognizerEventType = "ended"
	// RecognizerResult carries an interim or final transcript.
	RecognizerResult RecognizerEventType = "result"
	// RecognizerError carries an engine fault.
	RecognizerError RecognizerEventType = "error"
)

// RecognizerEvent is one event from the recognition engine. Result events
// carry one or more alternative transcripts ordered by engine confidence.
type RecognizerEvent struct {
	Type         RecognizerEventType `json:"event"`
	Alternatives []string            `json:"alternatives,omitempty"`
	Final        bool                `json:"final,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Transcript returns the engine's best guess for a result event.
func (e RecognizerEvent) Transcript() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0]
}

// Recognizer is the command side of a speech-to-text engine. Start requests
// activation; the engine confirms asynchronously with a Started event. Both
// methods must be safe to call in any engine state.
type Recognizer interface {
	Start() error
	Stop() error
}

// SynthesizerEventType enumerates text-to-speech playback events.
type SynthesizerEventType string

const (
	// PlaybackStarted means synthesis began; the listener must be muted.
	PlaybackStarted SynthesizerEventType = "started"
	// PlaybackEnded means the utterance finished or was cancelled.
	PlaybackEnded SynthesizerEventType = "ended"
)

// SynthesizerEvent is one playback event from the text-to-speech engine.
type SynthesizerEvent struct {
	Type SynthesizerEventType `json:"event"`
}

// Synthesizer is the command side of a text-to-speech engine. Speak
// supersedes any in-flight utterance; there is no queue.
type Synthesizer interface {
	Speak(text, lang string) error
	Cancel() error
}
