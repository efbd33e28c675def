package trainer

import (
	"sync"
	"time"

	"aura-trainer-service/internal/match"
	"aura-trainer-service/internal/speech"
)

// Recognition drives a speech.Recognizer through the lifetime of a training
// round: it arms the matcher for the current word, restarts the engine when
// it dies mid-word, and suppresses results once an outcome is decided.
//
// Some recognition engines end a session on their own after a pause in
// speech. Two mechanisms heal this: the Ended handler schedules an immediate
// restart, and a watchdog ticker re-issues Start whenever the session is
// supposed to be listening but is not. Both back off while playback is
// running, after a match, and after a fatal fault.
type Recognition struct {
	engine speech.Recognizer

	onResult    func(transcript string)
	onMatch     func(transcript string)
	onListening func(listening bool)
	onError     func(kind speech.ErrorKind)

	watchdogInterval time.Duration
	restartDelay     time.Duration

	mu           sync.Mutex
	target       string
	alts         []string
	wantActive   bool
	listening    bool
	starting     bool
	suppressed   bool
	busy         bool
	closed       bool
	restartTimer *time.Timer
	watchdogStop chan struct{}
}

// RecognitionCallbacks carries the event handlers a Recognition reports into.
// OnError only fires for fatal faults; recoverable ones self-heal silently.
type RecognitionCallbacks struct {
	OnResult    func(transcript string)
	OnMatch     func(transcript string)
	OnListening func(listening bool)
	OnError     func(kind speech.ErrorKind)
}

const (
	defaultWatchdogInterval = 1500 * time.Millisecond
	defaultRestartDelay     = 150 * time.Millisecond
)

// NewRecognition wraps engine and starts the watchdog. The caller must call
// Close to stop it.
func NewRecognition(engine speech.Recognizer, cb RecognitionCallbacks, watchdogInterval, restartDelay time.Duration) *Recognition {
	if watchdogInterval <= 0 {
		watchdogInterval = defaultWatchdogInterval
	}
	if restartDelay <= 0 {
		restartDelay = defaultRestartDelay
	}
	r := &Recognition{
		engine:           engine,
		onResult:         cb.OnResult,
		onMatch:          cb.OnMatch,
		onListening:      cb.OnListening,
		onError:          cb.OnError,
		watchdogInterval: watchdogInterval,
		restartDelay:     restartDelay,
		watchdogStop:     make(chan struct{}),
	}
	go r.watchdog()
	return r
}

// SetTarget arms matching for the next word and lifts result suppression.
func (r *Recognition) SetTarget(word string, alts []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = word
	r.alts = alts
	r.suppressed = false
}

// Start requests engine activation. It is idempotent: a session that is
// already listening or mid-activation is left alone.
func (r *Recognition) Start() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.wantActive = true
	if r.listening || r.starting || r.busy {
		r.mu.Unlock()
		return nil
	}
	r.starting = true
	r.mu.Unlock()

	if err := r.engine.Start(); err != nil {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
		return err
	}
	return nil
}

// Stop forces the engine to end and disables auto-restart until the next
// Start. Idempotent.
func (r *Recognition) Stop() error {
	r.mu.Lock()
	r.wantActive = false
	r.starting = false
	if r.restartTimer != nil {
		r.restartTimer.Stop()
	}
	r.mu.Unlock()
	return r.engine.Stop()
}

// Suppress drops all further results until the next SetTarget. Called by the
// orchestrator once an outcome is recorded for the current word.
func (r *Recognition) Suppress() {
	r.mu.Lock()
	r.suppressed = true
	r.mu.Unlock()
}

// Suspend mutes the session while speech playback runs so the engine cannot
// hear its own voice.
func (r *Recognition) Suspend() {
	r.mu.Lock()
	r.busy = true
	r.mu.Unlock()
	_ = r.engine.Stop()
}

// Resume lifts a playback suspension and restarts the engine if the session
// is still supposed to be listening.
func (r *Recognition) Resume() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
	r.tryStart()
}

// Listening reports the engine's last confirmed state.
func (r *Recognition) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// HandleEvent feeds one engine event into the session. Events arriving after
// Close are dropped.
func (r *Recognition) HandleEvent(ev speech.RecognizerEvent) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	switch ev.Type {
	case speech.RecognizerStarted:
		r.listening = true
		r.starting = false
		r.mu.Unlock()
		r.notifyListening(true)

	case speech.RecognizerEnded:
		r.listening = false
		r.starting = false
		restart := r.wantActive && !r.busy && !r.suppressed
		r.mu.Unlock()
		r.notifyListening(false)
		if restart {
			r.scheduleRestart()
		}

	case speech.RecognizerResult:
		if r.suppressed || r.busy {
			r.mu.Unlock()
			return
		}
		text := ev.Transcript()
		if text == "" {
			r.mu.Unlock()
			return
		}
		matched := match.Matches(text, r.target, r.alts)
		if matched {
			r.suppressed = true
		}
		r.mu.Unlock()
		if matched {
			if r.onMatch != nil {
				r.onMatch(text)
			}
		} else if r.onResult != nil {
			r.onResult(text)
		}

	case speech.RecognizerError:
		kind := speech.KindOf(ev.Error)
		r.listening = false
		r.starting = false
		if kind.Fatal() {
			r.wantActive = false
			r.mu.Unlock()
			r.notifyListening(false)
			if r.onError != nil {
				r.onError(kind)
			}
			return
		}
		restart := r.wantActive && !r.busy && !r.suppressed
		r.mu.Unlock()
		r.notifyListening(false)
		if restart {
			r.scheduleRestart()
		}

	default:
		r.mu.Unlock()
	}
}

// Close stops the watchdog and the engine. Idempotent; all later events are
// dropped.
func (r *Recognition) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.wantActive = false
	if r.restartTimer != nil {
		r.restartTimer.Stop()
	}
	close(r.watchdogStop)
	r.mu.Unlock()
	_ = r.engine.Stop()
}

func (r *Recognition) notifyListening(listening bool) {
	if r.onListening != nil {
		r.onListening(listening)
	}
}

func (r *Recognition) scheduleRestart() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.restartTimer != nil {
		r.restartTimer.Stop()
	}
	r.restartTimer = time.AfterFunc(r.restartDelay, r.tryStart)
	r.mu.Unlock()
}

// tryStart re-issues Start when the session should be active but is not.
func (r *Recognition) tryStart() {
	r.mu.Lock()
	if r.closed || !r.wantActive || r.busy || r.suppressed || r.listening || r.starting {
		r.mu.Unlock()
		return
	}
	r.starting = true
	r.mu.Unlock()

	if err := r.engine.Start(); err != nil {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
	}
}

// watchdog guards against silent engine death: an engine that stopped
// without reporting Ended leaves the session not listening while wantActive
// is still set, and the next tick revives it.
func (r *Recognition) watchdog() {
	ticker := time.NewTicker(r.watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.watchdogStop:
			return
		case <-ticker.C:
			r.tryStart()
		}
	}
}
