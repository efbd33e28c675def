package trainer

import (
	"sync"
	"time"

	"aura-trainer-service/internal/speech"
)

// Playback drives a speech.Synthesizer to pronounce words aloud. A new Speak
// supersedes any in-flight utterance; there is no queue. OnStarted fires when
// synthesis begins (the orchestrator mutes the listener there) and OnEnded
// fires a settle delay after synthesis finishes, so the microphone does not
// pick up the echo tail of the synthesized voice.
type Playback struct {
	engine    speech.Synthesizer
	lang      string
	settle    time.Duration
	onStarted func()
	onEnded   func()

	mu          sync.Mutex
	speaking    bool
	closed      bool
	settleTimer *time.Timer
}

const defaultSettleDelay = 350 * time.Millisecond

func NewPlayback(engine speech.Synthesizer, lang string, settle time.Duration, onStarted, onEnded func()) *Playback {
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	return &Playback{
		engine:    engine,
		lang:      lang,
		settle:    settle,
		onStarted: onStarted,
		onEnded:   onEnded,
	}
}

// Speak cancels any in-flight utterance and begins synthesizing text.
func (p *Playback) Speak(text string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if p.settleTimer != nil {
		p.settleTimer.Stop()
	}
	p.mu.Unlock()

	if err := p.engine.Cancel(); err != nil {
		return err
	}
	return p.engine.Speak(text, p.lang)
}

// HandleEvent feeds one synthesizer event into the controller.
func (p *Playback) HandleEvent(ev speech.SynthesizerEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	switch ev.Type {
	case speech.PlaybackStarted:
		p.speaking = true
		p.mu.Unlock()
		if p.onStarted != nil {
			p.onStarted()
		}
	case speech.PlaybackEnded:
		p.speaking = false
		if p.settleTimer != nil {
			p.settleTimer.Stop()
		}
		p.settleTimer = time.AfterFunc(p.settle, p.settled)
		p.mu.Unlock()
	default:
		p.mu.Unlock()
	}
}

func (p *Playback) settled() {
	p.mu.Lock()
	if p.closed || p.speaking {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if p.onEnded != nil {
		p.onEnded()
	}
}

// Speaking reports whether an utterance is currently playing.
func (p *Playback) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Close cancels playback and drops all later events. Idempotent.
func (p *Playback) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.settleTimer != nil {
		p.settleTimer.Stop()
	}
	p.mu.Unlock()
	_ = p.engine.Cancel()
}
