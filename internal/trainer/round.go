package trainer

import (
	"context"
	"sync"
	"time"

	"aura-trainer-service/internal/domain"
	"aura-trainer-service/internal/speech"
)

// Phase is the trainer lifecycle state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhaseResult  Phase = "result"
)

// Outcome is the resolved result for the current word. It is assigned at
// most once per word; everything arriving after assignment is ignored.
type Outcome string

const (
	OutcomeNone      Outcome = "none"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// Snapshot is a consistent view of the round for the transport to stream.
type Snapshot struct {
	Phase      Phase   `json:"phase"`
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	Value      string  `json:"value"`
	Score      int     `json:"score"`
	TimeLeft   int     `json:"timeLeft"`
	Outcome    Outcome `json:"outcome"`
	Transcript string  `json:"transcript,omitempty"`
	Listening  bool    `json:"listening"`
}

// Result summarizes a finished round.
type Result struct {
	LessonID   string `json:"lessonId"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Stars      int    `json:"stars"`
	TotalStars int    `json:"totalStars"`
}

// Sink receives round output for delivery to the learner's client.
type Sink interface {
	RoundState(Snapshot)
	RoundCompleted(Result)
	RoundError(kind speech.ErrorKind)
}

// Config tunes the round's timing. Zero values fall back to production
// defaults; tests shrink them for determinism.
type Config struct {
	// CorrectAdvanceDelay is how long positive feedback stays on screen.
	CorrectAdvanceDelay time.Duration
	// IncorrectAdvanceDelay leaves room for the spoken correction to finish.
	IncorrectAdvanceDelay time.Duration
	// TickInterval is the countdown resolution, one second in production.
	TickInterval time.Duration
	// SettleDelay is the pause between playback end and listener resume.
	SettleDelay time.Duration
	// WatchdogInterval controls the recognition health check.
	WatchdogInterval time.Duration
	// RestartDelay is the pause before an engine restart attempt.
	RestartDelay time.Duration
	// Lang is the BCP-47 tag handed to the synthesizer.
	Lang string
}

func (c Config) withDefaults() Config {
	if c.CorrectAdvanceDelay <= 0 {
		c.CorrectAdvanceDelay = 1100 * time.Millisecond
	}
	if c.IncorrectAdvanceDelay <= 0 {
		c.IncorrectAdvanceDelay = 2100 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.Lang == "" {
		c.Lang = "en-US"
	}
	return c
}

// Round orchestrates one training session over a lesson: recognition and the
// countdown race per word, the first of match or expiry decides the outcome,
// and playback models the correct pronunciation after a miss. All state
// lives behind one mutex; the single-assignment outcome guard makes the race
// safe without double counting or double advancing.
type Round struct {
	ctx      context.Context
	lesson   domain.Lesson
	userID   string
	cfg      Config
	progress ProgressRepository
	sink     Sink

	recog     *Recognition
	playback  *Playback
	countdown *Countdown

	mu           sync.Mutex
	phase        Phase
	idx          int
	score        int
	timeLeft     int
	outcome      Outcome
	transcript   string
	listening    bool
	advancing    bool
	closed       bool
	advanceTimer *time.Timer
}

// NewRound wires a round over the given engines. The round starts Idle; the
// learner kicks it off with Start.
func NewRound(ctx context.Context, lesson domain.Lesson, userID string, rec speech.Recognizer, syn speech.Synthesizer, progress ProgressRepository, sink Sink, cfg Config) (*Round, error) {
	if len(lesson.Words) == 0 {
		return nil, domain.ErrEmptyLesson
	}
	cfg = cfg.withDefaults()

	r := &Round{
		ctx:       ctx,
		lesson:    lesson,
		userID:    userID,
		cfg:       cfg,
		progress:  progress,
		sink:      sink,
		countdown: NewCountdown(),
		phase:     PhaseIdle,
		outcome:   OutcomeNone,
		timeLeft:  lesson.TimerSeconds(),
	}
	r.recog = NewRecognition(rec, RecognitionCallbacks{
		OnResult:    r.handleResult,
		OnMatch:     r.handleMatch,
		OnListening: r.handleListening,
		OnError:     r.handleEngineError,
	}, cfg.WatchdogInterval, cfg.RestartDelay)
	r.playback = NewPlayback(syn, cfg.Lang, cfg.SettleDelay, r.handlePlaybackStarted, r.handlePlaybackEnded)
	return r, nil
}

// Start moves the round from Idle (or Result, for a retry) into Playing at
// word zero. Calling it while already Playing is a no-op.
func (r *Round) Start() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRoundClosed
	}
	if r.phase == PhasePlaying {
		r.mu.Unlock()
		return nil
	}
	r.phase = PhasePlaying
	r.idx = 0
	r.score = 0
	r.outcome = OutcomeNone
	r.transcript = ""
	r.timeLeft = r.lesson.TimerSeconds()
	r.advancing = false
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
	}
	word := r.lesson.Words[0]
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.recog.SetTarget(word.Word, word.Alts)
	r.emit(snap)
	return r.recog.Start()
}

// Reset retries the lesson from the first word.
func (r *Round) Reset() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRoundClosed
	}
	r.phase = PhaseIdle
	r.mu.Unlock()
	return r.Start()
}

// SpeakWord pronounces the current target on demand (the "listen" button).
func (r *Round) SpeakWord() error {
	r.mu.Lock()
	if r.closed || r.phase != PhasePlaying {
		r.mu.Unlock()
		return nil
	}
	word := r.lesson.Words[r.idx]
	r.mu.Unlock()
	return r.playback.Speak(word.Word)
}

// HandleRecognizerEvent relays an engine event from the transport.
func (r *Round) HandleRecognizerEvent(ev speech.RecognizerEvent) {
	r.recog.HandleEvent(ev)
}

// HandleSynthesizerEvent relays a playback event from the transport.
func (r *Round) HandleSynthesizerEvent(ev speech.SynthesizerEvent) {
	r.playback.HandleEvent(ev)
}

// Snapshot returns the current round state.
func (r *Round) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Close tears the round down: countdown, recognition, and playback all stop,
// and every late callback is dropped by the closed guard. Idempotent.
func (r *Round) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
	}
	r.mu.Unlock()

	r.countdown.Cancel()
	r.recog.Close()
	r.playback.Close()
}

func (r *Round) handleMatch(transcript string) {
	r.resolve(OutcomeCorrect, transcript)
}

func (r *Round) handleResult(transcript string) {
	r.mu.Lock()
	if r.closed || r.phase != PhasePlaying || r.outcome != OutcomeNone {
		r.mu.Unlock()
		return
	}
	r.transcript = transcript
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
}

// handleListening gates the countdown on active listening: time is not
// consumed while permission prompts or engine restarts are in flight.
func (r *Round) handleListening(listening bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.listening = listening
	runTimer := listening && r.phase == PhasePlaying && r.outcome == OutcomeNone
	remaining := r.timeLeft
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if runTimer {
		r.countdown.Start(remaining, r.cfg.TickInterval, r.handleTick, r.handleExpire)
	} else {
		r.countdown.Cancel()
	}
	r.emit(snap)
}

func (r *Round) handleTick(remaining int) {
	r.mu.Lock()
	if r.closed || r.phase != PhasePlaying || r.outcome != OutcomeNone {
		r.mu.Unlock()
		return
	}
	r.timeLeft = remaining
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(snap)
}

func (r *Round) handleExpire() {
	r.resolve(OutcomeIncorrect, "")
}

func (r *Round) handlePlaybackStarted() {
	r.recog.Suspend()
}

func (r *Round) handlePlaybackEnded() {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	// Always lift the suspension; the guards inside the recognition session
	// keep the engine stopped while the word is still resolved.
	r.recog.Resume()
}

func (r *Round) handleEngineError(kind speech.ErrorKind) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.countdown.Cancel()
	r.sink.RoundError(kind)
}

// resolve records the outcome for the current word. Whichever of match and
// expiry gets here first wins; the outcome check under the lock drops the
// loser, so score moves at most once per word and only one advance is ever
// scheduled.
func (r *Round) resolve(outcome Outcome, transcript string) {
	r.mu.Lock()
	if r.closed || r.phase != PhasePlaying || r.outcome != OutcomeNone || r.advancing {
		r.mu.Unlock()
		return
	}
	r.outcome = outcome
	r.advancing = true
	if transcript != "" {
		r.transcript = transcript
	}
	delay := r.cfg.IncorrectAdvanceDelay
	if outcome == OutcomeCorrect {
		r.score++
		delay = r.cfg.CorrectAdvanceDelay
	}
	word := r.lesson.Words[r.idx]
	snap := r.snapshotLocked()
	r.advanceTimer = time.AfterFunc(delay, r.advance)
	r.mu.Unlock()

	r.countdown.Cancel()
	r.recog.Suppress()
	_ = r.recog.Stop()
	if outcome == OutcomeIncorrect {
		_ = r.playback.Speak(word.Word)
	}
	r.emit(snap)
}

// advance moves to the next word or finalizes the round.
func (r *Round) advance() {
	r.mu.Lock()
	if r.closed || r.phase != PhasePlaying {
		r.mu.Unlock()
		return
	}
	r.advancing = false

	if r.idx+1 < len(r.lesson.Words) {
		r.idx++
		r.outcome = OutcomeNone
		r.transcript = ""
		r.timeLeft = r.lesson.TimerSeconds()
		word := r.lesson.Words[r.idx]
		snap := r.snapshotLocked()
		r.mu.Unlock()

		r.recog.SetTarget(word.Word, word.Alts)
		r.emit(snap)
		_ = r.recog.Start()
		return
	}

	r.phase = PhaseResult
	score := r.score
	total := len(r.lesson.Words)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	_ = r.recog.Stop()
	r.countdown.Cancel()

	stars := domain.StarsForScore(score, total)
	result := Result{
		LessonID: r.lesson.ID,
		Score:    score,
		Total:    total,
		Stars:    stars,
	}
	if r.progress != nil {
		if up, err := r.progress.SaveLessonResult(r.ctx, r.userID, r.lesson.ID, score, stars); err == nil {
			result.TotalStars = up.TotalStars
		}
	}

	r.emit(snap)
	r.sink.RoundCompleted(result)
}

func (r *Round) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:      r.phase,
		Index:      r.idx,
		Total:      len(r.lesson.Words),
		Value:      r.lesson.Words[r.idx].Value,
		Score:      r.score,
		TimeLeft:   r.timeLeft,
		Outcome:    r.outcome,
		Transcript: r.transcript,
		Listening:  r.listening,
	}
}

func (r *Round) emit(snap Snapshot) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if !closed {
		r.sink.RoundState(snap)
	}
}
