package trainer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"aura-trainer-service/internal/speech"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	failNext int // number of Start calls to fail
}

func (f *fakeRecognizer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("engine busy")
	}
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type recognitionRecorder struct {
	mu        sync.Mutex
	results   []string
	matches   []string
	listening []bool
	errors    []speech.ErrorKind
}

func (r *recognitionRecorder) callbacks() RecognitionCallbacks {
	return RecognitionCallbacks{
		OnResult: func(text string) {
			r.mu.Lock()
			r.results = append(r.results, text)
			r.mu.Unlock()
		},
		OnMatch: func(text string) {
			r.mu.Lock()
			r.matches = append(r.matches, text)
			r.mu.Unlock()
		},
		OnListening: func(on bool) {
			r.mu.Lock()
			r.listening = append(r.listening, on)
			r.mu.Unlock()
		},
		OnError: func(kind speech.ErrorKind) {
			r.mu.Lock()
			r.errors = append(r.errors, kind)
			r.mu.Unlock()
		},
	}
}

func result(text string) speech.RecognizerEvent {
	return speech.RecognizerEvent{Type: speech.RecognizerResult, Alternatives: []string{text}}
}

func TestRecognitionMatchSuppressesFurtherResults(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), time.Hour, time.Millisecond)
	defer session.Close()

	session.SetTarget("two", []string{"to", "too"})
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})

	session.HandleEvent(result("hello"))
	session.HandleEvent(result("my two"))
	session.HandleEvent(result("two again")) // after the match: ignored
	session.HandleEvent(result("still ignored"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.matches) != 1 || rec.matches[0] != "my two" {
		t.Fatalf("expected one match for %q, got %v", "my two", rec.matches)
	}
	if len(rec.results) != 1 || rec.results[0] != "hello" {
		t.Fatalf("expected one plain result, got %v", rec.results)
	}
}

func TestRecognitionNewTargetLiftsSuppression(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), time.Hour, time.Millisecond)
	defer session.Close()

	session.SetTarget("one", nil)
	_ = session.Start()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})
	session.HandleEvent(result("one"))

	session.SetTarget("two", nil)
	session.HandleEvent(result("two"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.matches) != 2 {
		t.Fatalf("expected a match per word, got %v", rec.matches)
	}
}

func TestRecognitionRestartsAfterSpontaneousEnd(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), time.Hour, time.Millisecond)
	defer session.Close()

	session.SetTarget("one", nil)
	_ = session.Start()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerEnded})

	waitFor(t, func() bool { return engine.startCount() >= 2 }, "engine was not restarted")
}

func TestRecognitionStopDisablesRestart(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), 5*time.Millisecond, time.Millisecond)
	defer session.Close()

	session.SetTarget("one", nil)
	_ = session.Start()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})
	_ = session.Stop()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerEnded})

	time.Sleep(30 * time.Millisecond)
	if engine.startCount() != 1 {
		t.Fatalf("expected no restart after Stop, got %d starts", engine.startCount())
	}
}

func TestRecognitionFatalErrorStaysStopped(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), 5*time.Millisecond, time.Millisecond)
	defer session.Close()

	session.SetTarget("one", nil)
	_ = session.Start()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerError, Error: "not-allowed"})

	time.Sleep(30 * time.Millisecond)
	if engine.startCount() != 1 {
		t.Fatalf("expected no restart after a fatal fault, got %d starts", engine.startCount())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 1 || rec.errors[0] != speech.ErrorNotAllowed {
		t.Fatalf("expected a surfaced not-allowed fault, got %v", rec.errors)
	}
}

func TestRecognitionRecoverableErrorRestarts(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), time.Hour, time.Millisecond)
	defer session.Close()

	session.SetTarget("one", nil)
	_ = session.Start()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerError, Error: "no-speech"})

	waitFor(t, func() bool { return engine.startCount() >= 2 }, "engine was not restarted after no-speech")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 0 {
		t.Fatalf("recoverable faults should self-heal silently, got %v", rec.errors)
	}
}

func TestRecognitionWatchdogRevivesFailedStart(t *testing.T) {
	engine := &fakeRecognizer{failNext: 1}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), 5*time.Millisecond, time.Millisecond)
	defer session.Close()

	session.SetTarget("one", nil)
	if err := session.Start(); err == nil {
		t.Fatalf("expected the first start to fail")
	}

	waitFor(t, func() bool { return engine.startCount() >= 2 }, "watchdog never revived the engine")
}

func TestRecognitionSuspendMutesResults(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), time.Hour, time.Millisecond)
	defer session.Close()

	session.SetTarget("two", nil)
	_ = session.Start()
	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})

	session.Suspend()
	session.HandleEvent(result("two")) // the engine hearing its own voice
	rec.mu.Lock()
	matches := len(rec.matches)
	rec.mu.Unlock()
	if matches != 0 {
		t.Fatalf("expected results muted during playback")
	}

	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerEnded})
	session.Resume()
	waitFor(t, func() bool { return engine.startCount() >= 2 }, "resume did not restart the engine")
}

func TestRecognitionDropsEventsAfterClose(t *testing.T) {
	engine := &fakeRecognizer{}
	rec := &recognitionRecorder{}
	session := NewRecognition(engine, rec.callbacks(), time.Hour, time.Millisecond)

	session.SetTarget("one", nil)
	_ = session.Start()
	session.Close()
	session.Close() // idempotent

	session.HandleEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})
	session.HandleEvent(result("one"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.matches) != 0 || len(rec.listening) != 0 {
		t.Fatalf("expected all events dropped after close")
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("%s", msg)
}
