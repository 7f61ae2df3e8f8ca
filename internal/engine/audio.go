package engine

import "github.com/pavelanni/voicetutor/internal/model"

// AudioSession tracks the recording of the current answer. It performs no
// transition checks: the recording layer is responsible for pairing Start
// with Stop.
type AudioSession struct {
	rec    model.AudioRecording
	notify func()
}

func newAudioSession(notify func()) *AudioSession {
	return &AudioSession{notify: notify}
}

// State returns a copy of the recording state.
func (a *AudioSession) State() model.AudioRecording {
	return a.rec
}

// Start begins a recording and resets the elapsed time.
func (a *AudioSession) Start() {
	a.rec.IsRecording = true
	a.rec.ElapsedSeconds = 0
	a.rec.Error = ""
	a.changed()
}

// Stop ends the recording and stores the file it produced.
func (a *AudioSession) Stop(filePath string) {
	a.rec.IsRecording = false
	a.rec.ArtifactPath = filePath
	a.changed()
}

// StopImmediately ends the recording without keeping an artifact (cancel).
func (a *AudioSession) StopImmediately() {
	a.rec.IsRecording = false
	a.rec.ArtifactPath = ""
	a.changed()
}

// Tick adds seconds to the elapsed time while recording.
func (a *AudioSession) Tick(seconds int) {
	if !a.rec.IsRecording || seconds <= 0 {
		return
	}
	a.rec.ElapsedSeconds += seconds
	a.changed()
}

// Fail records an error reported by the recording layer and stops recording.
func (a *AudioSession) Fail(msg string) {
	a.rec.IsRecording = false
	a.rec.Error = msg
	a.changed()
}

// Reset returns the session to idle.
func (a *AudioSession) Reset() {
	a.rec = model.AudioRecording{}
	a.changed()
}

func (a *AudioSession) changed() {
	if a.notify != nil {
		a.notify()
	}
}
