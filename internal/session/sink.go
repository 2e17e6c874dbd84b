package session

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/logging"
)

// NoopSink discards progress reports.
type NoopSink struct{}

// Report implements the progress sink contract.
func (NoopSink) Report(string, string, int) {}

// StoreSink forwards progress reports into a session store. Writes are
// fire and forget: a failed update is logged at debug and dropped.
type StoreSink struct {
	store     Store
	sessionID string
}

// NewStoreSink creates a sink writing to the given session.
func NewStoreSink(store Store, sessionID string) *StoreSink {
	return &StoreSink{store: store, sessionID: sessionID}
}

// SessionID returns the session this sink writes to.
func (s *StoreSink) SessionID() string { return s.sessionID }

// Report pushes one checkpoint into the store.
func (s *StoreSink) Report(stage, message string, percent int) {
	if s.store == nil {
		return
	}
	status := StatusRunning
	if percent >= 100 {
		status = StatusCompleted
	}
	err := s.store.Update(s.sessionID, Progress{
		Stage:      stage,
		Message:    message,
		Status:     status,
		Percentage: percent,
	})
	if err != nil {
		logging.L().Debug("session update dropped",
			logging.Session(s.sessionID), zap.Error(err))
	}
}

// Fail marks the session as failed with a final message.
func (s *StoreSink) Fail(stage, message string) {
	if s.store == nil {
		return
	}
	err := s.store.Update(s.sessionID, Progress{
		Stage:   stage,
		Message: message,
		Status:  StatusError,
	})
	if err != nil {
		logging.L().Debug("session update dropped",
			logging.Session(s.sessionID), zap.Error(err))
	}
}

// SpinnerSink renders progress as a terminal spinner for non-interactive
// runs. The spinner starts on the first report and stops on the final one.
type SpinnerSink struct {
	spinner *spinner.Spinner
}

// NewSpinnerSink creates a spinner sink.
func NewSpinnerSink() *SpinnerSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Prefix = "  "
	_ = s.Color("cyan", "bold")
	return &SpinnerSink{spinner: s}
}

// Report updates the spinner line.
func (s *SpinnerSink) Report(stage, message string, percent int) {
	if percent >= 100 {
		s.spinner.FinalMSG = fmt.Sprintf("  %s\n", message)
		s.Stop()
		return
	}
	s.spinner.Suffix = fmt.Sprintf("  [%3d%%] %s: %s", percent, stage, message)
	if !s.spinner.Active() {
		s.spinner.Start()
	}
}

// Stop halts the spinner if it is running.
func (s *SpinnerSink) Stop() {
	if s.spinner.Active() {
		s.spinner.Stop()
	}
}
