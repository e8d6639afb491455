package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrSessionClosed is returned by Scan after Close
var ErrSessionClosed = errors.New("scan session closed")

// Result is one decoded code tagged with the scan that produced it
type Result struct {
	Text       string
	Generation uint64
}

// Session owns a Camera for the lifetime of a scan dialog.
// The camera is acquired when a scan starts and released exactly once per
// acquisition: after a decode, on any error, or on Close.
type Session struct {
	camera Camera
	logger *zap.Logger

	mu     sync.Mutex
	gen    uint64
	held   bool
	closed bool
	cancel context.CancelFunc
}

// NewSession creates a session over camera
func NewSession(camera Camera, logger *zap.Logger) *Session {
	return &Session{camera: camera, logger: logger}
}

// Scan acquires the camera, waits for one decoded code and releases the camera.
// Starting a new scan supersedes the results of every earlier one.
func (s *Session) Scan(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	if s.held {
		s.mu.Unlock()
		return Result{}, errors.New("scan already in progress")
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.held = true
	s.mu.Unlock()
	defer cancel()

	if err := s.camera.Start(ctx); err != nil {
		s.release(gen)
		return Result{}, fmt.Errorf("start camera: %w", err)
	}

	text, err := s.camera.Next(ctx)
	s.release(gen)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Generation: gen}, nil
}

// Current reports whether gen is the latest scan of an open session.
// Work started from an older result must be discarded.
func (s *Session) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}

// Close aborts a scan in progress, releases the camera if held and
// invalidates every outstanding result. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	// A pending Scan releases on its own once Next returns.
	return nil
}

func (s *Session) release(gen uint64) {
	s.mu.Lock()
	if !s.held {
		s.mu.Unlock()
		return
	}
	s.held = false
	s.cancel = nil
	s.mu.Unlock()

	if err := s.camera.Stop(); err != nil {
		s.logger.Warn("Failed to stop camera", zap.Uint64("generation", gen), zap.Error(err))
	}
	if err := s.camera.Release(); err != nil {
		s.logger.Warn("Failed to release camera", zap.Uint64("generation", gen), zap.Error(err))
	}
}
