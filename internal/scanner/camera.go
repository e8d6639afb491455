// Package scanner runs the carrier boarding station: it reads QR codes,
// resolves them to requisitions and redeems them for the active vessel.
package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrCameraReleased is returned when a released camera is used again
var ErrCameraReleased = errors.New("camera released")

// Camera is a QR decoding device. Start acquires the device lock,
// Next blocks until one code is decoded, Stop ends capture and Release
// gives the device back.
type Camera interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) (string, error)
	Stop() error
	Release() error
}

// LineCamera adapts a keyboard-wedge scanner, which types each decoded code
// followed by a newline, to the Camera interface.
type LineCamera struct {
	r     io.Reader
	once  sync.Once
	lines chan string
	errc  chan error

	mu        sync.Mutex
	capturing bool
	released  bool
}

// NewLineCamera creates a camera reading codes from r
func NewLineCamera(r io.Reader) *LineCamera {
	return &LineCamera{
		r:     r,
		lines: make(chan string),
		errc:  make(chan error, 1),
	}
}

func (c *LineCamera) read() {
	sc := bufio.NewScanner(c.r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c.lines <- line
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.errc <- err
	close(c.lines)
}

// Start begins capture
func (c *LineCamera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrCameraReleased
	}
	c.capturing = true
	c.once.Do(func() { go c.read() })
	return nil
}

// Next returns the next non-blank line
func (c *LineCamera) Next(ctx context.Context) (string, error) {
	c.mu.Lock()
	capturing := c.capturing
	c.mu.Unlock()
	if !capturing {
		return "", errors.New("camera not started")
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			select {
			case err := <-c.errc:
				c.errc <- err
				return "", err
			default:
				return "", io.EOF
			}
		}
		return line, nil
	}
}

// Stop ends capture
func (c *LineCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturing = false
	return nil
}

// Release marks the device as given back. Lines already typed stay buffered
// in the reader and are delivered after the next Start.
func (c *LineCamera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturing = false
	return nil
}

// Close permanently releases the camera
func (c *LineCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturing = false
	c.released = true
	return nil
}
