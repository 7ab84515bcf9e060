// Package player is the playback state machine behind the article audio
// widget. It asks a Source for an audio URL (reusing stored audio when it
// exists), binds it to an Element and tracks position, volume and rate.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bobarin/readaloud/internal/logger"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
	StatusError   Status = "error"
)

const (
	DefaultVolume      = 0.8
	DefaultRate        = 1.0
	DefaultLoadTimeout = 30 * time.Second

	MinRate = 0.25
	MaxRate = 4.0
)

// ErrLoadTimeout is returned when the element is not ready in time.
var ErrLoadTimeout = errors.New("audio loading timeout")

// Element is the audio output the controller drives.
type Element interface {
	// Load binds url and blocks until playback can proceed without stalling.
	Load(ctx context.Context, url string) error
	Play() error
	Pause()
	SetPosition(seconds float64)
	Position() float64
	Duration() float64
	SetVolume(v float64)
	SetRate(r float64)
}

// Request identifies the audio a player wants.
type Request struct {
	PostID  int64
	Service string
	Voice   string
}

// Source finds or creates the audio URL for a request.
type Source interface {
	// Check returns the URL of existing audio; ok is false on a miss.
	Check(ctx context.Context, req Request) (url string, ok bool, err error)
	Generate(ctx context.Context, req Request) (string, error)
}

// State is a snapshot of the player.
type State struct {
	Status       Status
	CurrentTime  float64
	Duration     float64
	Volume       float64
	PlaybackRate float64
}

type Controller struct {
	el  Element
	src Source
	req Request

	// LoadTimeout bounds Element.Load.
	LoadTimeout time.Duration

	mu     sync.Mutex
	state  State
	bound  bool
	status string
	url    string
}

func NewController(el Element, src Source, req Request) *Controller {
	return &Controller{
		el:          el,
		src:         src,
		req:         req,
		LoadTimeout: DefaultLoadTimeout,
		state: State{
			Status:       StatusIdle,
			Volume:       DefaultVolume,
			PlaybackRate: DefaultRate,
		},
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StatusText is the message shown under the player.
func (c *Controller) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// URL is the bound audio URL, empty until loading succeeds.
func (c *Controller) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Play starts playback, loading audio first when nothing is bound. It is a
// no-op while loading or already playing.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	switch c.state.Status {
	case StatusLoading, StatusPlaying:
		c.mu.Unlock()
		return nil
	case StatusReady, StatusPaused:
		err := c.startLocked()
		c.mu.Unlock()
		return err
	case StatusEnded:
		c.el.SetPosition(0)
		c.state.CurrentTime = 0
		err := c.startLocked()
		c.mu.Unlock()
		return err
	}

	// idle or error: (re)load
	c.state.Status = StatusLoading
	c.bound = false
	c.status = "Generating audio..."
	c.mu.Unlock()

	url, err := c.resolve(ctx)
	if err == nil {
		err = c.bind(ctx, url)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		logger.Warnf("[Player] Loading audio for post %d failed: %v", c.req.PostID, err)
		c.state.Status = StatusError
		c.status = "Failed to generate audio: " + err.Error()
		return err
	}

	c.bound = true
	c.url = url
	c.state.Status = StatusReady
	c.state.Duration = c.el.Duration()
	c.el.SetVolume(c.state.Volume)
	c.el.SetRate(c.state.PlaybackRate)
	c.status = "Ready to play"

	return c.startLocked()
}

// resolve asks the source for existing audio and generates it on a miss.
func (c *Controller) resolve(ctx context.Context) (string, error) {
	logger.Debugf("[Player] Loading audio for post %d (service=%s, voice=%s)", c.req.PostID, c.req.Service, c.req.Voice)

	url, ok, err := c.src.Check(ctx, c.req)
	if err != nil {
		return "", err
	}
	if ok {
		c.setStatus("Loading existing audio...")
		return url, nil
	}

	c.setStatus("Generating new audio...")
	return c.src.Generate(ctx, c.req)
}

// bind loads url into the element, giving up after LoadTimeout.
func (c *Controller) bind(ctx context.Context, url string) error {
	loadCtx, cancel := context.WithTimeout(ctx, c.LoadTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.el.Load(loadCtx, url)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("audio failed to load: %w", err)
		}
		return nil
	case <-loadCtx.Done():
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrLoadTimeout
		}
		return loadCtx.Err()
	}
}

func (c *Controller) startLocked() error {
	if err := c.el.Play(); err != nil {
		c.state.Status = StatusError
		c.status = "Error playing audio"
		return fmt.Errorf("failed to start playback: %w", err)
	}
	c.state.Status = StatusPlaying
	c.status = "Playing..."
	return nil
}

func (c *Controller) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Pause moves playing to paused.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusPlaying {
		return
	}
	c.el.Pause()
	c.state.Status = StatusPaused
	c.status = "Paused"
}

// Toggle is what the play button does.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.State().Status == StatusPlaying {
		c.Pause()
		return nil
	}
	return c.Play(ctx)
}

// Ended handles the element reaching the end of the audio.
func (c *Controller) Ended() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusPlaying {
		return
	}
	c.state.Status = StatusEnded
	c.state.CurrentTime = 0
	c.el.SetPosition(0)
	c.status = "Finished"
}

// Fail handles an element error after audio was bound.
func (c *Controller) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Status {
	case StatusPlaying, StatusPaused, StatusReady:
	default:
		return
	}
	logger.Warnf("[Player] Audio error on post %d: %v", c.req.PostID, err)
	c.state.Status = StatusError
	c.status = "Audio error"
}

// Seek moves to t seconds, clamped to [0, duration]. Ignored until audio is bound.
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(t)
}

// Skip seeks relative to the current position.
func (c *Controller) Skip(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(c.state.CurrentTime + seconds)
}

func (c *Controller) seekLocked(t float64) {
	if !c.bound {
		return
	}
	t = clamp(t, 0, c.state.Duration)
	c.el.SetPosition(t)
	c.state.CurrentTime = t
}

// SetVolume sets the volume, clamped to [0, 1].
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Volume = clamp(v, 0, 1)
	if c.bound {
		c.el.SetVolume(c.state.Volume)
	}
}

// SetRate sets the playback rate, clamped to [MinRate, MaxRate].
func (c *Controller) SetRate(r float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.PlaybackRate = clamp(r, MinRate, MaxRate)
	if c.bound {
		c.el.SetRate(c.state.PlaybackRate)
	}
}

// TimeUpdate mirrors the element's position.
func (c *Controller) TimeUpdate(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		c.state.CurrentTime = t
	}
}

// MetadataLoaded records the duration once the element knows it.
func (c *Controller) MetadataLoaded(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		d = 0
	}
	c.state.Duration = d
}

// TimeDisplay renders "current / duration", e.g. "1:05 / 2:00".
func (c *Controller) TimeDisplay() string {
	s := c.State()
	return FormatTime(s.CurrentTime) + " / " + FormatTime(s.Duration)
}

// FormatTime renders seconds as m:ss. NaN, infinities and negatives render as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
