package route

import (
	"math"

	"github.com/signalsfoundry/drone-delivery-sim/model"
)

const (
	defaultJumpHeight    = 2.0
	defaultJumpFrequency = math.Pi // one hop every second
	defaultSpinRate      = 2 * math.Pi
)

// JumpDecorator bobs the mover vertically while the wrapped strategy is in
// flight. The offset is stripped before every inner advance, so the inner
// strategy only ever sees its own trajectory, and it is dropped once the
// inner strategy completes. A leg that is abandoned before completion keeps
// the last offset on the mover until the next strategy moves it.
type JumpDecorator struct {
	Inner     Strategy
	Height    float64
	Frequency float64 // radians of hop phase per second

	phase  float64
	offset float64
}

// NewJumpDecorator wraps inner with the default hop.
func NewJumpDecorator(inner Strategy) *JumpDecorator {
	return &JumpDecorator{Inner: inner, Height: defaultJumpHeight, Frequency: defaultJumpFrequency}
}

func (j *JumpDecorator) Advance(m Mover, dt float64) {
	if j.offset != 0 {
		m.SetPosition(m.Position().Sub(model.Vec3{Y: j.offset}))
		j.offset = 0
	}

	j.Inner.Advance(m, dt)
	if j.Inner.IsComplete() {
		return
	}

	if dt > 0 {
		j.phase += j.Frequency * dt
	}
	j.offset = j.Height * math.Abs(math.Sin(j.phase))
	if j.offset != 0 {
		m.SetPosition(m.Position().Add(model.Vec3{Y: j.offset}))
	}
}

func (j *JumpDecorator) IsComplete() bool { return j.Inner.IsComplete() }

// SpinDecorator turns the mover about the vertical axis while the wrapped
// strategy is in flight.
type SpinDecorator struct {
	Inner Strategy
	Rate  float64 // radians per second

	spun float64
}

// NewSpinDecorator wraps inner with the default spin rate.
func NewSpinDecorator(inner Strategy) *SpinDecorator {
	return &SpinDecorator{Inner: inner, Rate: defaultSpinRate}
}

func (s *SpinDecorator) Advance(m Mover, dt float64) {
	s.Inner.Advance(m, dt)
	if s.Inner.IsComplete() || dt <= 0 {
		return
	}
	angle := s.Rate * dt
	m.SetDirection(m.Direction().RotateY(angle))
	s.spun += angle
}

func (s *SpinDecorator) IsComplete() bool { return s.Inner.IsComplete() }

// Spun returns the total rotation applied so far, in radians.
func (s *SpinDecorator) Spun() float64 { return s.spun }
