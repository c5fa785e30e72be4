package main

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/terrastream/internal/config"
)

// pathObserver walks a scripted path as a function of elapsed time, so it
// holds no mutable state and is safe to read from any goroutine.
type pathObserver struct {
	cfg   config.Observer
	start time.Time
	now   func() time.Time
}

func newPathObserver(cfg config.Observer, now func() time.Time) *pathObserver {
	return &pathObserver{cfg: cfg, start: now(), now: now}
}

// Position implements chunk.Observer.
func (o *pathObserver) Position() mgl64.Vec2 {
	origin := mgl64.Vec2{o.cfg.Start[0], o.cfg.Start[1]}
	elapsed := o.now().Sub(o.start).Seconds()
	dist := o.cfg.Speed * elapsed

	switch o.cfg.Path {
	case config.PathLine:
		heading := mgl64.DegToRad(o.cfg.Heading)
		return origin.Add(mgl64.Vec2{math.Cos(heading), math.Sin(heading)}.Mul(dist))

	case config.PathOrbit:
		if o.cfg.Radius <= 0 {
			return origin
		}
		angle := dist / o.cfg.Radius
		return origin.Add(mgl64.Vec2{math.Cos(angle), math.Sin(angle)}.Mul(o.cfg.Radius))

	default:
		return origin
	}
}
