package main

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/udisondev/terrastream/internal/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestPathObserver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Observer
		elapsed time.Duration
		want    mgl64.Vec2
	}{
		{"static", config.Observer{Path: config.PathStatic, Start: [2]float64{5, 6}, Speed: 10}, time.Minute, mgl64.Vec2{5, 6}},
		{"line east", config.Observer{Path: config.PathLine, Speed: 10}, 3 * time.Second, mgl64.Vec2{30, 0}},
		{"line north", config.Observer{Path: config.PathLine, Speed: 10, Heading: 90}, 2 * time.Second, mgl64.Vec2{0, 20}},
		{"orbit start", config.Observer{Path: config.PathOrbit, Radius: 100, Speed: 10}, 0, mgl64.Vec2{100, 0}},
		{"orbit quarter", config.Observer{Path: config.PathOrbit, Radius: 100, Speed: 50 * 3.141592653589793}, time.Second, mgl64.Vec2{0, 100}},
		{"orbit without radius", config.Observer{Path: config.PathOrbit, Start: [2]float64{1, 1}}, time.Second, mgl64.Vec2{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &fakeClock{t: time.Unix(1000, 0)}
			o := newPathObserver(tt.cfg, clock.now)
			clock.t = clock.t.Add(tt.elapsed)

			got := o.Position()
			assert.InDelta(t, tt.want.X(), got.X(), 1e-6)
			assert.InDelta(t, tt.want.Y(), got.Y(), 1e-6)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "INFO", parseLogLevel("").String())
}
