package water

import (
	"fmt"
	"math"
)

// Profiles are the control points of the shore slope. Each profile lists the
// slope value at nine evenly spaced stops between the water edge and the end
// of the slope.
var Profiles = map[string][9]float64{
	"linear": {0.084, 0.188, 0.292, 0.396, 0.500, 0.604, 0.708, 0.812, 0.916},
	"sine":   {0.024, 0.095, 0.206, 0.345, 0.500, 0.655, 0.794, 0.905, 0.976},
	"cubic":  {0.004, 0.032, 0.108, 0.256, 0.500, 0.744, 0.892, 0.968, 0.996},
	"quint":  {0.001, 0.005, 0.039, 0.164, 0.500, 0.836, 0.961, 0.995, 0.999},
}

// DefaultProfile is used when no profile is named
const DefaultProfile = "sine"

// ParseProfile looks up a profile by name
func ParseProfile(name string) ([9]float64, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := Profiles[name]
	if !ok {
		return [9]float64{}, fmt.Errorf("water: unknown slope profile %q", name)
	}
	return p, nil
}

// SlopeRamp turns a distance from a water edge into a slope value. The value
// is 1 on the edge and falls to 0 at Width along a Catmull-Rom spline through
// the profile.
type SlopeRamp struct {
	Width float64
	stops [13]float64
}

// NewSlopeRamp builds a ramp over width pixels
func NewSlopeRamp(profile [9]float64, width float64) SlopeRamp {
	r := SlopeRamp{Width: width}

	// two phantom stops on each end keep the spline flat at 0 and 1
	r.stops[0] = profile[0]
	r.stops[1] = 0
	copy(r.stops[2:11], profile[:])
	r.stops[11] = 1
	r.stops[12] = profile[8]

	return r
}

// At returns the slope value at distance d from the edge
func (r SlopeRamp) At(d float64) float64 {
	if r.Width <= 0 {
		return 0
	}

	u := r.Width - d
	if u <= 0 {
		return 0
	}
	if u >= r.Width {
		return 1
	}

	step := u / (r.Width / 10)
	k := int(math.Floor(step))
	if k > 9 {
		k = 9
	}
	t := step - float64(k)

	v := catmullRom(t, r.stops[k], r.stops[k+1], r.stops[k+2], r.stops[k+3])
	return math.Max(0, math.Min(1, v))
}

func catmullRom(t, p0, p1, p2, p3 float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * (2*p1 +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}
