package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnsupportedFrameRate is returned when a frame rate is not one of the
// eight broadcast rates FCPXML exports support.
var ErrUnsupportedFrameRate = errors.New("timecode: unsupported frame rate")

// rateTolerance lets probed rates such as 29.97002997 match 29.97.
const rateTolerance = 0.01

// Rational is a frame duration expressed as Num/Den seconds.
type Rational struct {
	Num int64
	Den int64
}

// Seconds returns the frame duration as a float.
func (r Rational) Seconds() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Attr renders the duration of n frames as an FCPXML time attribute,
// e.g. "3003/24000s". Zero renders as "0s".
func (r Rational) Attr(frames int64) string {
	if frames == 0 {
		return "0s"
	}
	return fmt.Sprintf("%d/%ds", r.Num*frames, r.Den)
}

// String renders a single frame duration.
func (r Rational) String() string {
	return r.Attr(1)
}

type rateEntry struct {
	fps      float64
	duration Rational
}

// rates lists the supported broadcast frame rates.
var rates = []rateEntry{
	{23.976, Rational{1001, 24000}},
	{24, Rational{100, 2400}},
	{25, Rational{100, 2500}},
	{29.97, Rational{1001, 30000}},
	{30, Rational{100, 3000}},
	{50, Rational{100, 5000}},
	{59.94, Rational{1001, 60000}},
	{60, Rational{100, 6000}},
}

// SupportedRates returns the frame rates FrameDuration accepts.
func SupportedRates() []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = r.fps
	}
	return out
}

// FrameDuration returns the rational frame duration for fps. Rates outside
// the broadcast table return ErrUnsupportedFrameRate instead of falling back
// to 23.976.
func FrameDuration(fps float64) (Rational, error) {
	for _, r := range rates {
		if math.Abs(r.fps-fps) < rateTolerance {
			return r.duration, nil
		}
	}
	return Rational{}, fmt.Errorf("%w: %g", ErrUnsupportedFrameRate, fps)
}

// ParseRate parses an ffprobe frame rate ("30000/1001", "25/1" or "25").
func ParseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	d := 1.0
	if found {
		d, err = strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
		}
	}
	if n <= 0 || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	return n / d, nil
}
