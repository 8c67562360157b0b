package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/maauso/cutline-api/internal/timeline"
)

// ErrNoDuration is returned when ffmpeg output carries no Duration line.
var ErrNoDuration = errors.New("audio: duration not found in ffmpeg output")

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?\d+(?:\.\d+)?)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?\d+(?:\.\d+)?)`)
	durationRe     = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
)

// ParseSilenceDetect reads ffmpeg silencedetect log output and returns the
// silence_start / silence_end lines as typed events, in the order they were
// logged. Lines that are not silencedetect output are ignored. The detector
// reports starts slightly below zero for silence at the head of a file;
// those are clamped to 0.
//
// The result is not checked for well-formedness; that is
// timeline.PairEvents' job.
func ParseSilenceDetect(r io.Reader) ([]timeline.SilenceEvent, error) {
	var events []timeline.SilenceEvent

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			t, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse silence_start %q: %w", m[1], err)
			}
			events = append(events, timeline.SilenceEvent{Kind: timeline.EventStart, T: max(t, 0)})
			continue
		}

		if m := silenceEndRe.FindStringSubmatch(line); m != nil {
			t, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse silence_end %q: %w", m[1], err)
			}
			events = append(events, timeline.SilenceEvent{Kind: timeline.EventEnd, T: max(t, 0)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read silencedetect output: %w", err)
	}

	return events, nil
}

// ParseDuration extracts the input duration from ffmpeg's banner,
// "Duration: HH:MM:SS.ms".
func ParseDuration(output string) (float64, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, ErrNoDuration
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat("0."+matches[4], 64)

	return hours*3600 + minutes*60 + seconds + frac, nil
}
