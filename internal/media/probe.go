package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/maauso/cutline-api/internal/timecode"
)

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("media: could not get media duration")

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
}

// parseProbeOutput decodes `ffprobe -print_format json -show_format -show_streams`.
func parseProbeOutput(data []byte) (ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return ProbeResult{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return ProbeResult{}, ErrNoDuration
	}

	result := ProbeResult{Duration: duration}

	var video, tmcd *probeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "data":
			if tmcd == nil {
				tmcd = s
			}
		}
	}

	if video != nil {
		result.Width = video.Width
		result.Height = video.Height
		if fps, err := timecode.ParseRate(video.RFrameRate); err == nil {
			result.FrameRate = fps
		} else if fps, err := timecode.ParseRate(video.AvgFrameRate); err == nil {
			result.FrameRate = fps
		}
	}

	// Container tags win over stream tags; QuickTime files keep the
	// timecode on a separate data (tmcd) stream.
	result.StartTimecode = out.Format.Tags["timecode"]
	if result.StartTimecode == "" && video != nil {
		result.StartTimecode = video.Tags["timecode"]
	}
	if result.StartTimecode == "" && tmcd != nil {
		result.StartTimecode = tmcd.Tags["timecode"]
	}

	return result, nil
}
