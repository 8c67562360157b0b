package export

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/maauso/cutline-api/internal/timecode"
	"github.com/maauso/cutline-api/internal/timeline"
)

// FCPXMLVersion is the document version written by FCPXML.
const FCPXMLVersion = "1.10"

const (
	formatID = "r1"
	assetID  = "r2"
)

// FCPXMLOptions configures FCPXML generation.
type FCPXMLOptions struct {
	ProjectName string
	EventName   string
	// AssetName defaults to the base name of MediaPath.
	AssetName string
	// MediaPath is the absolute path of the source media.
	MediaPath string
	// MediaDuration is the length of the source media in seconds.
	MediaDuration float64
	FPS           float64
	Width         int
	Height        int
	HasVideo      bool
	// SourceOffset is the embedded start timecode of the source media in
	// seconds. It is added to every clip time before flooring to frames.
	SourceOffset float64
	// LeaveGaps inserts gap elements wherever consecutive clips are not
	// contiguous in source time, so the spine keeps absolute source timing.
	LeaveGaps bool
}

// Document is the root fcpxml element.
type Document struct {
	XMLName   xml.Name  `xml:"fcpxml"`
	Version   string    `xml:"version,attr"`
	Resources Resources `xml:"resources"`
	Library   Library   `xml:"library"`
}

// Resources holds the single format and asset every clip refers to.
type Resources struct {
	Format VideoFormat `xml:"format"`
	Asset  Asset       `xml:"asset"`
}

// VideoFormat is the format resource: frame duration and frame size.
type VideoFormat struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr,omitempty"`
	FrameDuration string `xml:"frameDuration,attr"`
	Width         int    `xml:"width,attr,omitempty"`
	Height        int    `xml:"height,attr,omitempty"`
}

// Asset describes the source media file.
type Asset struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name,attr"`
	UID      string   `xml:"uid,attr"`
	Start    string   `xml:"start,attr"`
	Duration string   `xml:"duration,attr"`
	HasVideo int      `xml:"hasVideo,attr"`
	HasAudio int      `xml:"hasAudio,attr"`
	Format   string   `xml:"format,attr"`
	MediaRep MediaRep `xml:"media-rep"`
}

// MediaRep points an asset at its file URL.
type MediaRep struct {
	Kind string `xml:"kind,attr"`
	Src  string `xml:"src,attr"`
}

// Library is the top-level container of events.
type Library struct {
	Event Event `xml:"event"`
}

// Event groups the exported project.
type Event struct {
	Name    string  `xml:"name,attr"`
	Project Project `xml:"project"`
}

// Project names the exported sequence.
type Project struct {
	Name     string   `xml:"name,attr"`
	Sequence Sequence `xml:"sequence"`
}

// Sequence is the timeline: total duration, timecode start and spine.
type Sequence struct {
	Format   string `xml:"format,attr"`
	Duration string `xml:"duration,attr"`
	TCStart  string `xml:"tcStart,attr"`
	TCFormat string `xml:"tcFormat,attr"`
	Spine    Spine  `xml:"spine"`
}

// Spine holds asset-clip and gap elements in timeline order.
type Spine struct {
	Items []SpineItem
}

// SpineItem is an asset-clip or a gap.
type SpineItem struct {
	XMLName  xml.Name
	Ref      string `xml:"ref,attr,omitempty"`
	Name     string `xml:"name,attr"`
	Offset   string `xml:"offset,attr"`
	Start    string `xml:"start,attr,omitempty"`
	Duration string `xml:"duration,attr"`
	Format   string `xml:"format,attr,omitempty"`
	TCFormat string `xml:"tcFormat,attr,omitempty"`
}

// FCPXML builds the document for clips. Every time attribute is a rational
// multiple of the frame duration. Clips shorter than one frame are skipped.
// The frame rate must be one of timecode.SupportedRates.
func FCPXML(clips []timeline.Clip, opts FCPXMLOptions) (*Document, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidFrameRate, opts.FPS)
	}
	frame, err := timecode.FrameDuration(opts.FPS)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, ErrNoClips
	}

	assetName := opts.AssetName
	if assetName == "" {
		assetName = filepath.Base(opts.MediaPath)
	}
	src := mediaURL(opts.MediaPath)
	sourceOffset := max(opts.SourceOffset, 0)
	offset := timecode.SecondsToFrames(sourceOffset, opts.FPS)

	var (
		items  []SpineItem
		head   int64
		cursor = offset
	)
	for i, c := range clips {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("clip %d: %w", i, err)
		}

		start := timecode.SecondsToFrames(c.Start+sourceOffset, opts.FPS)
		end := timecode.SecondsToFrames(c.End+sourceOffset, opts.FPS)
		if end <= start {
			continue
		}

		if opts.LeaveGaps && start > cursor {
			items = append(items, SpineItem{
				XMLName:  xml.Name{Local: "gap"},
				Name:     "Gap",
				Offset:   frame.Attr(head),
				Duration: frame.Attr(start - cursor),
			})
			head += start - cursor
		}

		items = append(items, SpineItem{
			XMLName:  xml.Name{Local: "asset-clip"},
			Ref:      assetID,
			Name:     assetName,
			Offset:   frame.Attr(head),
			Start:    frame.Attr(start),
			Duration: frame.Attr(end - start),
			Format:   formatID,
			TCFormat: "NDF",
		})
		head += end - start
		cursor = end
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: every clip is shorter than one frame", ErrNoClips)
	}

	mediaFrames := timecode.SecondsToFrames(opts.MediaDuration, opts.FPS)
	if mediaFrames < cursor-offset {
		mediaFrames = cursor - offset
	}

	hasVideo := 0
	if opts.HasVideo {
		hasVideo = 1
	}

	doc := &Document{
		Version: FCPXMLVersion,
		Resources: Resources{
			Format: VideoFormat{
				ID:            formatID,
				Name:          formatName(opts.Height, opts.FPS),
				FrameDuration: frame.String(),
				Width:         opts.Width,
				Height:        opts.Height,
			},
			Asset: Asset{
				ID:       assetID,
				Name:     assetName,
				UID:      strings.ToUpper(uuid.NewSHA1(uuid.NameSpaceURL, []byte(src)).String()),
				Start:    frame.Attr(offset),
				Duration: frame.Attr(mediaFrames),
				HasVideo: hasVideo,
				HasAudio: 1,
				Format:   formatID,
				MediaRep: MediaRep{Kind: "original-media", Src: src},
			},
		},
		Library: Library{
			Event: Event{
				Name: opts.EventName,
				Project: Project{
					Name: opts.ProjectName,
					Sequence: Sequence{
						Format:   formatID,
						Duration: frame.Attr(head),
						TCStart:  "0s",
						TCFormat: "NDF",
						Spine:    Spine{Items: items},
					},
				},
			},
		},
	}

	return doc, nil
}

// MarshalXML writes spine items in order under a single spine element.
func (s Spine) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, item := range s.Items {
		if err := e.EncodeElement(item, xml.StartElement{Name: item.XMLName}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Marshal serializes doc with the XML declaration and FCPXML doctype.
func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal fcpxml: %w", err)
	}

	out := make([]byte, 0, len(xml.Header)+len(body)+32)
	out = append(out, xml.Header...)
	out = append(out, "<!DOCTYPE fcpxml>\n"...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func mediaURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// formatName follows Final Cut's naming, e.g. FFVideoFormat1080p2997.
// Audio-only and unsized formats get no name.
func formatName(height int, fps float64) string {
	if height <= 0 {
		return ""
	}
	rate := strconv.FormatFloat(fps, 'f', 2, 64)
	rate = strings.TrimSuffix(strings.ReplaceAll(rate, ".", ""), "00")
	return fmt.Sprintf("FFVideoFormat%dp%s", height, rate)
}
