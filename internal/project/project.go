// Package project provides the Project aggregate that carries a source file
// through silence detection, transcription, editing and export, together
// with its repository port and the workflow service that drives it.
package project

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/cutline-api/internal/project/id"
	"github.com/maauso/cutline-api/internal/timeline"
)

// Step is the workflow stage a project has reached.
type Step string

const (
	// StepCreated means the source was probed and nothing else happened yet.
	StepCreated Step = "CREATED"
	// StepSilenceDetected means silence and speech intervals are known.
	StepSilenceDetected Step = "SILENCE_DETECTED"
	// StepTranscribed means the speech timeline has a transcription and can be edited.
	StepTranscribed Step = "TRANSCRIBED"
)

// ErrInvalidTransition is returned when a step change is not allowed.
var ErrInvalidTransition = errors.New("project: invalid step transition")

// Silence detection may be rerun from any step; it discards later state.
var validTransitions = map[Step][]Step{
	StepCreated:         {StepSilenceDetected},
	StepSilenceDetected: {StepSilenceDetected, StepTranscribed},
	StepTranscribed:     {StepSilenceDetected, StepTranscribed},
}

func canTransition(from, to Step) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Project is the aggregate every workflow operation reads and writes.
// Repositories hand out clones, so a Project value is a snapshot.
type Project struct {
	mu sync.RWMutex

	ID   string `json:"id"`
	Name string `json:"name"`
	// Dir is the project directory. Exports land here unless a picker
	// decides otherwise.
	Dir      string `json:"dir"`
	FilePath string `json:"filePath"`
	// FileDuration is the probed source duration in seconds.
	FileDuration float64 `json:"fileDuration"`
	// FrameRate is 0 for audio-only sources.
	FrameRate     float64 `json:"frameRate"`
	StartTimecode string  `json:"startTimecode,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`

	Step Step `json:"step"`

	// Clips is the source-time clip list used for export.
	Clips []timeline.Clip `json:"clips"`
	// Silence and Speech partition [0, FileDuration).
	Silence []timeline.Clip `json:"silence"`
	Speech  []timeline.Clip `json:"speech"`
	// Transcription segments are in flat timeline coordinates.
	Transcription      []timeline.Segment  `json:"transcription"`
	DisabledSegmentIDs timeline.SegmentSet `json:"disabledSegmentIds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a project with a generated ID in the CREATED step.
func New(name, filePath string) *Project {
	return NewWithID(id.Generate(), name, filePath)
}

// NewWithID creates a project with the given ID in the CREATED step.
func NewWithID(projectID, name, filePath string) *Project {
	now := time.Now()
	return &Project{
		ID:            projectID,
		Name:          name,
		FilePath:      filePath,
		Step:          StepCreated,
		Clips:         make([]timeline.Clip, 0),
		Silence:       make([]timeline.Clip, 0),
		Speech:        make([]timeline.Clip, 0),
		Transcription: make([]timeline.Segment, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TransitionTo changes the step. Returns ErrInvalidTransition if the
// transition is not allowed.
func (p *Project) TransitionTo(step Step) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transitionLocked(step)
}

func (p *Project) transitionLocked(step Step) error {
	if !canTransition(p.Step, step) {
		return ErrInvalidTransition
	}
	p.Step = step
	p.UpdatedAt = time.Now()
	return nil
}

// GetStep returns the current step (thread-safe).
func (p *Project) GetStep() Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Step
}

// SetSilence records a silence detection result. The speech intervals
// become the clip list; transcription and disabled ids are discarded.
func (p *Project) SetSilence(silence, speech []timeline.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.transitionLocked(StepSilenceDetected); err != nil {
		return err
	}
	p.Silence = cloneClips(silence)
	p.Speech = cloneClips(speech)
	p.Clips = cloneClips(speech)
	p.Transcription = make([]timeline.Segment, 0)
	p.DisabledSegmentIDs = timeline.SegmentSet{}
	return nil
}

// SetTranscription stores the segments of the speech timeline and clears
// the disabled ids, which referred to the previous transcription.
func (p *Project) SetTranscription(segments []timeline.Segment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.transitionLocked(StepTranscribed); err != nil {
		return err
	}
	p.Transcription = append(make([]timeline.Segment, 0, len(segments)), segments...)
	p.DisabledSegmentIDs = timeline.SegmentSet{}
	return nil
}

// SetDisabled replaces the disabled segment ids.
func (p *Project) SetDisabled(ids timeline.SegmentSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DisabledSegmentIDs = ids.Clone()
	p.UpdatedAt = time.Now()
}

// ToggleDisabled flips each id in ids.
func (p *Project) ToggleDisabled(ids []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, i := range ids {
		p.DisabledSegmentIDs.Toggle(i)
	}
	p.UpdatedAt = time.Now()
}

// SetClips replaces the export clip list.
func (p *Project) SetClips(clips []timeline.Clip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clips = cloneClips(clips)
	p.UpdatedAt = time.Now()
}

// HasSegment reports whether the transcription holds a segment with id.
func (p *Project) HasSegment(segmentID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.Transcription {
		if s.ID == segmentID {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the project for safe reads.
func (p *Project) Clone() *Project {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return &Project{
		ID:                 p.ID,
		Name:               p.Name,
		Dir:                p.Dir,
		FilePath:           p.FilePath,
		FileDuration:       p.FileDuration,
		FrameRate:          p.FrameRate,
		StartTimecode:      p.StartTimecode,
		Width:              p.Width,
		Height:             p.Height,
		Step:               p.Step,
		Clips:              cloneClips(p.Clips),
		Silence:            cloneClips(p.Silence),
		Speech:             cloneClips(p.Speech),
		Transcription:      append(make([]timeline.Segment, 0, len(p.Transcription)), p.Transcription...),
		DisabledSegmentIDs: p.DisabledSegmentIDs.Clone(),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// cloneClips copies clips and never returns nil, so persisted lists encode
// as [] rather than null.
func cloneClips(clips []timeline.Clip) []timeline.Clip {
	out := make([]timeline.Clip, len(clips))
	copy(out, clips)
	return out
}
