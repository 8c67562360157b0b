package project

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/maauso/cutline-api/internal/timeline"
)

func TestNew(t *testing.T) {
	p := New("interview", "/media/interview.mov")

	if p.ID == "" {
		t.Error("expected project to have an ID")
	}
	if p.Step != StepCreated {
		t.Errorf("expected step %s, got %s", StepCreated, p.Step)
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if p.Clips == nil || p.Speech == nil || p.Silence == nil || p.Transcription == nil {
		t.Error("expected slices to be initialized")
	}
}

func TestProject_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Step
		to      Step
		wantErr bool
	}{
		{"CREATED to SILENCE_DETECTED", StepCreated, StepSilenceDetected, false},
		{"SILENCE_DETECTED to TRANSCRIBED", StepSilenceDetected, StepTranscribed, false},
		{"SILENCE_DETECTED rerun", StepSilenceDetected, StepSilenceDetected, false},
		{"TRANSCRIBED back to SILENCE_DETECTED", StepTranscribed, StepSilenceDetected, false},
		{"TRANSCRIBED rerun", StepTranscribed, StepTranscribed, false},
		{"CREATED to TRANSCRIBED", StepCreated, StepTranscribed, true},
		{"SILENCE_DETECTED to CREATED", StepSilenceDetected, StepCreated, true},
		{"TRANSCRIBED to CREATED", StepTranscribed, StepCreated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewWithID("test", "n", "f")
			p.Step = tt.from

			err := p.TransitionTo(tt.to)
			if tt.wantErr {
				if err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				if p.GetStep() != tt.from {
					t.Errorf("step changed to %s on failed transition", p.GetStep())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.GetStep() != tt.to {
				t.Errorf("expected step %s, got %s", tt.to, p.GetStep())
			}
		})
	}
}

func TestProject_SetSilence_ResetsLaterState(t *testing.T) {
	p := NewWithID("test", "n", "f")
	if err := p.SetSilence([]timeline.Clip{{Start: 2, End: 3}}, []timeline.Clip{{Start: 0, End: 2}, {Start: 3, End: 5}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.SetTranscription([]timeline.Segment{{ID: 0, Start: 0, End: 4, Text: "hello"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.ToggleDisabled([]int{0})
	p.SetClips([]timeline.Clip{{Start: 0, End: 1}})

	if err := p.SetSilence(nil, []timeline.Clip{{Start: 0, End: 5}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Step != StepSilenceDetected {
		t.Errorf("expected step %s, got %s", StepSilenceDetected, p.Step)
	}
	if len(p.Transcription) != 0 {
		t.Errorf("expected transcription to be cleared, got %d segments", len(p.Transcription))
	}
	if p.DisabledSegmentIDs.Len() != 0 {
		t.Errorf("expected disabled ids to be cleared, got %v", p.DisabledSegmentIDs.IDs())
	}
	if len(p.Clips) != 1 || p.Clips[0] != (timeline.Clip{Start: 0, End: 5}) {
		t.Errorf("expected clips to equal speech, got %v", p.Clips)
	}
	if p.Silence == nil {
		t.Error("expected silence to be an empty slice, not nil")
	}
}

func TestProject_SetTranscription_RequiresSilence(t *testing.T) {
	p := NewWithID("test", "n", "f")
	if err := p.SetTranscription(nil); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestProject_ToggleDisabled(t *testing.T) {
	p := NewWithID("test", "n", "f")
	p.SetDisabled(timeline.NewSegmentSet(1, 2))

	p.ToggleDisabled([]int{2, 3})

	got := p.DisabledSegmentIDs.IDs()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("expected [1 3], got %v", got)
	}
}

func TestProject_Clone(t *testing.T) {
	p := NewWithID("test", "n", "f")
	_ = p.SetSilence([]timeline.Clip{{Start: 1, End: 2}}, []timeline.Clip{{Start: 0, End: 1}, {Start: 2, End: 3}})
	_ = p.SetTranscription([]timeline.Segment{{ID: 0, Start: 0, End: 2, Text: "a"}})
	p.ToggleDisabled([]int{0})

	c := p.Clone()
	c.Speech[0].End = 9
	c.Transcription[0].Text = "changed"
	c.DisabledSegmentIDs.Remove(0)

	if p.Speech[0].End != 1 {
		t.Error("modifying clone speech should not affect original")
	}
	if p.Transcription[0].Text != "a" {
		t.Error("modifying clone transcription should not affect original")
	}
	if !p.DisabledSegmentIDs.Has(0) {
		t.Error("modifying clone disabled ids should not affect original")
	}
}

func TestProject_JSON(t *testing.T) {
	p := NewWithID("prj-1", "talk", "/media/talk.mov")
	p.Dir = "/media"
	p.FileDuration = 12.5
	p.FrameRate = 25
	_ = p.SetSilence([]timeline.Clip{{Start: 4, End: 5}}, []timeline.Clip{{Start: 0, End: 4}, {Start: 5, End: 12.5}})
	_ = p.SetTranscription([]timeline.Segment{{ID: 0, Start: 0, End: 3, Text: "a"}, {ID: 1, Start: 3, End: 11.5, Text: "b"}})
	p.SetDisabled(timeline.NewSegmentSet(1))

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, key := range []string{"name", "dir", "filePath", "fileDuration", "frameRate", "clips", "silence", "speech", "transcription", "disabledSegmentIds"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if string(raw["disabledSegmentIds"]) != "[1]" {
		t.Errorf("disabledSegmentIds = %s, want [1]", raw["disabledSegmentIds"])
	}

	var back Project
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.DisabledSegmentIDs.Has(1) || back.DisabledSegmentIDs.Len() != 1 {
		t.Errorf("disabled ids not restored: %v", back.DisabledSegmentIDs.IDs())
	}
	if back.Step != StepTranscribed {
		t.Errorf("expected step %s, got %s", StepTranscribed, back.Step)
	}
}

func TestOpLocks(t *testing.T) {
	locks := newOpLocks()

	release, err := locks.acquire("prj-a")
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if _, err := locks.acquire("prj-a"); !errors.Is(err, ErrBusy) {
		t.Errorf("second acquire() error = %v, want ErrBusy", err)
	}

	other, err := locks.acquire("prj-b")
	if err != nil {
		t.Fatalf("acquire() of another project error = %v", err)
	}
	other()

	release()
	release()

	again, err := locks.acquire("prj-a")
	if err != nil {
		t.Fatalf("acquire() after release error = %v", err)
	}
	again()
}
