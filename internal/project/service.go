package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/cutline-api/internal/audio"
	"github.com/maauso/cutline-api/internal/cache"
	"github.com/maauso/cutline-api/internal/export"
	"github.com/maauso/cutline-api/internal/media"
	"github.com/maauso/cutline-api/internal/storage"
	"github.com/maauso/cutline-api/internal/timecode"
	"github.com/maauso/cutline-api/internal/timeline"
	"github.com/maauso/cutline-api/internal/transcribe"
)

var (
	// ErrExternal wraps failures of media, render, transcription and storage collaborators.
	ErrExternal = errors.New("project: external collaborator failed")
	// ErrEditApplication is returned when disabled-segment edits cannot be
	// mapped back onto the speech timeline.
	ErrEditApplication = errors.New("project: edits could not be applied")
	// ErrInvalidInput is returned for settings or requests that fail validation.
	ErrInvalidInput = errors.New("project: invalid input")
	// ErrNoSpeech is returned when an operation needs speech clips that do not exist yet.
	ErrNoSpeech = errors.New("project: no speech clips, run silence detection first")
	// ErrNotTranscribed is returned when an operation needs a transcription.
	ErrNotTranscribed = errors.New("project: project has not been transcribed")
	// ErrUnknownSegment is returned for segment ids missing from the transcription.
	ErrUnknownSegment = errors.New("project: unknown segment id")
)

// DefaultAudioFrameRate is the timebase used to export audio-only sources.
const DefaultAudioFrameRate = 25

// transcriptionFormat is the container the speech timeline is rendered to
// before transcription.
const transcriptionFormat = "mp3"

// RenderCache renders clip lists of a source file, reusing earlier renders.
type RenderCache interface {
	Get(ctx context.Context, clips []timeline.Clip, sourcePath, format string) (string, error)
}

// CreateInput contains the parameters for creating a project.
type CreateInput struct {
	// Name defaults to the source file name without extension.
	Name string `validate:"omitempty,max=200"`
	// FilePath is the source media file.
	FilePath string `validate:"required"`
	// Dir defaults to the directory of FilePath.
	Dir string
}

// SilenceSettings tunes silence detection. All lengths are in seconds.
type SilenceSettings struct {
	// MinSilenceLen is the shortest silence the detector reports.
	MinSilenceLen float64 `json:"minSilenceLen" validate:"gt=0,lte=60"`
	// MinNonSilenceLen is the shortest speech run kept between two silences.
	MinNonSilenceLen float64 `json:"minNonSilenceLen" validate:"gte=0,lte=60"`
	// ThresholdDB is the noise floor below which audio counts as silence.
	ThresholdDB float64 `json:"threshold" validate:"gte=-100,lte=0"`
	// Padding is kept as speech on both sides of every silence.
	Padding float64 `json:"padding" validate:"gte=0,lte=10"`
}

// DefaultSilenceSettings returns the settings used when a request gives none.
func DefaultSilenceSettings() SilenceSettings {
	return SilenceSettings{
		MinSilenceLen:    1,
		MinNonSilenceLen: 0.8,
		ThresholdDB:      -33,
		Padding:          0.2,
	}
}

// ExportInput contains the parameters of an export.
type ExportInput struct {
	Format export.Format
	// Name defaults to the project name.
	Name string
	// LeaveGaps keeps absolute source timing in FCPXML exports.
	LeaveGaps bool
	// Overwrite replaces an existing artifact at the picked destination.
	Overwrite bool
	// Publish uploads the artifact to remote storage after writing it.
	Publish bool
}

// ExportResult describes a finished export.
type ExportResult struct {
	Outcome export.Outcome
	// Path is the written EDL file or FCPXML bundle.
	Path string
	// URL is set when the artifact was published.
	URL string
	// Clips is the number of clips exported.
	Clips int
}

// Service drives projects through the editing workflow. Every operation
// loads a snapshot, runs the timeline engine over it and saves the result.
type Service struct {
	repo        Repository
	media       media.Backend
	cache       RenderCache
	splitter    audio.Splitter
	transcriber transcribe.Transcriber
	storage     storage.Storage
	picker      export.Picker
	validate    *validator.Validate
	logger      *slog.Logger
	splitOpts   audio.SplitOpts
	locks       *opLocks
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSplitOpts sets how long speech renders are cut for transcription.
func WithSplitOpts(opts audio.SplitOpts) ServiceOption {
	return func(s *Service) {
		s.splitOpts = opts
	}
}

// NewService creates a new Service.
func NewService(
	repo Repository,
	backend media.Backend,
	cache RenderCache,
	splitter audio.Splitter,
	transcriber transcribe.Transcriber,
	store storage.Storage,
	picker export.Picker,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		media:       backend,
		cache:       cache,
		splitter:    splitter,
		transcriber: transcriber,
		storage:     store,
		picker:      picker,
		validate:    validator.New(),
		logger:      logger,
		splitOpts:   audio.DefaultSplitOpts(),
		locks:       newOpLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create probes the source file and persists a new project.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Project, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	probe, err := s.media.Probe(ctx, in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: probe %s: %w", ErrExternal, in.FilePath, err)
	}

	name := in.Name
	if name == "" {
		base := filepath.Base(in.FilePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	p := New(name, in.FilePath)
	p.Dir = in.Dir
	if p.Dir == "" {
		p.Dir = filepath.Dir(in.FilePath)
	}
	p.FileDuration = probe.Duration
	p.FrameRate = probe.FrameRate
	p.StartTimecode = probe.StartTimecode
	p.Width = probe.Width
	p.Height = probe.Height

	s.logger.Info("creating project",
		slog.String("project_id", p.ID),
		slog.String("file", in.FilePath),
		slog.Float64("duration", probe.Duration),
		slog.Float64("frame_rate", probe.FrameRate),
	)

	if err := s.repo.Save(ctx, p); err != nil {
		s.logger.Error("failed to save project",
			slog.String("project_id", p.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return p, nil
}

// Get retrieves a project by ID.
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]*Project, error) {
	return s.repo.List(ctx)
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, id string) error {
	release, err := s.locks.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	return s.repo.Delete(ctx, id)
}

// DetectSilence detects silence in the source and splits it into silence
// and speech intervals. The speech intervals become the project's clips;
// any transcription and edits are discarded.
func (s *Service) DetectSilence(ctx context.Context, id string, settings SilenceSettings) (*Project, error) {
	if err := s.validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	release, err := s.locks.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := s.media.DetectSilence(ctx, p.FilePath, settings.ThresholdDB, settings.MinSilenceLen)
	if err != nil {
		return nil, fmt.Errorf("%w: detect silence: %w", ErrExternal, err)
	}
	raw, err := timeline.PairEvents(events, p.FileDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExternal, err)
	}

	silence := timeline.Merge(timeline.Pad(raw, settings.Padding, settings.Padding), settings.MinNonSilenceLen)
	speech := timeline.Complement(silence, p.FileDuration)

	if err := p.SetSilence(silence, speech); err != nil {
		return nil, err
	}

	s.logger.Info("silence detected",
		slog.String("project_id", p.ID),
		slog.Int("events", len(events)),
		slog.Int("silence", len(silence)),
		slog.Int("speech", len(speech)),
		slog.Float64("speech_duration", timeline.TotalDuration(speech)),
	)

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RenderTimeline renders the project's current clips into format and
// returns the path of the cached render.
func (s *Service) RenderTimeline(ctx context.Context, id, format string) (string, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if len(p.Clips) == 0 {
		return "", ErrNoSpeech
	}

	out, err := s.cache.Get(ctx, p.Clips, p.FilePath, format)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidFormat) {
			return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return "", fmt.Errorf("%w: render timeline: %w", ErrExternal, err)
	}
	return out, nil
}

// Transcribe renders the speech timeline, transcribes it chunk by chunk
// and stores the segments in flat timeline coordinates with sequential ids.
func (s *Service) Transcribe(ctx context.Context, id, language string) (*Project, error) {
	release, err := s.locks.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.loadForTranscription(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transcribe(ctx, p, language)
}

// TranscribeAsync checks that the project can be transcribed, then runs the
// transcription in the background. The project stays busy until the run
// ends; its result is sent on the returned channel, which is then closed.
func (s *Service) TranscribeAsync(ctx context.Context, id, language string) (*Project, <-chan error, error) {
	release, err := s.locks.acquire(id)
	if err != nil {
		return nil, nil, err
	}

	p, err := s.loadForTranscription(ctx, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	snapshot := p.Clone()

	done := make(chan error, 1)
	go func(ctx context.Context) {
		defer close(done)

		_, err := s.transcribe(ctx, p, language)
		// Free the project before reporting so a caller woken by done sees it idle.
		release()
		if err != nil {
			s.logger.Error("background transcription failed",
				slog.String("project_id", id),
				slog.String("error", err.Error()),
			)
		}
		done <- err
	}(context.WithoutCancel(ctx))

	return snapshot, done, nil
}

func (s *Service) loadForTranscription(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(p.Speech) == 0 {
		return nil, ErrNoSpeech
	}
	return p, nil
}

func (s *Service) transcribe(ctx context.Context, p *Project, language string) (*Project, error) {
	rendered, err := s.cache.Get(ctx, p.Speech, p.FilePath, transcriptionFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: render speech timeline: %w", ErrExternal, err)
	}

	workDir, err := s.storage.TempDir(ctx, "transcribe")
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.storage.CleanupTemp(context.WithoutCancel(ctx), []string{workDir}); cerr != nil {
			s.logger.Warn("failed to clean up transcription chunks",
				slog.String("project_id", p.ID),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	chunks, err := s.splitter.Split(ctx, rendered, workDir, s.splitOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: split speech timeline: %w", ErrExternal, err)
	}

	flatDuration := timeline.TotalDuration(p.Speech)
	segments := make([]timeline.Segment, 0)
	for i, c := range chunks {
		s.logger.Debug("transcribing chunk",
			slog.String("project_id", p.ID),
			slog.Int("chunk", i),
			slog.Float64("offset", c.Offset),
			slog.Float64("duration", c.Duration),
		)

		segs, err := s.transcriber.Transcribe(ctx, c.Path, language)
		if err != nil {
			return nil, fmt.Errorf("%w: transcribe chunk %d: %w", ErrExternal, i, err)
		}
		segs = clampSegments(segs, 0, c.Duration)
		segs = clampSegments(timeline.Shift(segs, c.Offset), 0, flatDuration)
		segments = append(segments, segs...)
	}
	for i := range segments {
		segments[i].ID = i
	}

	if err := p.SetTranscription(segments); err != nil {
		return nil, err
	}

	s.logger.Info("project transcribed",
		slog.String("project_id", p.ID),
		slog.Int("chunks", len(chunks)),
		slog.Int("segments", len(segments)),
	)

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// clampSegments limits segments to [lo, hi] and drops those left empty.
// Speech models sometimes report an end slightly past the audio they were given.
func clampSegments(segs []timeline.Segment, lo, hi float64) []timeline.Segment {
	out := make([]timeline.Segment, 0, len(segs))
	for _, seg := range segs {
		seg.Start = max(seg.Start, lo)
		seg.End = min(seg.End, hi)
		if seg.End <= seg.Start {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// SetDisabledSegments replaces the set of segments excluded from the cut.
func (s *Service) SetDisabledSegments(ctx context.Context, id string, ids []int) (*Project, error) {
	return s.updateDisabled(ctx, id, ids, func(p *Project) {
		p.SetDisabled(timeline.NewSegmentSet(ids...))
	})
}

// ToggleSegments flips each of ids between enabled and disabled.
func (s *Service) ToggleSegments(ctx context.Context, id string, ids []int) (*Project, error) {
	return s.updateDisabled(ctx, id, ids, func(p *Project) {
		p.ToggleDisabled(ids)
	})
}

func (s *Service) updateDisabled(ctx context.Context, id string, ids []int, apply func(*Project)) (*Project, error) {
	release, err := s.locks.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.GetStep() != StepTranscribed {
		return nil, ErrNotTranscribed
	}
	for _, segID := range ids {
		if !p.HasSegment(segID) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSegment, segID)
		}
	}

	apply(p)

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyEdits reconciles the disabled segments into a new source clip list
// and stores it as the project's clips.
func (s *Service) ApplyEdits(ctx context.Context, id string) (*Project, error) {
	release, err := s.locks.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyEdits(p); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) applyEdits(p *Project) error {
	if p.GetStep() != StepTranscribed {
		return ErrNotTranscribed
	}

	index, err := timeline.NewIndex(p.Speech)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEditApplication, err)
	}
	clips, err := timeline.Reconcile(p.Transcription, p.DisabledSegmentIDs, index)
	if err != nil {
		s.logger.Error("failed to apply edits",
			slog.String("project_id", p.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrEditApplication, err)
	}
	p.SetClips(clips)

	s.logger.Info("edits applied",
		slog.String("project_id", p.ID),
		slog.Int("disabled", p.DisabledSegmentIDs.Len()),
		slog.Int("clips", len(clips)),
	)
	return nil
}

// Export applies pending edits and writes the clip list as EDL or FCPXML to
// a destination chosen by the picker. A declined pick is reported as
// export.OutcomeCancelled with a nil error.
func (s *Service) Export(ctx context.Context, id string, in ExportInput) (*ExportResult, error) {
	format, err := export.ParseFormat(string(in.Format))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	release, err := s.locks.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.GetStep() == StepTranscribed {
		if err := s.applyEdits(p); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return nil, err
		}
	}
	if len(p.Clips) == 0 {
		return nil, export.ErrNoClips
	}

	name := in.Name
	if name == "" {
		name = p.Name
	}
	dest, ok, err := s.picker.Pick(ctx, export.Request{Name: name, Format: format, Overwrite: in.Overwrite})
	if err != nil {
		return nil, fmt.Errorf("pick export destination: %w", err)
	}
	if !ok {
		s.logger.Info("export cancelled",
			slog.String("project_id", p.ID),
			slog.String("format", string(format)),
		)
		return &ExportResult{Outcome: export.OutcomeCancelled}, nil
	}

	fps := p.FrameRate
	if fps <= 0 {
		fps = DefaultAudioFrameRate
	}
	var offset float64
	if p.StartTimecode != "" {
		offset, err = timecode.TimecodeToSeconds(p.StartTimecode, fps)
		if err != nil {
			return nil, fmt.Errorf("start timecode: %w", err)
		}
	}

	var artifact string
	switch format {
	case export.FormatEDL:
		text, err := export.EDL(p.Clips, export.EDLOptions{
			Title:        name,
			ClipName:     filepath.Base(p.FilePath),
			FPS:          fps,
			SourceOffset: offset,
		})
		if err != nil {
			return nil, err
		}
		if err := export.WriteEDL(dest, text); err != nil {
			return nil, err
		}
		artifact = dest
	case export.FormatFCPXML:
		mediaPath, err := filepath.Abs(p.FilePath)
		if err != nil {
			return nil, fmt.Errorf("resolve media path: %w", err)
		}
		doc, err := export.FCPXML(p.Clips, export.FCPXMLOptions{
			ProjectName:   name,
			EventName:     name,
			MediaPath:     mediaPath,
			MediaDuration: p.FileDuration,
			FPS:           fps,
			Width:         p.Width,
			Height:        p.Height,
			HasVideo:      p.FrameRate > 0,
			SourceOffset:  offset,
			LeaveGaps:     in.LeaveGaps,
		})
		if err != nil {
			return nil, err
		}
		if artifact, err = export.WriteFCPXMLBundle(dest, doc); err != nil {
			return nil, err
		}
	}

	result := &ExportResult{
		Outcome: export.OutcomeWritten,
		Path:    dest,
		Clips:   len(p.Clips),
	}

	if in.Publish {
		key := path.Join("exports", p.ID, filepath.Base(dest))
		if format == export.FormatFCPXML {
			key = path.Join(key, export.FCPXMLInfoFile)
		}
		url, err := s.storage.Publish(ctx, key, artifact)
		if err != nil {
			if errors.Is(err, storage.ErrS3NotConfigured) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: publish export: %w", ErrExternal, err)
		}
		result.URL = url
	}

	s.logger.Info("project exported",
		slog.String("project_id", p.ID),
		slog.String("format", string(format)),
		slog.String("path", dest),
		slog.Int("clips", result.Clips),
		slog.Bool("published", result.URL != ""),
	)

	return result, nil
}
