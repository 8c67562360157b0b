package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Outcome is the result of an export that did not fail.
type Outcome string

const (
	// OutcomeWritten means the artifact was written.
	OutcomeWritten Outcome = "written"
	// OutcomeCancelled means no destination was chosen. It is not an error.
	OutcomeCancelled Outcome = "cancelled"
)

// Format names an export format.
type Format string

const (
	FormatEDL    Format = "edl"
	FormatFCPXML Format = "fcpxml"
)

// ErrUnknownFormat is returned for formats other than edl and fcpxml.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatEDL, FormatFCPXML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the file or bundle extension for the format.
func (f Format) Extension() string {
	if f == FormatFCPXML {
		return ".fcpxmld"
	}
	return ".edl"
}

// Request describes the artifact a Picker is asked to place.
type Request struct {
	// Name is the suggested base name without extension.
	Name   string
	Format Format
	// Overwrite allows replacing an existing artifact.
	Overwrite bool
}

// Picker chooses where an export is written. ok is false when the user (or
// policy) declined to choose a destination.
type Picker interface {
	Pick(ctx context.Context, req Request) (path string, ok bool, err error)
}

// DirPicker places every export in a fixed directory as
// <dir>/<name><extension>. It declines when the destination already exists
// and the request does not allow overwriting.
type DirPicker struct {
	dir string
}

// NewDirPicker creates a DirPicker rooted at dir.
func NewDirPicker(dir string) *DirPicker {
	return &DirPicker{dir: dir}
}

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// Pick implements Picker.
func (p *DirPicker) Pick(ctx context.Context, req Request) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	name := strings.TrimSpace(unsafeNameRe.ReplaceAllString(req.Name, "_"))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "export"
	}

	path := filepath.Join(p.dir, name+req.Format.Extension())
	if _, err := os.Stat(path); err == nil && !req.Overwrite {
		return "", false, nil
	}

	return path, true, nil
}

// Verify interface implementation at compile time.
var _ Picker = (*DirPicker)(nil)
