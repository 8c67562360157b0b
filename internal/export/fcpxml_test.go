package export

import (
	"encoding/xml"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/cutline-api/internal/timecode"
	"github.com/maauso/cutline-api/internal/timeline"
)

func baseFCPXMLOptions() FCPXMLOptions {
	return FCPXMLOptions{
		ProjectName:   "Interview cut",
		EventName:     "Interview",
		MediaPath:     "/media/My Clip.mov",
		MediaDuration: 10,
		FPS:           25,
		Width:         1920,
		Height:        1080,
		HasVideo:      true,
	}
}

var gappedClips = []timeline.Clip{{Start: 1, End: 2}, {Start: 2, End: 3}, {Start: 5, End: 6}}

func spineSummary(doc *Document) []string {
	var out []string
	for _, it := range doc.Library.Event.Project.Sequence.Spine.Items {
		out = append(out, it.XMLName.Local+" "+it.Offset+" "+it.Start+" "+it.Duration)
	}
	return out
}

func TestFCPXML_ButtSplice(t *testing.T) {
	doc, err := FCPXML(gappedClips, baseFCPXMLOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"asset-clip 0s 2500/2500s 2500/2500s",
		"asset-clip 2500/2500s 5000/2500s 2500/2500s",
		"asset-clip 5000/2500s 12500/2500s 2500/2500s",
	}, spineSummary(doc))
	assert.Equal(t, "7500/2500s", doc.Library.Event.Project.Sequence.Duration)

	assert.Equal(t, "100/2500s", doc.Resources.Format.FrameDuration)
	assert.Equal(t, "FFVideoFormat1080p25", doc.Resources.Format.Name)
	assert.Equal(t, "My Clip.mov", doc.Resources.Asset.Name)
	assert.Equal(t, "25000/2500s", doc.Resources.Asset.Duration)
	assert.Equal(t, "file:///media/My%20Clip.mov", doc.Resources.Asset.MediaRep.Src)
	assert.Equal(t, 1, doc.Resources.Asset.HasVideo)
}

func TestFCPXML_LeaveGaps(t *testing.T) {
	opts := baseFCPXMLOptions()
	opts.LeaveGaps = true

	doc, err := FCPXML(gappedClips, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"gap 0s  2500/2500s",
		"asset-clip 2500/2500s 2500/2500s 2500/2500s",
		"asset-clip 5000/2500s 5000/2500s 2500/2500s",
		"gap 7500/2500s  5000/2500s",
		"asset-clip 12500/2500s 12500/2500s 2500/2500s",
	}, spineSummary(doc))
	assert.Equal(t, "15000/2500s", doc.Library.Event.Project.Sequence.Duration)

	// With gaps every clip sits at its absolute source position.
	for _, it := range doc.Library.Event.Project.Sequence.Spine.Items {
		if it.XMLName.Local == "asset-clip" {
			assert.Equal(t, it.Start, it.Offset)
		}
	}
}

func TestFCPXML_SourceOffset(t *testing.T) {
	opts := baseFCPXMLOptions()
	opts.SourceOffset = 3600

	doc, err := FCPXML([]timeline.Clip{{Start: 0, End: 1}}, opts)
	require.NoError(t, err)

	assert.Equal(t, "9000000/2500s", doc.Resources.Asset.Start)
	assert.Equal(t, []string{"asset-clip 0s 9000000/2500s 2500/2500s"}, spineSummary(doc))
}

func TestFCPXML_OffsetAddedBeforeFlooring(t *testing.T) {
	opts := baseFCPXMLOptions()
	opts.SourceOffset = 0.01

	// 0.03+0.01 lands exactly on frame 1; flooring each part alone gives frame 0.
	doc, err := FCPXML([]timeline.Clip{{Start: 0.03, End: 1}}, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"asset-clip 0s 100/2500s 2400/2500s"}, spineSummary(doc))
}

func TestFCPXML_ExportedTypesDocumented(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "fcpxml.go", nil, parser.ParseComments)
	require.NoError(t, err)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			if !ts.Name.IsExported() {
				continue
			}
			assert.True(t, gen.Doc != nil || ts.Doc != nil, "type %s has no doc comment", ts.Name.Name)
		}
	}
}

func TestFCPXML_NTSCRate(t *testing.T) {
	opts := baseFCPXMLOptions()
	opts.FPS = 30000.0 / 1001.0

	doc, err := FCPXML([]timeline.Clip{{Start: 0, End: 1.001}}, opts)
	require.NoError(t, err)

	assert.Equal(t, "1001/30000s", doc.Resources.Format.FrameDuration)
	assert.Equal(t, "FFVideoFormat1080p2997", doc.Resources.Format.Name)
	assert.Equal(t, []string{"asset-clip 0s 0s 30030/30000s"}, spineSummary(doc))
}

func TestFCPXML_SkipsSubFrameClips(t *testing.T) {
	doc, err := FCPXML([]timeline.Clip{{Start: 1, End: 1.01}, {Start: 2, End: 3}}, baseFCPXMLOptions())
	require.NoError(t, err)
	assert.Len(t, doc.Library.Event.Project.Sequence.Spine.Items, 1)

	_, err = FCPXML([]timeline.Clip{{Start: 1, End: 1.01}}, baseFCPXMLOptions())
	assert.ErrorIs(t, err, ErrNoClips)
}

func TestFCPXML_Errors(t *testing.T) {
	opts := baseFCPXMLOptions()
	opts.FPS = 12
	_, err := FCPXML(gappedClips, opts)
	assert.ErrorIs(t, err, timecode.ErrUnsupportedFrameRate)

	opts.FPS = 0
	_, err = FCPXML(gappedClips, opts)
	assert.ErrorIs(t, err, ErrInvalidFrameRate)

	_, err = FCPXML(nil, baseFCPXMLOptions())
	assert.ErrorIs(t, err, ErrNoClips)

	_, err = FCPXML([]timeline.Clip{{Start: -1, End: 1}}, baseFCPXMLOptions())
	assert.ErrorIs(t, err, timeline.ErrInvalidClip)
}

func TestMarshal(t *testing.T) {
	opts := baseFCPXMLOptions()
	opts.LeaveGaps = true
	doc, err := FCPXML(gappedClips, opts)
	require.NoError(t, err)

	data, err := Marshal(doc)
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, xml.Header+"<!DOCTYPE fcpxml>\n<fcpxml version=\"1.10\">"))
	assert.Contains(t, out, `<format id="r1" name="FFVideoFormat1080p25" frameDuration="100/2500s" width="1920" height="1080"></format>`)
	assert.Contains(t, out, `<media-rep kind="original-media" src="file:///media/My%20Clip.mov"></media-rep>`)
	assert.Contains(t, out, `<gap name="Gap" offset="0s" duration="2500/2500s"></gap>`)
	assert.Contains(t, out, `<asset-clip ref="r2" name="My Clip.mov" offset="2500/2500s" start="2500/2500s" duration="2500/2500s" format="r1" tcFormat="NDF"></asset-clip>`)

	// Spine children keep timeline order.
	first := strings.Index(out, "<gap")
	clip := strings.Index(out, "<asset-clip")
	last := strings.LastIndex(out, "<gap")
	assert.Less(t, first, clip)
	assert.Less(t, clip, last)

	// The document is well formed.
	var generic struct {
		XMLName xml.Name `xml:"fcpxml"`
		Version string   `xml:"version,attr"`
	}
	require.NoError(t, xml.Unmarshal(data, &generic))
	assert.Equal(t, "1.10", generic.Version)
}
