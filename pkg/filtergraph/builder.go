// Package filtergraph builds the ffmpeg filter_complex that brands a source
// video: template overlay, four caption lines and a disclaimer trailer.
//
// Inputs are expected in this order on the engine command line:
//
//	0: source video, 1: overlay template image, 2: disclaimer image
package filtergraph

import (
	"fmt"
	"math"
	"strings"

	"video-branding-worker/dto"
)

const (
	ReferenceWidth  = 1920
	ReferenceHeight = 1080

	TrailerSeconds   = 5
	DefaultFrameRate = 30

	nameFontSize    = 40
	regularFontSize = 28
	fontColor       = "white"

	silenceSampleRate = 44100
)

// bottomOffsets are measured from the bottom edge at the reference
// resolution, in drawing order: name, speciality, hospital, city.
var bottomOffsets = [4]int{160, 120, 85, 55}

// Variant tags the two graph shapes produced by Build.
type Variant int

const (
	VideoOnly Variant = iota
	WithAudio
)

func (v Variant) String() string {
	if v == WithAudio {
		return "with_audio"
	}
	return "video_only"
}

// Stage is a single filter invocation with its input and output pad labels.
type Stage struct {
	Filter  string
	Args    string
	Inputs  []string
	Outputs []string
}

func (s Stage) String() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(s.Filter)
	if s.Args != "" {
		b.WriteString("=" + s.Args)
	}
	for _, out := range s.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// Fonts are the font files used for the bold name line and the regular lines.
type Fonts struct {
	Bold    string
	Regular string
}

// FilterGraph is the ordered stage list plus the labels the encoder maps.
type FilterGraph struct {
	Variant       Variant
	Stages        []Stage
	VideoOut      string
	AudioOut      string
	TrailerFrames int
	FontFiles     []string
}

// String renders the graph in filter_complex syntax.
func (g FilterGraph) String() string {
	parts := make([]string, len(g.Stages))
	for i, s := range g.Stages {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}

// OutputLabels returns the pads to map into the output file.
func (g FilterGraph) OutputLabels() []string {
	if g.Variant == WithAudio {
		return []string{g.VideoOut, g.AudioOut}
	}
	return []string{g.VideoOut}
}

// ScaleFactor is the ratio applied to font sizes and offsets so branding keeps
// its proportion at any resolution.
func ScaleFactor(width, height int) float64 {
	return math.Min(float64(width)/ReferenceWidth, float64(height)/ReferenceHeight)
}

// TrailerFrameCount is the number of frames the disclaimer image is looped
// for at the given source frame rate.
func TrailerFrameCount(frameRate float64) int {
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		frameRate = DefaultFrameRate
	}
	return int(math.Round(TrailerSeconds * frameRate))
}

// BuildFromText parses the wire caption and builds the graph.
func BuildFromText(desc dto.MediaDescriptor, captionText string, fonts Fonts) (FilterGraph, error) {
	caption, err := ParseCaption(captionText)
	if err != nil {
		return FilterGraph{}, err
	}
	return Build(desc, caption, fonts)
}

// Build is pure: the same descriptor, caption and fonts always yield the same
// graph.
func Build(desc dto.MediaDescriptor, caption Caption, fonts Fonts) (FilterGraph, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return FilterGraph{}, fmt.Errorf("filtergraph: invalid dimensions %dx%d", desc.Width, desc.Height)
	}
	if err := caption.Validate(); err != nil {
		return FilterGraph{}, err
	}
	if fonts.Bold == "" || fonts.Regular == "" {
		return FilterGraph{}, fmt.Errorf("filtergraph: bold and regular fonts are required")
	}

	size := fmt.Sprintf("%d:%d", desc.Width, desc.Height)
	scale := ScaleFactor(desc.Width, desc.Height)
	frames := TrailerFrameCount(desc.FrameRate)

	stages := []Stage{
		{Filter: "scale", Args: size, Inputs: []string{"1:v"}, Outputs: []string{"scaled"}},
		{Filter: "scale", Args: size, Inputs: []string{"2:v"}, Outputs: []string{"scaled_disclaimer"}},
		{Filter: "overlay", Args: "0:0", Inputs: []string{"0:v", "scaled"}, Outputs: []string{"v1"}},
	}

	prev := "v1"
	for i, text := range caption.Fields() {
		font, fontSize := fonts.Regular, regularFontSize
		if i == 0 {
			font, fontSize = fonts.Bold, nameFontSize
		}
		out := fmt.Sprintf("v%d", i+2)
		stages = append(stages, Stage{
			Filter:  "drawtext",
			Args:    drawtextArgs(text, font, scaled(fontSize, scale), scaled(bottomOffsets[i], scale)),
			Inputs:  []string{prev},
			Outputs: []string{out},
		})
		prev = out
	}

	stages = append(stages, Stage{
		Filter:  "loop",
		Args:    fmt.Sprintf("%d:1", frames),
		Inputs:  []string{"scaled_disclaimer"},
		Outputs: []string{"looped_disclaimer"},
	})

	graph := FilterGraph{
		VideoOut:      "outv",
		TrailerFrames: frames,
		FontFiles:     []string{fonts.Bold, fonts.Regular},
	}

	if desc.HasAudioStream {
		graph.Variant = WithAudio
		graph.AudioOut = "outa"
		stages = append(stages,
			Stage{
				Filter:  "anullsrc",
				Args:    fmt.Sprintf("r=%d:cl=stereo", silenceSampleRate),
				Outputs: []string{"disclaimer_audio"},
			},
			Stage{
				Filter:  "atrim",
				Args:    fmt.Sprintf("duration=%d", TrailerSeconds),
				Inputs:  []string{"disclaimer_audio"},
				Outputs: []string{"trimmed_disclaimer_audio"},
			},
			Stage{
				Filter:  "concat",
				Args:    "n=2:v=1:a=1",
				Inputs:  []string{prev, "0:a", "looped_disclaimer", "trimmed_disclaimer_audio"},
				Outputs: []string{graph.VideoOut, graph.AudioOut},
			},
		)
	} else {
		graph.Variant = VideoOnly
		stages = append(stages, Stage{
			Filter:  "concat",
			Args:    "n=2:v=1:a=0",
			Inputs:  []string{prev, "looped_disclaimer"},
			Outputs: []string{graph.VideoOut},
		})
	}

	graph.Stages = stages
	return graph, nil
}

func scaled(px int, factor float64) int {
	v := int(math.Round(float64(px) * factor))
	if v < 1 {
		return 1
	}
	return v
}

func drawtextArgs(text, font string, fontSize, bottomOffset int) string {
	return strings.Join([]string{
		"fontfile=" + escapeValue(font),
		"text=" + escapeValue(text),
		"expansion=none",
		"fontcolor=" + fontColor,
		fmt.Sprintf("fontsize=%d", fontSize),
		"x=(w-text_w)/2",
		fmt.Sprintf("y=h-text_h-%d", bottomOffset),
	}, ":")
}

var (
	argEscaper   = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `,`, `\,`, `;`, `\;`, `[`, `\[`, `]`, `\]`)
)

// escapeValue applies the option-level escaping followed by the graph-level
// escaping required for a value embedded in filter_complex.
func escapeValue(v string) string {
	return graphEscaper.Replace(argEscaper.Replace(v))
}
