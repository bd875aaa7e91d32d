package filtergraph

import (
	"errors"
	"strings"
	"testing"

	"video-branding-worker/apperror"
	"video-branding-worker/dto"
)

var testFonts = Fonts{Bold: "/assets/font/Poppins-Bold.ttf", Regular: "/assets/font/Poppins-Regular.ttf"}

func fullHD(audio bool) dto.MediaDescriptor {
	return dto.MediaDescriptor{Width: 1920, Height: 1080, HasAudioStream: audio, DurationSeconds: 30, FrameRate: 30}
}

func mustBuild(t *testing.T, desc dto.MediaDescriptor, text string) FilterGraph {
	t.Helper()
	graph, err := BuildFromText(desc, text, testFonts)
	if err != nil {
		t.Fatalf("BuildFromText: %v", err)
	}
	return graph
}

func filters(g FilterGraph) []string {
	out := make([]string, len(g.Stages))
	for i, s := range g.Stages {
		out[i] = s.Filter
	}
	return out
}

func TestBuildWithAudioStageOrder(t *testing.T) {
	graph := mustBuild(t, fullHD(true), "A - B - C - D")

	want := []string{"scale", "scale", "overlay", "drawtext", "drawtext", "drawtext", "drawtext", "loop", "anullsrc", "atrim", "concat"}
	if got := filters(graph); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("stage order = %v, want %v", got, want)
	}
	if graph.Variant != WithAudio {
		t.Fatalf("expected WithAudio variant, got %s", graph.Variant)
	}

	checks := []struct {
		idx  int
		args string
		in   []string
	}{
		{0, "1920:1080", []string{"1:v"}},
		{1, "1920:1080", []string{"2:v"}},
		{2, "0:0", []string{"0:v", "scaled"}},
		{7, "150:1", []string{"scaled_disclaimer"}},
		{8, "r=44100:cl=stereo", nil},
		{9, "duration=5", []string{"disclaimer_audio"}},
		{10, "n=2:v=1:a=1", []string{"v5", "0:a", "looped_disclaimer", "trimmed_disclaimer_audio"}},
	}
	for _, c := range checks {
		stage := graph.Stages[c.idx]
		if stage.Args != c.args {
			t.Errorf("stage %d (%s) args = %q, want %q", c.idx, stage.Filter, stage.Args, c.args)
		}
		if strings.Join(stage.Inputs, ",") != strings.Join(c.in, ",") {
			t.Errorf("stage %d (%s) inputs = %v, want %v", c.idx, stage.Filter, stage.Inputs, c.in)
		}
	}

	if labels := graph.OutputLabels(); len(labels) != 2 || labels[0] != "outv" || labels[1] != "outa" {
		t.Fatalf("unexpected output labels %v", labels)
	}
}

func TestBuildDrawtextChain(t *testing.T) {
	graph := mustBuild(t, fullHD(true), "Dr.Jane Doe - Cardiology - General Hospital - Springfield")

	var texts []*Stage
	for i := range graph.Stages {
		if graph.Stages[i].Filter == "drawtext" {
			texts = append(texts, &graph.Stages[i])
		}
	}
	if len(texts) != 4 {
		t.Fatalf("expected 4 drawtext stages, got %d", len(texts))
	}

	wantText := []string{`text=Dr.Jane Doe`, `text=Cardiology`, `text=General Hospital`, `text=Springfield`}
	wantSize := []string{"fontsize=40", "fontsize=28", "fontsize=28", "fontsize=28"}
	wantY := []string{"y=h-text_h-160", "y=h-text_h-120", "y=h-text_h-85", "y=h-text_h-55"}
	prev := "v1"
	for i, s := range texts {
		if len(s.Inputs) != 1 || s.Inputs[0] != prev {
			t.Errorf("drawtext %d input = %v, want [%s]", i, s.Inputs, prev)
		}
		prev = s.Outputs[0]
		for _, want := range []string{wantText[i], wantSize[i], wantY[i], "x=(w-text_w)/2", "fontcolor=white"} {
			if !strings.Contains(s.Args, want) {
				t.Errorf("drawtext %d args %q missing %q", i, s.Args, want)
			}
		}
	}
	if !strings.Contains(texts[0].Args, "Poppins-Bold") {
		t.Errorf("name line should use the bold font: %q", texts[0].Args)
	}
	for _, s := range texts[1:] {
		if !strings.Contains(s.Args, "Poppins-Regular") {
			t.Errorf("detail line should use the regular font: %q", s.Args)
		}
	}
}

func TestBuildVideoOnly(t *testing.T) {
	graph := mustBuild(t, fullHD(false), "A - B - C - D")

	if graph.Variant != VideoOnly {
		t.Fatalf("expected VideoOnly variant, got %s", graph.Variant)
	}
	for _, s := range graph.Stages {
		if s.Filter == "anullsrc" || s.Filter == "atrim" {
			t.Fatalf("unexpected audio stage %s", s.Filter)
		}
		for _, in := range s.Inputs {
			if in == "0:a" {
				t.Fatalf("stage %s references source audio", s.Filter)
			}
		}
	}
	last := graph.Stages[len(graph.Stages)-1]
	if last.Filter != "concat" || last.Args != "n=2:v=1:a=0" {
		t.Fatalf("unexpected final stage %s", last)
	}
	if labels := graph.OutputLabels(); len(labels) != 1 || labels[0] != "outv" {
		t.Fatalf("expected single video output, got %v", labels)
	}
}

func TestBuildScalesBrandingWithResolution(t *testing.T) {
	desc := dto.MediaDescriptor{Width: 1280, Height: 720, FrameRate: 25}
	graph := mustBuild(t, desc, "A - B - C - D")

	if graph.Stages[0].Args != "1280:720" {
		t.Fatalf("template scale = %q", graph.Stages[0].Args)
	}
	// factor 2/3: 40 -> 27, 28 -> 19, 160 -> 107, 55 -> 37
	if !strings.Contains(graph.Stages[3].Args, "fontsize=27") || !strings.Contains(graph.Stages[3].Args, "y=h-text_h-107") {
		t.Fatalf("unexpected name stage %q", graph.Stages[3].Args)
	}
	if !strings.Contains(graph.Stages[6].Args, "fontsize=19") || !strings.Contains(graph.Stages[6].Args, "y=h-text_h-37") {
		t.Fatalf("unexpected city stage %q", graph.Stages[6].Args)
	}
	if graph.TrailerFrames != 125 {
		t.Fatalf("expected 125 trailer frames at 25fps, got %d", graph.TrailerFrames)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := mustBuild(t, fullHD(true), "A - B - C - D").String()
	b := mustBuild(t, fullHD(true), "A - B - C - D").String()
	if a != b {
		t.Fatalf("graph differs between runs:\n%s\n%s", a, b)
	}
}

func TestFilterGraphString(t *testing.T) {
	graph := mustBuild(t, fullHD(false), "A - B - C - D")
	rendered := graph.String()
	if !strings.HasPrefix(rendered, "[1:v]scale=1920:1080[scaled];[2:v]scale=1920:1080[scaled_disclaimer];[0:v][scaled]overlay=0:0[v1];") {
		t.Fatalf("unexpected prefix: %s", rendered)
	}
	if !strings.HasSuffix(rendered, "[v5][looped_disclaimer]concat=n=2:v=1:a=0[outv]") {
		t.Fatalf("unexpected suffix: %s", rendered)
	}
}

func TestTrailerFrameCount(t *testing.T) {
	cases := map[float64]int{0: 150, 30: 150, 25: 125, 29.97: 150, 60: 300, -1: 150}
	for fps, want := range cases {
		if got := TrailerFrameCount(fps); got != want {
			t.Errorf("TrailerFrameCount(%v) = %d, want %d", fps, got, want)
		}
	}
}

func TestEscapeValue(t *testing.T) {
	cases := map[string]string{
		"plain":       "plain",
		"St. Mary: A": `St. Mary\\: A`,
		"a,b;c":       `a\,b\;c`,
		`back\slash`:  `back\\\\slash`,
		"[x]":         `\[x\]`,
	}
	for in, want := range cases {
		if got := escapeValue(in); got != want {
			t.Errorf("escapeValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	if _, err := Build(dto.MediaDescriptor{}, Caption{"a", "b", "c", "d"}, testFonts); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
	if _, err := Build(fullHD(true), Caption{"a", "", "c", "d"}, testFonts); err == nil {
		t.Fatal("expected error for empty caption field")
	}
	if _, err := Build(fullHD(true), Caption{"a", "b", "c", "d"}, Fonts{}); err == nil {
		t.Fatal("expected error for missing fonts")
	}
}

func TestParseCaption(t *testing.T) {
	c, err := ParseCaption("  Dr.Jane Doe -Cardiology-  General Hospital - Springfield \n")
	if err != nil {
		t.Fatalf("ParseCaption: %v", err)
	}
	if c != (Caption{"Dr.Jane Doe", "Cardiology", "General Hospital", "Springfield"}) {
		t.Fatalf("unexpected caption %+v", c)
	}

	quoted, err := ParseCaption(`Dr.O'Neil - "Neuro" - H - C`)
	if err != nil {
		t.Fatalf("ParseCaption: %v", err)
	}
	if quoted.Name != "Dr.ONeil" || quoted.Speciality != "Neuro" {
		t.Fatalf("quotes should be stripped: %+v", quoted)
	}
}

func TestParseCaptionRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"A - B - C",
		"A - B - C - D - E",
		"A - - C - D",
		"A - B - C -   ",
		"no separators at all",
	}
	for _, text := range bad {
		t.Run(text, func(t *testing.T) {
			_, err := ParseCaption(text)
			var validation *apperror.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, err := BuildFromText(fullHD(true), text, testFonts); err == nil {
				t.Fatal("builder must reject malformed captions")
			}
		})
	}
}

func TestComposeCaption(t *testing.T) {
	text, err := ComposeCaption("Jane Doe", "Cardiology", "General Hospital", "Springfield")
	if err != nil {
		t.Fatalf("ComposeCaption: %v", err)
	}
	if text != "Dr.Jane Doe - Cardiology - General Hospital - Springfield" {
		t.Fatalf("unexpected caption %q", text)
	}
	if _, err := ComposeCaption("Jane", "Ear-Nose-Throat", "H", "C"); err == nil {
		t.Fatal("expected error for separator inside a field")
	}
	if _, err := ComposeCaption("Jane", "", "H", "C"); err == nil {
		t.Fatal("expected error for empty field")
	}
}
