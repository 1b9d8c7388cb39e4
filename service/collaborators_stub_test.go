package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jitenkr2030/video-shiksha/models"
)

func TestStubExtractorSplitsDeck(t *testing.T) {
	e := &StubExtractor{}
	deck := "First\nLine one\nLine two\n---\nSecond\n---\nThird\nMore text"
	slides, err := e.ExtractSlides(context.Background(), []byte(deck), nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(slides) != 3 {
		t.Fatalf("slides = %d, want 3", len(slides))
	}
	if slides[0].Title != "First" || slides[0].Content != "Line one\nLine two" {
		t.Fatalf("slide 1 = %+v", slides[0])
	}
	// A title-only slide narrates its title.
	if slides[1].Title != "Second" || slides[1].Content != "Second" {
		t.Fatalf("slide 2 = %+v", slides[1])
	}
	if slides[0].EstimatedDuration <= 0 {
		t.Fatal("no estimated duration")
	}
}

func TestStubExtractorRejectsBadDecks(t *testing.T) {
	e := &StubExtractor{}
	cases := map[string][]byte{
		"empty":       nil,
		"binary":      {0xff, 0xfe},
		"only dashes": []byte("\n---\n"),
		"whitespace":  []byte("   \n---\n   "),
	}
	for name, deck := range cases {
		if _, err := e.ExtractSlides(context.Background(), deck, nil); !errors.Is(err, ErrCollaborator) {
			t.Errorf("%s: err = %v, want ErrCollaborator", name, err)
		}
	}
}

func TestStubSynthesizerProducesWAV(t *testing.T) {
	s := &StubSynthesizer{}
	audio, dur, err := s.GenerateSpeech(context.Background(), "ten words of narration should last exactly four seconds here", models.VoiceSettings{Speed: 1.0}, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if dur != 4 {
		t.Fatalf("duration = %v, want 4", dur)
	}
	if !bytes.HasPrefix(audio, []byte("RIFF")) || !bytes.Contains(audio[:44], []byte("WAVE")) {
		t.Fatal("output is not a WAV container")
	}
	// Doubling speed halves the duration.
	_, fast, err := s.GenerateSpeech(context.Background(), "ten words of narration should last exactly four seconds here", models.VoiceSettings{Speed: 2.0}, nil)
	if err != nil {
		t.Fatalf("synthesize fast: %v", err)
	}
	if fast != 2 {
		t.Fatalf("fast duration = %v, want 2", fast)
	}
}

func TestStubRendererSumsDurations(t *testing.T) {
	r := &StubRenderer{}
	slides := []models.RenderSlide{
		{ID: "a", AudioURL: "mem://a", DurationSec: 4},
		{ID: "b", AudioURL: "mem://b", DurationSec: 6},
	}
	settings := models.RenderSettings{Resolution: "1280x720", TransitionDuration: 0.5}
	_, dur, err := r.RenderVideo(context.Background(), slides, settings, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if dur != 10.5 {
		t.Fatalf("duration = %v, want 10.5", dur)
	}

	slides[1].AudioURL = ""
	if _, _, err := r.RenderVideo(context.Background(), slides, settings, nil); !errors.Is(err, ErrCollaborator) {
		t.Fatalf("err = %v, want ErrCollaborator for missing audio", err)
	}
}

func TestStubSubtitlerFormatsSRT(t *testing.T) {
	s := &StubSubtitler{}
	out, err := s.GenerateSubtitles(context.Background(), []SubtitleEntry{
		{Index: 1, StartSec: 0, EndSec: 4, Text: "First caption"},
		{Index: 2, StartSec: 4.5, EndSec: 10, Text: "Second caption"},
	}, nil)
	if err != nil {
		t.Fatalf("subtitles: %v", err)
	}
	srt := string(out)
	want := "1\n00:00:00,000 --> 00:00:04,000\nFirst caption\n\n2\n00:00:04,500 --> 00:00:10,000\nSecond caption\n\n"
	if srt != want {
		t.Fatalf("srt = %q, want %q", srt, want)
	}
	if !strings.HasSuffix(srt, "\n\n") {
		t.Fatal("srt blocks must be blank-line separated")
	}
}

func TestSrtTimestamp(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "00:00:00,000"},
		{61.25, "00:01:01,250"},
		{3661.5, "01:01:01,500"},
		{-1, "00:00:00,000"},
	}
	for _, c := range cases {
		if got := srtTimestamp(c.sec); got != c.want {
			t.Errorf("srtTimestamp(%v) = %s, want %s", c.sec, got, c.want)
		}
	}
}
