package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jitenkr2030/video-shiksha/models"
)

// Deterministic collaborator stubs. They produce stable output for the same
// input so retried jobs converge, and they exist so the whole pipeline can be
// composed and exercised without any external backend.

// StubExtractor reads the deck as UTF-8 text: slides are separated by a line
// containing only "---", the first line of each block is the title.
type StubExtractor struct{}

func (e *StubExtractor) ExtractSlides(ctx context.Context, fileBytes []byte, progress ProgressFunc) ([]ExtractedSlide, error) {
	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("%w: empty deck", ErrCollaborator)
	}
	if !utf8.Valid(fileBytes) {
		return nil, fmt.Errorf("%w: unsupported format", ErrCollaborator)
	}
	if progress != nil {
		progress(10)
	}

	var slides []ExtractedSlide
	for _, block := range strings.Split(string(fileBytes), "\n---\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.SplitN(block, "\n", 2)
		title := strings.TrimSpace(lines[0])
		content := ""
		if len(lines) > 1 {
			content = strings.TrimSpace(lines[1])
		}
		if content == "" {
			content = title
		}
		slides = append(slides, ExtractedSlide{
			Title:             title,
			Content:           content,
			EstimatedDuration: speechDuration(content),
		})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("%w: extraction produced no slides", ErrCollaborator)
	}
	if progress != nil {
		progress(90)
	}
	return slides, nil
}

// StubScriptGenerator turns slide content into a short narration.
type StubScriptGenerator struct{}

func (g *StubScriptGenerator) GenerateScript(ctx context.Context, content, customPrompt string, progress ProgressFunc) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty slide content", ErrCollaborator)
	}
	if progress != nil {
		progress(30)
	}
	var b strings.Builder
	if customPrompt != "" {
		b.WriteString(customPrompt)
		b.WriteString(" ")
	}
	b.WriteString("In this section we cover the following. ")
	b.WriteString(strings.Join(strings.Fields(content), " "))
	if progress != nil {
		progress(90)
	}
	return b.String(), nil
}

// StubSynthesizer emits a valid silent WAV sized to the narration length.
type StubSynthesizer struct{}

const stubSampleRate = 8000

func (s *StubSynthesizer) GenerateSpeech(ctx context.Context, text string, voice models.VoiceSettings, progress ProgressFunc) ([]byte, float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, fmt.Errorf("%w: empty narration", ErrCollaborator)
	}
	if progress != nil {
		progress(10)
	}
	dur := speechDuration(text)
	if voice.Speed > 0 {
		dur = dur / voice.Speed
	}
	samples := int(dur * stubSampleRate)
	data := make([]byte, samples*2) // 16-bit mono silence

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(stubSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(stubSampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	if progress != nil {
		progress(90)
	}
	return buf.Bytes(), dur, nil
}

// StubRenderer concatenates a deterministic pseudo-container from the slide
// list; the duration is the audio total plus transitions.
type StubRenderer struct{}

func (r *StubRenderer) RenderVideo(ctx context.Context, slides []models.RenderSlide, settings models.RenderSettings, progress ProgressFunc) ([]byte, float64, error) {
	if len(slides) == 0 {
		return nil, 0, fmt.Errorf("%w: no slides to render", ErrCollaborator)
	}
	for _, sl := range slides {
		if sl.AudioURL == "" {
			return nil, 0, fmt.Errorf("%w: slide %s has no audio", ErrCollaborator, sl.ID)
		}
	}
	var buf bytes.Buffer
	buf.WriteString("FAKEMP4|")
	buf.WriteString(settings.Resolution)
	buf.WriteString("|")

	total := 0.0
	for i, sl := range slides {
		fmt.Fprintf(&buf, "slide:%s;dur:%.2f|", sl.ID, sl.DurationSec)
		total += sl.DurationSec
		if i > 0 {
			total += settings.TransitionDuration
		}
		if progress != nil {
			progress(10 + 80*(i+1)/len(slides))
		}
	}
	return buf.Bytes(), total, nil
}

// StubSubtitler assembles an SRT file from the timed entries.
type StubSubtitler struct{}

func (s *StubSubtitler) GenerateSubtitles(ctx context.Context, entries []SubtitleEntry, progress ProgressFunc) ([]byte, error) {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			e.Index, srtTimestamp(e.StartSec), srtTimestamp(e.EndSec), strings.TrimSpace(e.Text))
		if progress != nil {
			progress(10 + 80*(i+1)/len(entries))
		}
	}
	return []byte(b.String()), nil
}

func srtTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	ms := int(sec*1000 + 0.5)
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// speechDuration estimates narration length at 2.5 words per second.
func speechDuration(text string) float64 {
	words := len(strings.Fields(text))
	dur := float64(words) / 2.5
	if dur < 3 {
		dur = 3
	}
	return dur
}
