package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/models"
)

// workerClient talks to one external generation worker: dispatch a job via
// POST /v1/generate, then poll GET /v1/jobs/{id} until it settles, relaying
// the worker's progress checkpoints.
type workerClient struct {
	base string
	http *http.Client
}

func newWorkerClient(base string) *workerClient {
	return &workerClient{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type workerJob struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error"`
	Result   struct {
		ResourceURL string `json:"resource_url"`
	} `json:"result"`
}

func (c *workerClient) dispatch(ctx context.Context, kind string, params map[string]interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"type":       kind,
		"parameters": params,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: dispatch: %v", ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: worker status code %d", ErrCollaborator, resp.StatusCode)
	}
	var job workerJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrCollaborator, err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("%w: response missing job id", ErrCollaborator)
	}
	return job.ID, nil
}

// poll blocks until the worker job settles, calling progress on change.
// Cancellation is cooperative: the context deadline is the only way out of a
// stuck worker.
func (c *workerClient) poll(ctx context.Context, workerJobID string, progress ProgressFunc) (string, error) {
	jobURL := fmt.Sprintf("%s/v1/jobs/%s", c.base, workerJobID)
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	lastProgress := -1
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
			if err != nil {
				return "", err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				log.Warn().Err(err).Str("url", jobURL).Msg("worker poll error, retrying")
				continue
			}
			var job workerJob
			if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
				resp.Body.Close()
				log.Warn().Err(err).Str("url", jobURL).Msg("worker poll decode error, retrying")
				continue
			}
			resp.Body.Close()

			if progress != nil && job.Progress > lastProgress {
				lastProgress = job.Progress
				progress(job.Progress)
			}
			switch job.Status {
			case "finished", "completed", "success", "succeeded":
				if job.Result.ResourceURL == "" {
					return "", fmt.Errorf("%w: result missing resource_url", ErrCollaborator)
				}
				return job.Result.ResourceURL, nil
			case "failed", "error":
				return "", fmt.Errorf("%w: worker reported failure: %s", ErrCollaborator, job.Error)
			}
		}
	}
}

func (c *workerClient) run(ctx context.Context, kind string, params map[string]interface{}, progress ProgressFunc) (string, error) {
	workerJobID, err := c.dispatch(ctx, kind, params)
	if err != nil {
		return "", err
	}
	return c.poll(ctx, workerJobID, progress)
}

func (c *workerClient) fetch(ctx context.Context, resourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch result: %v", ErrCollaborator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch result status %d", ErrCollaborator, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// HTTPExtractor sends the deck and downloads the extracted slide JSON.
type HTTPExtractor struct{ c *workerClient }

func NewHTTPExtractor(addr string) *HTTPExtractor { return &HTTPExtractor{c: newWorkerClient(addr)} }

func (e *HTTPExtractor) ExtractSlides(ctx context.Context, fileBytes []byte, progress ProgressFunc) ([]ExtractedSlide, error) {
	resourceURL, err := e.c.run(ctx, "extract_slides", map[string]interface{}{
		"file_b64": base64.StdEncoding.EncodeToString(fileBytes),
	}, progress)
	if err != nil {
		return nil, err
	}
	data, err := e.c.fetch(ctx, resourceURL)
	if err != nil {
		return nil, err
	}
	var out struct {
		Slides []ExtractedSlide `json:"slides"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: parse slide json: %v", ErrCollaborator, err)
	}
	if len(out.Slides) == 0 {
		return nil, fmt.Errorf("%w: extraction produced no slides", ErrCollaborator)
	}
	return out.Slides, nil
}

type HTTPScriptGenerator struct{ c *workerClient }

func NewHTTPScriptGenerator(addr string) *HTTPScriptGenerator {
	return &HTTPScriptGenerator{c: newWorkerClient(addr)}
}

func (g *HTTPScriptGenerator) GenerateScript(ctx context.Context, content, customPrompt string, progress ProgressFunc) (string, error) {
	resourceURL, err := g.c.run(ctx, "generate_script", map[string]interface{}{
		"content":       content,
		"custom_prompt": customPrompt,
	}, progress)
	if err != nil {
		return "", err
	}
	data, err := g.c.fetch(ctx, resourceURL)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type HTTPSynthesizer struct{ c *workerClient }

func NewHTTPSynthesizer(addr string) *HTTPSynthesizer {
	return &HTTPSynthesizer{c: newWorkerClient(addr)}
}

func (s *HTTPSynthesizer) GenerateSpeech(ctx context.Context, text string, voice models.VoiceSettings, progress ProgressFunc) ([]byte, float64, error) {
	resourceURL, err := s.c.run(ctx, "generate_speech", map[string]interface{}{
		"text":     text,
		"provider": voice.Provider,
		"voice":    voice.Voice,
		"speed":    voice.Speed,
		"pitch":    voice.Pitch,
		"lang":     voice.Language,
	}, progress)
	if err != nil {
		return nil, 0, err
	}
	data, err := s.c.fetch(ctx, resourceURL)
	if err != nil {
		return nil, 0, err
	}
	return data, speechDuration(text), nil
}

type HTTPRenderer struct{ c *workerClient }

func NewHTTPRenderer(addr string) *HTTPRenderer { return &HTTPRenderer{c: newWorkerClient(addr)} }

func (r *HTTPRenderer) RenderVideo(ctx context.Context, slides []models.RenderSlide, settings models.RenderSettings, progress ProgressFunc) ([]byte, float64, error) {
	resourceURL, err := r.c.run(ctx, "render_video", map[string]interface{}{
		"slides":   slides,
		"settings": settings,
	}, progress)
	if err != nil {
		return nil, 0, err
	}
	data, err := r.c.fetch(ctx, resourceURL)
	if err != nil {
		return nil, 0, err
	}
	total := 0.0
	for _, sl := range slides {
		total += sl.DurationSec
	}
	return data, total, nil
}

type HTTPSubtitler struct{ c *workerClient }

func NewHTTPSubtitler(addr string) *HTTPSubtitler { return &HTTPSubtitler{c: newWorkerClient(addr)} }

func (s *HTTPSubtitler) GenerateSubtitles(ctx context.Context, entries []SubtitleEntry, progress ProgressFunc) ([]byte, error) {
	resourceURL, err := s.c.run(ctx, "generate_subtitles", map[string]interface{}{
		"entries": entries,
	}, progress)
	if err != nil {
		return nil, err
	}
	return s.c.fetch(ctx, resourceURL)
}
