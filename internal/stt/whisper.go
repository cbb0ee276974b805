package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"voxkey/internal/ports"
)

const (
	defaultTimeout = 60 * time.Second
	retryBackoff   = 500 * time.Millisecond
)

// Client transcribes audio buffers against a whisper-server compatible
// HTTP endpoint (multipart WAV upload, JSON response).
type Client struct {
	endpoint   string
	maxRetries int
	httpClient *http.Client
	log        zerolog.Logger
	sampleRate int
}

var _ ports.SpeechToText = (*Client)(nil)

func NewClient(endpoint string, sampleRate, maxRetries int, log zerolog.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Client{
		endpoint:   endpoint,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.With().Str("component", "stt").Logger(),
		sampleRate: sampleRate,
	}
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe encodes the buffer as 16-bit WAV and uploads it. Retries
// transport failures with a fixed backoff; gives up after maxRetries.
func (c *Client) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("empty audio buffer")
	}

	wavData, err := c.encodeWAV(samples)
	if err != nil {
		return "", fmt.Errorf("wav encode failed: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt-1)):
			}
		}

		text, err := c.upload(ctx, wavData, language)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("transcription request failed")
	}
	return "", fmt.Errorf("transcription failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) upload(ctx context.Context, wavData []byte, language string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	_ = writer.WriteField("response_format", "json")
	_ = writer.WriteField("temperature", "0.0")
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("server error: %s", parsed.Error)
	}
	return parsed.Text, nil
}

// encodeWAV renders the float32 buffer as mono 16-bit PCM WAV. The wav
// encoder needs a seekable writer to patch up the header, so the file
// goes through a temp path.
func (c *Client) encodeWAV(samples []float32) ([]byte, error) {
	f, err := os.CreateTemp("", "voxkey-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, c.sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: c.sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
