package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	speechAPIURL    = "http://www.google.com/speech-api/v2/recognize"
	translateTTSURL = "https://translate.google.com/translate_tts"
	captureRate     = 16000
)

var ErrNoCaptureTool = errors.New("no audio capture tool found (need arecord or sox)")

// GoogleConfig configures the hosted speech wrappers.
type GoogleConfig struct {
	APIKey      string
	STTLanguage string
	TTSLanguage string
}

// GoogleProvider wraps the hosted Google speech services the way the rest
// of the repo wraps Gemini: one HTTP call per operation, with local CLI
// tools for microphone capture and playback.
type GoogleProvider struct {
	apiKey      string
	sttLanguage string
	ttsLanguage string
	http        *http.Client
	captureCmd  string
	playerCmd   string
}

func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing speech API key")
	}
	if cfg.STTLanguage == "" {
		cfg.STTLanguage = "vi-VN"
	}
	if cfg.TTSLanguage == "" {
		cfg.TTSLanguage = "vi"
	}

	p := &GoogleProvider{
		apiKey:      cfg.APIKey,
		sttLanguage: cfg.STTLanguage,
		ttsLanguage: cfg.TTSLanguage,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, candidate := range []string{"arecord", "sox"} {
		if path, err := exec.LookPath(candidate); err == nil && path != "" {
			p.captureCmd = candidate
			break
		}
	}
	for _, candidate := range []string{"mpg123", "ffplay"} {
		if path, err := exec.LookPath(candidate); err == nil && path != "" {
			p.playerCmd = candidate
			break
		}
	}
	if p.captureCmd == "" {
		return nil, ErrNoCaptureTool
	}
	return p, nil
}

// Recognize captures up to MaxUtterance of audio and sends it for
// transcription. The empty string means nothing was understood.
func (p *GoogleProvider) Recognize(ctx context.Context) (string, error) {
	audio, err := p.capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture audio: %w", err)
	}
	if len(audio) == 0 || !speechStarted(audio) {
		return "", nil
	}

	q := url.Values{}
	q.Set("client", "chromium")
	q.Set("lang", p.sttLanguage)
	q.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speechAPIURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d", captureRate))

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call speech API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech API status %d", resp.StatusCode)
	}

	return parseTranscript(resp.Body)
}

// capture shells out to the first available recorder, bounded by the
// utterance limit.
func (p *GoogleProvider) capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, MaxUtterance+time.Second)
	defer cancel()

	var cmd *exec.Cmd
	switch p.captureCmd {
	case "sox":
		cmd = exec.CommandContext(ctx, "sox", "-d", "-t", "raw", "-r", fmt.Sprint(captureRate),
			"-e", "signed", "-b", "16", "-c", "1", "-", "trim", "0", fmt.Sprint(MaxUtterance.Seconds()))
	default:
		cmd = exec.CommandContext(ctx, "arecord", "-q", "-f", "S16_LE", "-r", fmt.Sprint(captureRate),
			"-c", "1", "-t", "raw", "-d", fmt.Sprint(int(MaxUtterance.Seconds())))
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// speechStarted reports whether any sample within the wait-for-speech
// window of raw l16 mono audio rises above the silence floor. A window of
// pure silence means the speaker never started talking, so the cycle gives
// up without calling the API.
func speechStarted(audio []byte) bool {
	const silenceFloor = 500
	window := captureRate * int(WaitForSpeech/time.Second)
	if n := len(audio) / 2; n < window {
		window = n
	}
	for i := 0; i < window; i++ {
		sample := int16(binary.LittleEndian.Uint16(audio[2*i:]))
		if sample > silenceFloor || sample < -silenceFloor {
			return true
		}
	}
	return false
}

// parseTranscript reads the line-delimited JSON reply of the speech API and
// returns the first transcript, if any.
func parseTranscript(r io.Reader) (string, error) {
	dec := json.NewDecoder(r)
	for {
		var chunk struct {
			Result []struct {
				Alternative []struct {
					Transcript string `json:"transcript"`
				} `json:"alternative"`
			} `json:"result"`
		}
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return "", nil
			}
			return "", fmt.Errorf("decode transcript: %w", err)
		}
		for _, res := range chunk.Result {
			if len(res.Alternative) > 0 && res.Alternative[0].Transcript != "" {
				return res.Alternative[0].Transcript, nil
			}
		}
	}
}

// Speak fetches synthesized speech for the text and plays it through the
// local player tool. Long replies are truncated to the endpoint's limit.
func (p *GoogleProvider) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if p.playerCmd == "" {
		return errors.New("no audio player tool found (need mpg123 or ffplay)")
	}
	if runes := []rune(text); len(runes) > 200 {
		text = string(runes[:200])
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", p.ttsLanguage)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, translateTTSURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch speech audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech synthesis status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "retailbot-tts-*.mp3")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch p.playerCmd {
	case "ffplay":
		cmd = exec.CommandContext(ctx, "ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", tmp.Name())
	default:
		cmd = exec.CommandContext(ctx, "mpg123", "-q", tmp.Name())
	}
	return cmd.Run()
}
