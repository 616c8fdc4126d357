package geminitts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"tarsvoice/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	endpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-tts:generateContent"
	model    = "gemini-2.5-flash-preview-tts"

	// Gemini returns raw 16-bit mono PCM at this rate
	sampleRate = 24000
)

// Client synthesizes speech via the Gemini TTS REST API and wraps the
// returned PCM into a playable WAV.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	return &Client{
		cfg: do.MustInvoke[*config.Config](di),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (c *Client) Enabled() bool {
	return c.cfg.Gemini.Token != ""
}

type textPart struct {
	Text string `json:"text"`
}

type content struct {
	Parts []textPart `json:"parts"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	Model            string           `json:"model"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData struct {
					Data string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Synthesize returns WAV audio for the given text.
func (c *Client) Synthesize(ctx context.Context, text, voiceName string) ([]byte, error) {
	if !c.Enabled() {
		return nil, oops.Errorf("gemini token is not configured")
	}

	payload := generateRequest{
		Contents: []content{{Parts: []textPart{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: voiceName},
				},
			},
		},
		Model: model,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, oops.Errorf("failed to marshal tts request: %w", err)
	}

	requestURL := endpoint + "?key=" + url.QueryEscape(c.cfg.Gemini.Token)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, oops.Errorf("failed to build tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, oops.Errorf("tts request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, oops.Errorf("tts request returned %d: %s", response.StatusCode, string(data))
	}

	var parsed generateResponse
	if err = json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, oops.Errorf("failed to decode tts response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, oops.Errorf("no audio data in tts response")
	}

	pcm, err := base64.StdEncoding.DecodeString(parsed.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, oops.Errorf("failed to decode tts audio: %w", err)
	}

	return pcm16ToWav(pcm, sampleRate, 1), nil
}

func pcm16ToWav(pcm []byte, sampleRate, channels int) []byte {
	const bytesPerSample = 2

	blockAlign := channels * bytesPerSample
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes()
}
