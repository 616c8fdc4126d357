package bridge

import (
	"log/slog"
	"sync"

	"tarsvoice/app/service/dialogue"
	"tarsvoice/app/service/voice"

	"github.com/gofiber/contrib/websocket"
	"github.com/samber/oops"
)

// Bridge relays one browser tab's speech events over a WebSocket. The
// browser owns the actual recognition and synthesis engines; this side
// implements the SpeechInput/SpeechOutput capability contracts and the
// voice catalog on top of the relayed events.

// client → server message types
const (
	inHello         = "hello"
	inInit          = "init"
	inToggle        = "toggle"
	inVoices        = "voices"
	inRecognized    = "recognized"
	inListenStarted = "listen_started"
	inListenError   = "listen_error"
	inListenEnded   = "listen_ended"
	inSpoken        = "spoken"
	inSpeakError    = "speak_error"
)

// server → client message types
const (
	outListen     = "listen"
	outStopListen = "stop_listening"
	outSpeak      = "speak"
	outCancel     = "cancel"
	outStage      = "stage"
	outTranscript = "transcript"
	outHumor      = "humor"
)

type Hello struct {
	Tab      string `json:"tab"`
	UserName string `json:"userName"`
}

type clientMessage struct {
	Type     string        `json:"type"`
	Tab      string        `json:"tab,omitempty"`
	UserName string        `json:"userName,omitempty"`
	Text     string        `json:"text,omitempty"`
	Error    string        `json:"error,omitempty"`
	Voices   []voice.Voice `json:"voices,omitempty"`
}

type serverMessage struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Voice   string   `json:"voice,omitempty"`
	Lang    string   `json:"lang,omitempty"`
	Rate    float64  `json:"rate,omitempty"`
	Pitch   float64  `json:"pitch,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
	Stage   int      `json:"stage,omitempty"`
	Role    string   `json:"role,omitempty"`
	Content string   `json:"content,omitempty"`
	Value   int      `json:"value,omitempty"`
}

type Bridge struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	inputEvents  chan dialogue.InputEvent
	outputEvents chan dialogue.OutputEvent

	voicesMu sync.RWMutex
	voices   []voice.Voice
	changed  chan struct{}
}

var _ voice.Catalog = (*Bridge)(nil)

func New(conn *websocket.Conn) *Bridge {
	return &Bridge{
		conn:         conn,
		inputEvents:  make(chan dialogue.InputEvent, 16),
		outputEvents: make(chan dialogue.OutputEvent, 4),
		changed:      make(chan struct{}, 1),
	}
}

// AwaitHello reads the mandatory first message identifying the tab.
func (b *Bridge) AwaitHello() (*Hello, error) {
	var msg clientMessage
	if err := b.conn.ReadJSON(&msg); err != nil {
		return nil, oops.Errorf("failed to read hello: %w", err)
	}

	if msg.Type != inHello {
		return nil, oops.Errorf("expected hello, got %q", msg.Type)
	}

	return &Hello{Tab: msg.Tab, UserName: msg.UserName}, nil
}

// ReadLoop consumes messages until the connection drops, feeding the
// channel adapters and the controller's command hooks.
func (b *Bridge) ReadLoop(ctrl *dialogue.Controller) error {
	for {
		var msg clientMessage
		if err := b.conn.ReadJSON(&msg); err != nil {
			return oops.Errorf("voice bridge closed: %w", err)
		}

		switch msg.Type {
		case inInit:
			ctrl.RequestInit()

		case inToggle:
			ctrl.RequestToggle()

		case inVoices:
			b.setVoices(msg.Voices)

		case inRecognized:
			b.pushInput(dialogue.InputEvent{Kind: dialogue.InputResult, Transcript: msg.Text})

		case inListenStarted:
			b.pushInput(dialogue.InputEvent{Kind: dialogue.InputStarted})

		case inListenError:
			b.pushInput(dialogue.InputEvent{
				Kind: dialogue.InputError,
				Err:  oops.Errorf("recognition error: %s", msg.Error),
			})

		case inListenEnded:
			b.pushInput(dialogue.InputEvent{Kind: dialogue.InputEnded})

		case inSpoken:
			b.pushOutput(dialogue.OutputEvent{Kind: dialogue.OutputEnded})

		case inSpeakError:
			b.pushOutput(dialogue.OutputEvent{
				Kind: dialogue.OutputError,
				Err:  oops.Errorf("synthesis error: %s", msg.Error),
			})

		default:
			slog.Debug("Unknown bridge message", "type", msg.Type)
		}
	}
}

// Input returns the SpeechInput view of this connection.
func (b *Bridge) Input() dialogue.SpeechInput {
	return inputChannel{b}
}

// Output returns the SpeechOutput view of this connection.
func (b *Bridge) Output() dialogue.SpeechOutput {
	return outputChannel{b}
}

type inputChannel struct {
	b *Bridge
}

// Start arms browser-side recognition.
func (c inputChannel) Start() error {
	return c.b.send(serverMessage{Type: outListen})
}

// Stop disarms browser-side recognition.
func (c inputChannel) Stop() {
	if err := c.b.send(serverMessage{Type: outStopListen}); err != nil {
		slog.Debug("Failed to send stop_listening", "error", err)
	}
}

func (c inputChannel) Events() <-chan dialogue.InputEvent {
	return c.b.inputEvents
}

type outputChannel struct {
	b *Bridge
}

// Speak forwards an utterance to browser-side synthesis.
func (c outputChannel) Speak(u dialogue.Utterance) error {
	volume := u.Volume

	return c.b.send(serverMessage{
		Type:   outSpeak,
		Text:   u.Text,
		Voice:  u.Voice,
		Lang:   u.Lang,
		Rate:   u.Rate,
		Pitch:  u.Pitch,
		Volume: &volume,
	})
}

// Cancel aborts any pending or playing synthesis immediately.
func (c outputChannel) Cancel() {
	if err := c.b.send(serverMessage{Type: outCancel}); err != nil {
		slog.Debug("Failed to send cancel", "error", err)
	}
}

func (c outputChannel) Events() <-chan dialogue.OutputEvent {
	return c.b.outputEvents
}

func (b *Bridge) Voices() []voice.Voice {
	b.voicesMu.RLock()
	defer b.voicesMu.RUnlock()

	return append([]voice.Voice(nil), b.voices...)
}

func (b *Bridge) Changed() <-chan struct{} {
	return b.changed
}

// PushStage signals a scene-stage transition to the renderer.
func (b *Bridge) PushStage(stage int) {
	if err := b.send(serverMessage{Type: outStage, Stage: stage}); err != nil {
		slog.Debug("Failed to push stage", "error", err)
	}
}

// PushEntry streams a transcript line for the subtitle HUD.
func (b *Bridge) PushEntry(entry dialogue.Entry) {
	msg := serverMessage{
		Type:    outTranscript,
		Role:    string(entry.Role),
		Content: entry.Content,
	}
	if err := b.send(msg); err != nil {
		slog.Debug("Failed to push transcript entry", "error", err)
	}
}

// PushHumor mirrors the current humor setting to the HUD.
func (b *Bridge) PushHumor(value int) {
	if err := b.send(serverMessage{Type: outHumor, Value: value}); err != nil {
		slog.Debug("Failed to push humor", "error", err)
	}
}

func (b *Bridge) setVoices(voices []voice.Voice) {
	b.voicesMu.Lock()
	b.voices = append([]voice.Voice(nil), voices...)
	b.voicesMu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}
}

func (b *Bridge) pushInput(ev dialogue.InputEvent) {
	select {
	case b.inputEvents <- ev:
	default:
		slog.Warn("Input event buffer is full, dropping event", "kind", ev.Kind)
	}
}

func (b *Bridge) pushOutput(ev dialogue.OutputEvent) {
	select {
	case b.outputEvents <- ev:
	default:
		slog.Warn("Output event buffer is full, dropping event", "kind", ev.Kind)
	}
}

func (b *Bridge) send(msg serverMessage) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.conn.WriteJSON(msg); err != nil {
		return oops.Errorf("bridge write failed: %w", err)
	}

	return nil
}
