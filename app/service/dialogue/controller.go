package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tarsvoice/app/service/command"
	"tarsvoice/app/service/voice"
)

// Tuning constants. The browser speech stack is flaky: recognition dies
// spontaneously, synthesis end events race with recognition restarts, and
// the microphone happily picks up our own playback. The cool-down and the
// restart backoff absorb that.
const (
	cooldownWindow  = 700 * time.Millisecond
	restartBackoff  = 350 * time.Millisecond
	toggleDebounce  = 300 * time.Millisecond
	backendTimeout  = 15 * time.Second
	maxRestartBurst = 6

	fallbackLine = "Link unstable. Say again, Captain."

	speakRate  = 0.98
	speakPitch = 0.82

	// zero-volume priming utterance, binds the resolved voice on first use
	primeText = " "
)

type Params struct {
	UserName string
	Humor    int
	Honesty  int
	// Entries, SessionID and Seeded restore a persisted tab session
	Entries   []Entry
	SessionID string
	Seeded    bool
}

type exchangeOutcome struct {
	result *ExchangeResult
	err    error
}

// Controller owns one tab's dialogue turn cycle: Listening captures an
// utterance, AwaitingReply holds exactly one backend request, Speaking
// plays the reply back, then listening resumes behind a cool-down window.
// All reactions run on the single Run loop; utterances arriving while
// suppressed are dropped, never buffered.
type Controller struct {
	input    SpeechInput
	output   SpeechOutput
	backend  Backend
	store    TranscriptStore
	resolver *voice.Resolver

	stageFn   func(stage int)
	publishFn func(entry Entry)
	humorFn   func(value int)

	userName string
	honesty  int

	mu        sync.RWMutex
	state     TurnState
	humor     int
	entries   []Entry
	sessionID string
	seeded    bool

	lastHeard       string
	lastReply       string
	ignoreUntil     time.Time
	lastToggle      time.Time
	restartFailures int

	chosenVoice voice.Voice
	voiceReady  bool

	// single-slot in-flight request token; a second dispatch while the
	// slot is occupied is rejected at the boundary
	inflight  chan struct{}
	replies   chan exchangeOutcome
	wake      chan struct{}
	initReq   chan struct{}
	toggleReq chan struct{}

	nowFn   func() time.Time
	afterFn func(d time.Duration, fn func())
}

func NewController(
	input SpeechInput,
	output SpeechOutput,
	backend Backend,
	store TranscriptStore,
	resolver *voice.Resolver,
	params Params,
) *Controller {
	return &Controller{
		input:     input,
		output:    output,
		backend:   backend,
		store:     store,
		resolver:  resolver,
		userName:  params.UserName,
		honesty:   params.Honesty,
		state:     StateIdle,
		humor:     clampHumor(params.Humor),
		entries:   append([]Entry(nil), params.Entries...),
		sessionID: params.SessionID,
		seeded:    params.Seeded,
		inflight:  make(chan struct{}, 1),
		replies:   make(chan exchangeOutcome, 1),
		wake:      make(chan struct{}, 1),
		initReq:   make(chan struct{}, 1),
		toggleReq: make(chan struct{}, 4),
		nowFn:     time.Now,
		afterFn: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// OnStage registers the scene-stage transition callback.
func (c *Controller) OnStage(fn func(stage int)) {
	c.stageFn = fn
}

// OnEntry registers a callback fired for every appended transcript entry.
func (c *Controller) OnEntry(fn func(entry Entry)) {
	c.publishFn = fn
}

// OnHumor registers a callback fired when the humor setting changes.
func (c *Controller) OnHumor(fn func(value int)) {
	c.humorFn = fn
}

// RequestInit asks the loop to perform the one-time initialization: voice
// resolution, priming and either the seeded greeting turn or a spoken
// systems-online confirmation.
func (c *Controller) RequestInit() {
	select {
	case c.initReq <- struct{}{}:
	default:
	}
}

// RequestToggle asks the loop to flip manual listening on or off.
func (c *Controller) RequestToggle() {
	select {
	case c.toggleReq <- struct{}{}:
	default:
	}
}

// Run drives the controller until ctx is cancelled. Every state mutation
// happens on this goroutine; channel adapters and the backend goroutine
// only feed events in.
func (c *Controller) Run(ctx context.Context) error {
	defer c.teardown()

	inEvents := c.input.Events()
	outEvents := c.output.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.initReq:
			c.handleInit(ctx)

		case <-c.toggleReq:
			c.handleToggle()

		case ev, ok := <-inEvents:
			if !ok {
				inEvents = nil
				continue
			}
			c.handleInputEvent(ctx, ev)

		case ev, ok := <-outEvents:
			if !ok {
				outEvents = nil
				continue
			}
			c.handleOutputEvent(ev)

		case out := <-c.replies:
			c.handleOutcome(out)

		case <-c.wake:
			c.handleRestart()
		}
	}
}

func (c *Controller) handleInit(ctx context.Context) {
	if c.State() != StateIdle {
		slog.Debug("Ignoring init outside idle", "state", c.State().String())
		return
	}

	c.ensureVoice(ctx)

	if !c.isSeeded() && len(c.Transcript()) == 0 {
		seed := fmt.Sprintf("My call sign is %s. Begin mission support.", c.callSign())
		c.appendEntry(SpeakerUser, seed)
		c.markSeeded()
		c.dispatch(ctx, c.historyCopy(), c.Humor())
		return
	}

	c.speakText(ctx, fmt.Sprintf("Systems online, Captain %s.", c.callSign()))
}

func (c *Controller) handleInputEvent(ctx context.Context, ev InputEvent) {
	switch ev.Kind {
	case InputResult:
		c.handleUtterance(ctx, ev.Transcript)
	case InputError, InputEnded:
		c.handleInputDown(ev)
	case InputStarted:
		slog.Debug("Speech input armed")
	}
}

func (c *Controller) handleUtterance(ctx context.Context, raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	if c.State() != StateListening {
		slog.Debug("Dropping utterance outside listening", "state", c.State().String())
		return
	}

	if c.nowFn().Before(c.ignoreUntil) {
		slog.Debug("Dropping utterance inside cool-down window", "text", text)
		return
	}

	if text == c.lastHeard {
		slog.Debug("Dropping repeated utterance", "text", text)
		return
	}

	if isEcho(text, c.lastReply) {
		slog.Debug("Dropping echo of own reply", "text", text)
		return
	}

	c.lastHeard = text
	c.restartFailures = 0

	c.input.Stop()
	c.appendEntry(SpeakerUser, text)

	res := command.Interpret(text)

	if res.SceneStage != 0 && c.stageFn != nil {
		c.stageFn(res.SceneStage)
	}

	switch res.Kind {
	case command.ToneSet:
		c.applyTone(ctx, clampHumor(res.Value))
	case command.ToneAdjust:
		c.applyTone(ctx, clampHumor(c.Humor()+res.Value))
	default:
		c.dispatch(ctx, c.historyCopy(), c.Humor())
	}
}

// applyTone updates the humor setting and dispatches a tone-acknowledgment
// turn. The synthetic instruction travels in the request only; the visible
// transcript keeps just the voice command and the reply.
func (c *Controller) applyTone(ctx context.Context, target int) {
	c.mu.Lock()
	c.humor = target
	c.mu.Unlock()

	slog.Info("Humor setting changed", "humor", target)

	if c.humorFn != nil {
		c.humorFn(target)
	}

	adj := fmt.Sprintf(
		"Adjust humor to %d%%. Acknowledge briefly with my callsign; continue the mission in ≤ 20 words.",
		target,
	)

	history := append(c.historyCopy(), Entry{Role: SpeakerUser, Content: adj})
	c.dispatch(ctx, history, target)
}

func (c *Controller) dispatch(ctx context.Context, messages []Entry, humor int) {
	select {
	case c.inflight <- struct{}{}:
	default:
		slog.Warn("Backend request already in flight, rejecting turn")
		return
	}

	c.setState(StateAwaitingReply)

	req := ExchangeRequest{
		Messages:  messages,
		Humor:     humor,
		Honesty:   c.honesty,
		SessionID: c.SessionID(),
		UserName:  c.userName,
	}

	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, backendTimeout)
		defer cancel()

		result, err := c.backend.Exchange(reqCtx, req)

		select {
		case c.replies <- exchangeOutcome{result: result, err: err}:
		case <-ctx.Done():
			// torn down while in flight, discard the result
		}
	}()
}

func (c *Controller) handleOutcome(out exchangeOutcome) {
	select {
	case <-c.inflight:
	default:
	}

	if c.State() != StateAwaitingReply {
		slog.Debug("Discarding backend reply outside awaiting state")
		return
	}

	reply := fallbackLine
	if out.err != nil {
		slog.Warn("Backend exchange failed, answering with fallback line", "error", out.err)
	} else {
		reply = strings.TrimSpace(out.result.Reply)

		if c.SessionID() == "" && out.result.SessionID != "" {
			c.adoptSession(out.result.SessionID)
		}
	}

	c.appendEntry(SpeakerAssistant, reply)
	c.lastReply = reply

	c.speakText(context.Background(), reply)
}

func (c *Controller) speakText(ctx context.Context, text string) {
	c.ensureVoice(ctx)

	c.setState(StateSpeaking)

	utt := Utterance{
		Text:   text,
		Lang:   "en-US",
		Rate:   speakRate,
		Pitch:  speakPitch,
		Volume: 1,
	}
	if c.voiceReady {
		utt.Voice = c.chosenVoice.Name
		if c.chosenVoice.Lang != "" {
			utt.Lang = c.chosenVoice.Lang
		}
	}

	if err := c.output.Speak(utt); err != nil {
		slog.Warn("Speech output failed, treating as completed", "error", err)
		c.finishSpeaking()
	}
}

func (c *Controller) handleOutputEvent(ev OutputEvent) {
	if c.State() != StateSpeaking {
		// priming completions and late events land here
		return
	}

	if ev.Kind == OutputError && ev.Err != nil {
		slog.Warn("Speech output reported an error", "error", ev.Err)
	}

	c.finishSpeaking()
}

func (c *Controller) finishSpeaking() {
	c.ignoreUntil = c.nowFn().Add(cooldownWindow)
	c.setState(StateListening)
	c.startInput()
}

func (c *Controller) startInput() {
	if err := c.input.Start(); err != nil {
		c.restartFailures++
		if c.restartFailures > maxRestartBurst {
			slog.Warn("Speech input keeps failing, waiting for manual toggle",
				"failures", c.restartFailures,
				"error", err)
			return
		}

		slog.Warn("Failed to arm speech input", "error", err)
		c.scheduleRestart()
	}
}

// handleInputDown reacts to spontaneous recognition termination. Plain end
// events restart freely (non-continuous recognition ends after every
// silence); error events count toward a burst cap, after which the channel
// stays down until the manual toggle re-arms it.
func (c *Controller) handleInputDown(ev InputEvent) {
	if c.State() != StateListening {
		return
	}

	if ev.Kind == InputError {
		c.restartFailures++
		if c.restartFailures > maxRestartBurst {
			slog.Warn("Speech input keeps failing, waiting for manual toggle",
				"failures", c.restartFailures,
				"error", ev.Err)
			return
		}
	}

	c.scheduleRestart()
}

func (c *Controller) scheduleRestart() {
	c.afterFn(restartBackoff, func() {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	})
}

func (c *Controller) handleRestart() {
	if c.State() != StateListening {
		return
	}

	c.startInput()
}

func (c *Controller) handleToggle() {
	now := c.nowFn()
	if now.Sub(c.lastToggle) < toggleDebounce {
		slog.Debug("Toggle debounced")
		return
	}
	c.lastToggle = now

	switch c.State() {
	case StateSpeaking, StateAwaitingReply:
		// no manual interference while a turn is completing
	case StateListening:
		c.input.Stop()
		c.setState(StateIdle)
	case StateIdle:
		c.restartFailures = 0
		c.setState(StateListening)
		c.startInput()
	}
}

func (c *Controller) ensureVoice(ctx context.Context) {
	if c.voiceReady || c.resolver == nil {
		return
	}

	v, ok := c.resolver.Resolve(ctx)
	if !ok {
		// catalog still empty, platform default applies for now
		return
	}

	c.chosenVoice = v
	c.voiceReady = true

	prime := Utterance{
		Text:   primeText,
		Voice:  v.Name,
		Lang:   v.Lang,
		Rate:   1,
		Pitch:  1,
		Volume: 0,
	}
	if err := c.output.Speak(prime); err != nil {
		slog.Debug("Voice priming failed", "error", err)
	}
}

func (c *Controller) teardown() {
	c.input.Stop()
	c.output.Cancel()
	c.setState(StateIdle)
}

func (c *Controller) setState(to TurnState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == to {
		return
	}

	if !canTransition(c.state, to) {
		slog.Error("Refusing illegal turn state transition",
			"from", c.state.String(),
			"to", to.String())
		return
	}

	slog.Debug("Turn state transition", "from", c.state.String(), "to", to.String())
	c.state = to
}

func (c *Controller) appendEntry(role Speaker, content string) {
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Role: role, Content: content})
	entries := append([]Entry(nil), c.entries...)
	sid := c.sessionID
	seeded := c.seeded
	c.mu.Unlock()

	if c.store != nil {
		c.store.Persist(entries, sid, seeded)
	}

	if c.publishFn != nil {
		c.publishFn(Entry{Role: role, Content: content})
	}
}

func (c *Controller) adoptSession(sid string) {
	c.mu.Lock()
	c.sessionID = sid
	entries := append([]Entry(nil), c.entries...)
	seeded := c.seeded
	c.mu.Unlock()

	slog.Info("Adopted backend session", "sessionId", sid)

	if c.store != nil {
		c.store.Persist(entries, sid, seeded)
	}
}

func (c *Controller) markSeeded() {
	c.mu.Lock()
	c.seeded = true
	entries := append([]Entry(nil), c.entries...)
	sid := c.sessionID
	c.mu.Unlock()

	if c.store != nil {
		c.store.Persist(entries, sid, true)
	}
}

func (c *Controller) historyCopy() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Entry(nil), c.entries...)
}

func (c *Controller) callSign() string {
	name := strings.TrimSpace(c.userName)
	if name == "" {
		return "Pilot"
	}

	return name
}

func (c *Controller) State() TurnState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Controller) Humor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.humor
}

func (c *Controller) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sessionID
}

// Transcript returns a copy of the visible conversation entries.
func (c *Controller) Transcript() []Entry {
	return c.historyCopy()
}

func (c *Controller) isSeeded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.seeded
}

func clampHumor(v int) int {
	return min(max(v, 0), 100)
}
