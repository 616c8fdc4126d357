package command

import (
	"regexp"
	"strconv"
)

// Interpreter classifies a recognized utterance before it is dispatched as
// a plain mission query. Scene jumps are a side effect: the utterance
// still travels to the backend afterwards. Tone commands replace the
// dispatch with a tone-acknowledgment turn instead.

type Kind int

const (
	Passthrough Kind = iota
	ToneSet
	ToneAdjust
)

// Scene stages understood by the renderer.
const (
	StageWormhole  = 2
	StageBlackHole = 3
)

const toneStep = 20

type Result struct {
	// SceneStage is 0 when no scene jump was requested
	SceneStage int
	Kind       Kind
	// Value is the requested level for ToneSet (unclamped) or the signed
	// delta for ToneAdjust
	Value int
}

var (
	humorUpRe   = regexp.MustCompile(`(?i)\b(more (playful|fun|humor)|lighter|joke more|increase humor|be more playful)\b`)
	humorDownRe = regexp.MustCompile(`(?i)\b(more serious|less (playful|humor|jokes)|tone it down|decrease humor|be more serious)\b`)
	setHumorRe  = regexp.MustCompile(`(?i)\b(?:set\s*humor\s*to|humor)\s*(\d{1,3})\b`)

	wormholeTravelRe = regexp.MustCompile(`(?i)(go|enter|into|to|jump|through|travel).*(worm\s*hole|wormhole)`)
	wormholeRe       = regexp.MustCompile(`(?i)\b(worm\s*hole|wormhole)\b`)

	blackHoleTravelRe = regexp.MustCompile(`(?i)(go|enter|into|to|jump|through|dive).*black\s*hole`)
	blackHoleRe       = regexp.MustCompile(`(?i)\bblack\s*hole\b`)
)

func wantsWormhole(text string) bool {
	return wormholeTravelRe.MatchString(text) || wormholeRe.MatchString(text)
}

func wantsBlackHole(text string) bool {
	return blackHoleTravelRe.MatchString(text) || blackHoleRe.MatchString(text)
}

// Interpret classifies text. Scene-jump checks run first, then absolute
// tone-set, then relative tone-adjust; first tone match wins.
func Interpret(text string) Result {
	var result Result

	if wantsWormhole(text) {
		result.SceneStage = StageWormhole
	} else if wantsBlackHole(text) {
		result.SceneStage = StageBlackHole
	}

	if m := setHumorRe.FindStringSubmatch(text); m != nil {
		target, err := strconv.Atoi(m[1])
		if err == nil {
			result.Kind = ToneSet
			result.Value = target
			return result
		}
	}

	if humorUpRe.MatchString(text) {
		result.Kind = ToneAdjust
		result.Value = toneStep
		return result
	}

	if humorDownRe.MatchString(text) {
		result.Kind = ToneAdjust
		result.Value = -toneStep
		return result
	}

	result.Kind = Passthrough
	return result
}
