package dialogue

import (
	"strings"
	"unicode"
)

// Echo detection: a recognized utterance that is actually the tail of our
// own synthesized speech picked up by the microphone. Two layers are used,
// the time window in the controller and the content comparison here.

const echoOverlapThreshold = 0.8

// minOverlapTokens exempts very short utterances from the overlap check,
// they are too short to compare reliably. Exact matches still count.
const minOverlapTokens = 3

func normalizeUtterance(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenOverlap returns the fraction of utterance tokens that also occur in
// the reply.
func tokenOverlap(utterance, reply []string) float64 {
	if len(utterance) == 0 {
		return 0
	}

	replySet := make(map[string]struct{}, len(reply))
	for _, tok := range reply {
		replySet[tok] = struct{}{}
	}

	matched := 0
	for _, tok := range utterance {
		if _, ok := replySet[tok]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(utterance))
}

// isEcho reports whether text is a probable microphone pickup of the most
// recent assistant reply.
func isEcho(text, lastReply string) bool {
	normText := normalizeUtterance(text)
	normReply := normalizeUtterance(lastReply)

	if normReply == "" || normText == "" {
		return false
	}

	if normText == normReply {
		return true
	}

	tokens := strings.Fields(normText)
	if len(tokens) < minOverlapTokens {
		return false
	}

	return tokenOverlap(tokens, strings.Fields(normReply)) >= echoOverlapThreshold
}
