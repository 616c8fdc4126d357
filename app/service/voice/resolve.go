package voice

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"tarsvoice/app/config"

	"github.com/elliotchance/pie/v2"
)

// catalogWait caps the one-time wait for an asynchronously populating
// catalog. After it elapses resolution proceeds with whatever is there.
const catalogWait = 2500 * time.Millisecond

// Resolver picks one synthesis voice deterministically and caches it for
// the tab session. Re-selection happens only while the catalog was empty
// at the previous attempt.
type Resolver struct {
	cfg      config.Voice
	catalog  Catalog
	names    *regexp.Regexp
	excluded *regexp.Regexp

	mu     sync.Mutex
	chosen *Voice
	waited bool
}

func NewResolver(cfg config.Voice, catalog Catalog) *Resolver {
	quoted := make([]string, 0, len(cfg.PreferredNames))
	for _, name := range cfg.PreferredNames {
		quoted = append(quoted, regexp.QuoteMeta(name))
	}

	return &Resolver{
		cfg:      cfg,
		catalog:  catalog,
		names:    regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`),
		excluded: regexp.MustCompile(`(?i)(` + cfg.ExcludedPattern + `)`),
	}
}

// Resolve returns the cached selection, or attempts one. A false result
// means the catalog is still empty and the platform default applies.
func (r *Resolver) Resolve(ctx context.Context) (Voice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.chosen != nil {
		return *r.chosen, true
	}

	voices := r.catalog.Voices()

	if len(voices) == 0 && !r.waited {
		r.waited = true

		r.mu.Unlock()
		select {
		case <-r.catalog.Changed():
		case <-time.After(catalogWait):
		case <-ctx.Done():
		}
		r.mu.Lock()

		if r.chosen != nil {
			return *r.chosen, true
		}

		voices = r.catalog.Voices()
	}

	if len(voices) == 0 {
		slog.Debug("Voice catalog still empty, using platform default")
		return Voice{}, false
	}

	pick := r.choose(voices)
	r.chosen = &pick

	slog.Info("Resolved synthesis voice", "name", pick.Name, "lang", pick.Lang)

	return pick, true
}

func (r *Resolver) isExcluded(v Voice) bool {
	return r.excluded.MatchString(v.Lang + " " + v.Name)
}

// choose applies the preference ranking. Voices in the excluded language
// family are dropped up front; they only come back when nothing else
// exists at all.
func (r *Resolver) choose(voices []Voice) Voice {
	candidates := pie.Filter(voices, func(v Voice) bool {
		return !r.isExcluded(v)
	})
	if len(candidates) == 0 {
		candidates = voices
	}

	regionRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(r.cfg.Region))
	labelRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(r.cfg.RegionLabel))
	langRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(r.cfg.Language) + `-`)

	tiers := []func(Voice) bool{
		// region tag plus a curated region-appropriate name
		func(v Voice) bool { return regionRe.MatchString(v.Lang) && r.names.MatchString(v.Name) },
		// region display label anywhere in the name
		func(v Voice) bool { return labelRe.MatchString(v.Name) },
		// target language prefix, excluded family never passes here
		func(v Voice) bool { return langRe.MatchString(v.Lang) && !r.isExcluded(v) },
		// any voice in the target region
		func(v Voice) bool { return regionRe.MatchString(v.Lang) },
		// any voice in the target language
		func(v Voice) bool { return langRe.MatchString(v.Lang) },
	}

	for _, match := range tiers {
		if idx := pie.FindFirstUsing(candidates, match); idx >= 0 {
			return candidates[idx]
		}
	}

	// last resort: first catalog entry, unconditionally
	return candidates[0]
}
