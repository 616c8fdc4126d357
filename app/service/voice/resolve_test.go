package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"tarsvoice/app/config"
)

type fakeCatalog struct {
	mu      sync.Mutex
	voices  []Voice
	changed chan struct{}
}

func newFakeCatalog(voices ...Voice) *fakeCatalog {
	return &fakeCatalog{
		voices:  voices,
		changed: make(chan struct{}, 1),
	}
}

func (c *fakeCatalog) Voices() []Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Voice(nil), c.voices...)
}

func (c *fakeCatalog) Changed() <-chan struct{} { return c.changed }

func (c *fakeCatalog) set(voices []Voice) {
	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()

	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func testVoiceCfg() config.Voice {
	var cfg config.Config
	cfg.ApplyDefaults()
	return cfg.Voice
}

func TestResolvePrefersCuratedRegionVoice(t *testing.T) {
	catalog := newFakeCatalog(
		Voice{Name: "Google US English", Lang: "en-US"},
		Voice{Name: "Daniel", Lang: "en-GB"},
		Voice{Name: "Hans", Lang: "de-DE"},
	)
	r := NewResolver(testVoiceCfg(), catalog)

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}
	if v.Name != "Daniel" {
		t.Errorf("resolved %q, want Daniel", v.Name)
	}
}

func TestResolveFallsBackToRegionLabel(t *testing.T) {
	catalog := newFakeCatalog(
		Voice{Name: "Google US English", Lang: "en-US"},
		Voice{Name: "UK English Woman", Lang: "en-GB"},
	)
	r := NewResolver(testVoiceCfg(), catalog)

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}
	if v.Name != "UK English Woman" {
		t.Errorf("resolved %q, want the region-labelled voice", v.Name)
	}
}

func TestResolveFallsBackToLanguagePrefix(t *testing.T) {
	catalog := newFakeCatalog(
		Voice{Name: "Hans", Lang: "de-DE"},
		Voice{Name: "Karen", Lang: "en-AU"},
	)
	r := NewResolver(testVoiceCfg(), catalog)

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}
	if v.Lang != "en-AU" {
		t.Errorf("resolved %+v, want the en-AU voice", v)
	}
}

func TestResolveNeverPicksExcludedFamilyOverAlternatives(t *testing.T) {
	catalog := newFakeCatalog(
		Voice{Name: "Amélie", Lang: "fr-FR"},
		Voice{Name: "Google US English", Lang: "en-US"},
	)
	r := NewResolver(testVoiceCfg(), catalog)

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}
	if v.Lang != "en-US" {
		t.Errorf("resolved %+v, excluded family must lose to any alternative", v)
	}
}

func TestResolveExcludedFamilyWhenNothingElseExists(t *testing.T) {
	catalog := newFakeCatalog(Voice{Name: "Amélie", Lang: "fr-FR"})
	r := NewResolver(testVoiceCfg(), catalog)

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}
	if v.Name != "Amélie" {
		t.Errorf("resolved %+v, want the only catalog entry", v)
	}
}

func TestResolveLastResortIsFirstEntry(t *testing.T) {
	catalog := newFakeCatalog(
		Voice{Name: "Hans", Lang: "de-DE"},
		Voice{Name: "Yuki", Lang: "ja-JP"},
	)
	r := NewResolver(testVoiceCfg(), catalog)

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}
	if v.Name != "Hans" {
		t.Errorf("resolved %+v, want the first catalog entry", v)
	}
}

func TestResolveEmptyCatalogReturnsPlatformDefault(t *testing.T) {
	catalog := newFakeCatalog()
	r := NewResolver(testVoiceCfg(), catalog)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, ok := r.Resolve(ctx); ok {
		t.Error("Resolve reported a voice from an empty catalog")
	}
}

func TestResolveWaitsForAsyncCatalog(t *testing.T) {
	catalog := newFakeCatalog()
	r := NewResolver(testVoiceCfg(), catalog)

	go func() {
		time.Sleep(20 * time.Millisecond)
		catalog.set([]Voice{{Name: "Daniel", Lang: "en-GB"}})
	}()

	v, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve did not pick up the late catalog")
	}
	if v.Name != "Daniel" {
		t.Errorf("resolved %q, want Daniel", v.Name)
	}
}

func TestResolveCachesSelection(t *testing.T) {
	catalog := newFakeCatalog(Voice{Name: "Daniel", Lang: "en-GB"})
	r := NewResolver(testVoiceCfg(), catalog)

	first, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice")
	}

	catalog.set([]Voice{{Name: "Google US English", Lang: "en-US"}})

	second, ok := r.Resolve(context.Background())
	if !ok {
		t.Fatal("Resolve returned no voice on the second attempt")
	}
	if second != first {
		t.Errorf("selection changed from %+v to %+v, want it cached", first, second)
	}
}
