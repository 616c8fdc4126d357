package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestTTSCachePutGet(t *testing.T) {
	var cache ttsCache

	if _, ok := cache.get("Alnilam::hello"); ok {
		t.Fatal("empty cache reported a hit")
	}

	cache.put("Alnilam::hello", []byte("wav-1"))

	wav, ok := cache.get("Alnilam::hello")
	if !ok || string(wav) != "wav-1" {
		t.Errorf("get = (%q, %v), want (wav-1, true)", wav, ok)
	}

	// overwriting a key must not grow the eviction order
	cache.put("Alnilam::hello", []byte("wav-2"))
	if len(cache.order) != 1 {
		t.Errorf("order length = %d after overwrite, want 1", len(cache.order))
	}
	if wav, _ := cache.get("Alnilam::hello"); string(wav) != "wav-2" {
		t.Errorf("overwrite did not replace the entry")
	}
}

func TestTTSCacheEvictsOldestFirst(t *testing.T) {
	var cache ttsCache

	for i := 0; i < maxCacheEntries+3; i++ {
		cache.put(fmt.Sprintf("voice::line-%d", i), []byte("wav"))
	}

	if len(cache.data) != maxCacheEntries {
		t.Errorf("cache holds %d entries, want %d", len(cache.data), maxCacheEntries)
	}

	for i := 0; i < 3; i++ {
		if _, ok := cache.get(fmt.Sprintf("voice::line-%d", i)); ok {
			t.Errorf("oldest entry line-%d survived eviction", i)
		}
	}

	if _, ok := cache.get(fmt.Sprintf("voice::line-%d", maxCacheEntries+2)); !ok {
		t.Errorf("newest entry was evicted")
	}
}

func TestTTSUnavailableWithoutToken(t *testing.T) {
	srv := mockUpstream(t, http.StatusOK, "unused")
	s := newTestService(t, srv.URL)

	resp := postJSON(t, s, "/api/tts", `{"text":"hello"}`)
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
