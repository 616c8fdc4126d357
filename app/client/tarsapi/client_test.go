package tarsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tarsvoice/app/service/dialogue"
)

func newTestClient(url string) *Client {
	return &Client{
		baseURL:    url,
		httpClient: http.DefaultClient,
	}
}

func TestExchangeSendsNullSessionIDBeforeHandleExists(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"reply":     map[string]any{"content": "Copy that."},
			"sessionId": "sess-new",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	result, err := c.Exchange(context.Background(), dialogue.ExchangeRequest{
		Messages: []dialogue.Entry{{Role: dialogue.SpeakerUser, Content: "hello"}},
		Humor:    50,
		Honesty:  100,
		UserName: "Nova",
	})
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	if sid, present := captured["sessionId"]; !present || sid != nil {
		t.Errorf("sessionId in request = %v, want explicit null", sid)
	}
	if captured["userName"] != "Nova" {
		t.Errorf("userName = %v, want Nova", captured["userName"])
	}

	if result.Reply != "Copy that." {
		t.Errorf("reply = %q, want Copy that.", result.Reply)
	}
	if result.SessionID != "sess-new" {
		t.Errorf("sessionID = %q, want sess-new", result.SessionID)
	}
}

func TestExchangePassesExistingSessionID(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reply":     map[string]any{"content": "Still here."},
			"sessionId": "sess-existing",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Exchange(context.Background(), dialogue.ExchangeRequest{
		Messages:  []dialogue.Entry{{Role: dialogue.SpeakerUser, Content: "hello again"}},
		SessionID: "sess-existing",
	})
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	if captured["sessionId"] != "sess-existing" {
		t.Errorf("sessionId in request = %v, want sess-existing", captured["sessionId"])
	}
}

func TestExchangeNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Exchange(context.Background(), dialogue.ExchangeRequest{
		Messages: []dialogue.Entry{{Role: dialogue.SpeakerUser, Content: "hello"}},
	})
	if err == nil {
		t.Fatal("Exchange succeeded on a 502 response")
	}
}

func TestExchangeUnreachableBackendIsError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	_, err := c.Exchange(context.Background(), dialogue.ExchangeRequest{
		Messages: []dialogue.Entry{{Role: dialogue.SpeakerUser, Content: "hello"}},
	})
	if err == nil {
		t.Fatal("Exchange succeeded against an unreachable backend")
	}
}
