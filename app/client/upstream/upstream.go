package upstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tarsvoice/app/config"
	"tarsvoice/app/service/dialogue"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const maxReplyTokens = 200

// Client talks to the OpenAI-compatible chat completion API that powers
// TARS replies.
type Client struct {
	cfg    *config.Config
	client *openai.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	clientConfig := openai.DefaultConfig(cfg.Upstream.Token)
	clientConfig.BaseURL = cfg.Upstream.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	return &Client{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

func systemPrompt(humor, honesty int, userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = "Pilot"
	}

	return fmt.Sprintf(`You are TARS, the robotic cockpit companion aboard the pilot's vessel.
Humor level: %d%%. Honesty level: %d%%. The pilot's call sign is %s.
Stay mission-focused: navigation, astrophysics, relativity, quantum effects, life support and vessel ops.
Speak in short, robotic sentences and keep replies under 25 words.
Use the pilot's call sign occasionally. If the pilot drifts off-mission, redirect with a tone matching the humor setting.
Weave in small quips only when the humor setting allows it.`, humor, honesty, name)
}

// Complete runs one chat completion over the given history.
func (c *Client) Complete(
	ctx context.Context,
	messages []dialogue.Entry,
	humor, honesty int,
	userName string,
) (string, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chat = append(chat, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(humor, honesty, userName),
	})

	for _, entry := range messages {
		role := openai.ChatMessageRoleUser
		if entry.Role == dialogue.SpeakerAssistant {
			role = openai.ChatMessageRoleAssistant
		}

		chat = append(chat, openai.ChatCompletionMessage{
			Role:    role,
			Content: entry.Content,
		})
	}

	response, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:               c.cfg.Upstream.Model,
			Messages:            chat,
			MaxCompletionTokens: maxReplyTokens,
		},
	)
	if err != nil {
		return "", oops.Errorf("failed to create chat completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", oops.Errorf("no chat completion found")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
