// Package backends provides the executors that drive language models.
package backends

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/tokenizer"
)

const systemPrompt = "You are Daksha, a software engineering agent. " +
	"You work inside the user's project and answer with concrete, actionable output."

// ChatClient abstracts the subset of the OpenAI client the executor
// uses. This allows testing without real HTTP calls.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI drives a chat model through one completion per turn. It speaks
// the OpenAI wire format, so any compatible server works through the
// base URL override.
type OpenAI struct {
	client ChatClient
	model  string
	tk     agent.Toolkit
}

var _ agent.Executor = (*OpenAI)(nil) //nolint:gochecknoglobals // compile-time check

func NewOpenAI(client ChatClient, model string, tk agent.Toolkit) *OpenAI {
	return &OpenAI{client: client, model: model, tk: tk}
}

// OpenAIFactory returns the registry factory for the "openai" backend.
func OpenAIFactory(apiKey, baseURL string) agent.Factory {
	return func(model string, tk agent.Toolkit) (agent.Executor, error) {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		return NewOpenAI(openai.NewClientWithConfig(cfg), model, tk), nil
	}
}

func (e *OpenAI) Execute(ctx context.Context, project, prompt string) error {
	return e.turn(ctx, project, prompt)
}

func (e *OpenAI) Resume(ctx context.Context, project, message string) error {
	return e.turn(ctx, project, message)
}

// turn posts a working snapshot, sends the whole conversation to the
// model, records the reply and its token cost, and closes the run out on
// the state log.
func (e *OpenAI) turn(ctx context.Context, project, latest string) error {
	working := domain.NewSnapshot()
	working.InternalMonologue = "Thinking about how to respond..."
	working.StatusMessage = "Talking to the model"
	if err := e.tk.States.Append(ctx, project, working); err != nil {
		return fmt.Errorf("backends.OpenAI: record working state: %w", err)
	}

	history, err := e.tk.Messages.GetAll(ctx, project)
	if err != nil {
		return fmt.Errorf("backends.OpenAI: load conversation: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: buildChatMessages(history, latest),
	})
	if err != nil {
		return fmt.Errorf("backends.OpenAI: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("backends.OpenAI: completion returned no choices")
	}
	reply := resp.Choices[0].Message.Content

	if err := e.tk.Messages.Append(ctx, project, domain.NewAgentMessage(reply)); err != nil {
		return fmt.Errorf("backends.OpenAI: record reply: %w", err)
	}

	usage := resp.Usage.TotalTokens
	if usage == 0 && e.tk.Tokens != nil {
		// Some OpenAI-compatible servers omit usage counts.
		usage = localCount(e.tk.Tokens, latest) + localCount(e.tk.Tokens, reply)
	}
	if usage > 0 {
		if err := e.tk.States.AddTokenUsage(ctx, project, usage); err != nil {
			return fmt.Errorf("backends.OpenAI: record token usage: %w", err)
		}
	}

	final, err := e.tk.States.GetLatest(ctx, project)
	if err != nil {
		return fmt.Errorf("backends.OpenAI: load latest state: %w", err)
	}
	if final == nil {
		final = domain.NewSnapshot()
	}
	final.Completed = true
	final.Active = false
	final.StatusMessage = "Completed"
	final.InternalMonologue = "Turn finished."
	if err := e.tk.States.UpdateLatest(ctx, project, final); err != nil {
		return fmt.Errorf("backends.OpenAI: close out state: %w", err)
	}

	return nil
}

// buildChatMessages maps the conversation onto the chat roles. The
// latest prompt is already on the record when resuming, so it is only
// appended when the history does not end with it.
func buildChatMessages(history []*domain.Message, latest string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.FromAgent {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	tailIsLatest := len(history) > 0 &&
		!history[len(history)-1].FromAgent &&
		history[len(history)-1].Text == latest
	if latest != "" && !tailIsLatest {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: latest,
		})
	}

	return msgs
}

func localCount(tk *tokenizer.Tokenizer, text string) int {
	n, err := tk.Count(text)
	if err != nil {
		return 0
	}
	return n
}
