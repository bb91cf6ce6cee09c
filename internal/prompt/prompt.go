// Package prompt turns stored shots into few-shot chat messages.
package prompt

import (
	"github.com/openai/openai-go/v3"

	"few-shots/internal/shot"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a provider-neutral chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages renders each shot as a user message holding its inputs followed
// by an assistant message holding its outputs. Objects are rendered in
// canonical JSON.
func Messages(shots []shot.Shot) []Message {
	msgs := make([]Message, 0, 2*len(shots))
	for _, s := range shots {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: s.Inputs.String()},
			Message{Role: RoleAssistant, Content: s.Outputs.String()},
		)
	}
	return msgs
}

// FromScored drops the distances of search results, keeping their order.
func FromScored(scored []shot.ScoredShot) []shot.Shot {
	shots := make([]shot.Shot, len(scored))
	for i, s := range scored {
		shots[i] = s.Shot
	}
	return shots
}

// Build prepends an optional system message and appends the final user
// input to the rendered shots.
func Build(system string, shots []shot.Shot, input shot.Value) []Message {
	msgs := make([]Message, 0, 2*len(shots)+2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Messages(shots)...)
	return append(msgs, Message{Role: RoleUser, Content: input.String()})
}

// OpenAI converts messages to Chat Completions parameters. Unknown roles are
// sent as user messages.
func OpenAI(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out[i] = openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			}
		case RoleAssistant:
			out[i] = openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			}
		default:
			out[i] = openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			}
		}
	}
	return out
}
