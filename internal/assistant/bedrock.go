package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/domain"
)

// DefaultModelID is used when none is configured.
const DefaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

const maxHistory = 20

// Invoker is the part of the Bedrock runtime client used here.
type Invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Roster lists everyone in the family.
type Roster interface {
	List(ctx context.Context) ([]domain.Person, error)
}

// Maintenance reports the maintenance switch.
type Maintenance interface {
	Maintenance(ctx context.Context) bool
}

// Turn is one earlier message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is a file sent along with the question. Only images are
// forwarded to the model; other files are mentioned by name.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"` // base64
}

// Request is one chat question.
type Request struct {
	Message string       `json:"message"`
	History []Turn       `json:"conversation_history,omitempty"`
	Files   []Attachment `json:"files,omitempty"`
}

// Reply is the model answer.
type Reply struct {
	Response     string `json:"response"`
	Status       string `json:"status"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Assistant answers questions about the family.
type Assistant struct {
	client      Invoker
	roster      Roster
	maintenance Maintenance
	modelID     string
	maxTokens   int
	now         func() time.Time
	log         *zap.Logger
}

// NewBedrockClient creates a Bedrock runtime client for cfg.
func NewBedrockClient(ctx context.Context, cfg config.BedrockConfig) (*bedrockruntime.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

// New creates an assistant.
func New(client Invoker, roster Roster, maintenance Maintenance, cfg config.BedrockConfig, log *zap.Logger) *Assistant {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{
		client:      client,
		roster:      roster,
		maintenance: maintenance,
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		now:         time.Now,
		log:         log,
	}
}

// Context returns the current family context block.
func (a *Assistant) Context(ctx context.Context) (string, error) {
	persons, err := a.roster.List(ctx)
	if err != nil {
		return "", domain.Upstream("list roster", err)
	}
	return BuildContext(persons, a.now().Year()), nil
}

// Ask sends the question with the family context as system prompt.
func (a *Assistant) Ask(ctx context.Context, req Request) (*Reply, error) {
	if a.maintenance != nil && a.maintenance.Maintenance(ctx) {
		return nil, domain.ErrMaintenance
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, &domain.ValidationError{Field: "message", Message: "message is required"}
	}

	family, err := a.Context(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        a.maxTokens,
		System:           SystemPrompt(family),
		Messages:         buildMessages(req),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, domain.Upstream("invoke model", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, domain.Upstream("decode model response", err)
	}
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	answer := text.String()
	if answer == "" {
		answer = "No s'ha pogut generar una resposta."
	}

	a.log.Info("assistant answered",
		zap.String("model", a.modelID),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))
	return &Reply{
		Response:     answer,
		Status:       "success",
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// buildMessages keeps the most recent history turns, which must alternate
// starting with the user, and appends the question with its images.
func buildMessages(req Request) []message {
	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	msgs := make([]message, 0, len(history)+1)
	for _, t := range history {
		role := t.Role
		if role != "user" && role != "assistant" {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(msgs) == 0 && role != "user" {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content[0].Text += "\n" + t.Content
			continue
		}
		msgs = append(msgs, message{Role: role, Content: []contentBlock{{Type: "text", Text: t.Content}}})
	}

	text := req.Message
	var images []contentBlock
	for _, f := range req.Files {
		switch {
		case strings.HasPrefix(f.Type, "image/"):
			images = append(images, contentBlock{
				Type:   "image",
				Source: &imageSource{Type: "base64", MediaType: f.Type, Data: f.Data},
			})
		default:
			text += fmt.Sprintf("\n\n[S'ha adjuntat el fitxer: %s]", f.Name)
		}
	}
	question := message{Role: "user", Content: append([]contentBlock{{Type: "text", Text: text}}, images...)}

	// The question must follow an assistant turn.
	if n := len(msgs); n > 0 && msgs[n-1].Role == "user" {
		msgs = msgs[:n-1]
	}
	return append(msgs, question)
}
