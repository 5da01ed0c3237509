package openai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/engine"
)

// ClassificationResult is the structured output the model must produce
// when classifying a conversation window.
type ClassificationResult struct {
	Outcome string `json:"outcome" jsonschema:"enum=agendado,enum=perdido,enum=nenhum" jsonschema_description:"The conversation outcome: agendado when the lead confirmed a booking, perdido when the lead explicitly declined or opted out, nenhum when the text signals neither"`
	Reason  string `json:"reason" jsonschema_description:"One short sentence explaining the classification"`
}

func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

var classificationSchema = GenerateSchema[ClassificationResult]()

const classifierPrompt = `Você analisa trechos de conversas entre um lead e uma clínica.
Classifique o desfecho da conversa:
- "agendado" quando o lead confirmou um agendamento ou horário.
- "perdido" quando o lead recusou explicitamente, cancelou ou pediu para parar de receber mensagens.
- "nenhum" quando o texto não indica claramente nenhum dos dois.
Na dúvida, responda "nenhum".`

// Classifier classifies conversation text with a chat model instead of
// keyword matching. It satisfies the engine's Classifier interface, so
// the audit control flow is identical either way. Classification is
// best-effort: any API failure reads as no match.
type Classifier struct {
	client  Client
	timeout time.Duration
}

func NewClassifier(client Client, timeout time.Duration) *Classifier {
	return &Classifier{client: client, timeout: timeout}
}

func (c *Classifier) Classify(text string) (engine.Outcome, bool) {
	if text == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	chatCompletion, err := c.client.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(classifierPrompt),
				openai.UserMessage(text),
			},
			Model: openai.ChatModelGPT4_1Mini,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
					JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:        "classification_result",
						Description: openai.String("The classified outcome of the conversation"),
						Schema:      classificationSchema,
						Strict:      openai.Bool(true),
					},
				},
			},
		},
	)
	if err != nil {
		log.Warn().Err(err).Msg("Model classification failed, treating as no match")
		return "", false
	}

	if len(chatCompletion.Choices) == 0 {
		log.Warn().Msg("Model returned no choices, treating as no match")
		return "", false
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(chatCompletion.Choices[0].Message.Content), &result); err != nil {
		log.Warn().Err(err).Msg("Could not parse classification response")
		return "", false
	}

	switch result.Outcome {
	case "agendado":
		return engine.OutcomeAgendado, true
	case "perdido":
		return engine.OutcomePerdido, true
	default:
		return "", false
	}
}
