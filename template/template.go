package template

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// FollowUpTemplate is one staged nudge message. Stage 1 is the first
// follow-up sent to a quiet lead, stage 2 the second, and so on.
type FollowUpTemplate struct {
	Stage int    `json:"stage"`
	Text  string `json:"text"`
	Hint  string `json:"hint,omitempty"`
}

// Source provides staged follow-up templates. Configuration-owned and
// read-only to the engine.
type Source struct {
	stages []FollowUpTemplate
}

// Unresolved placeholders are replaced with this literal instead of
// leaking raw {placeholder} syntax to the lead.
const missingValue = "[não informado]"

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

var defaultStages = []FollowUpTemplate{
	{
		Stage: 1,
		Text:  "Olá {nome}, tudo bem? Notei que nossa conversa ficou parada. Posso te ajudar a seguir com o agendamento?",
	},
	{
		Stage: 2,
		Text:  "Oi {nome}! Ainda temos horários disponíveis para {data} às {horario}. Quer que eu reserve para você?",
	},
	{
		Stage: 3,
		Text:  "{nome}, essa é minha última mensagem por aqui. Se ainda tiver interesse, é só responder que continuamos de onde paramos.",
	},
}

// NewSource returns a template source. When path is non-empty the stages
// are loaded from a JSON file, otherwise the built-in defaults are used.
func NewSource(path string) (*Source, error) {
	if path == "" {
		return &Source{stages: defaultStages}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var stages []FollowUpTemplate
	if err := json.Unmarshal(data, &stages); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("templates file %s defines no stages", path)
	}

	log.Info().
		Str("path", path).
		Int("stages", len(stages)).
		Msg("Loaded follow-up templates from file")

	return &Source{stages: stages}, nil
}

// ByStage returns the template for the given stage (1-based). Stages past
// the last defined one floor at the last template, so attempt overflow
// never errors.
func (s *Source) ByStage(stage int) FollowUpTemplate {
	if stage < 1 {
		stage = 1
	}
	if stage > len(s.stages) {
		stage = len(s.stages)
	}
	return s.stages[stage-1]
}

// Stages returns all configured templates in order.
func (s *Source) Stages() []FollowUpTemplate {
	return s.stages
}

// Render substitutes named variables into the template text. Variables
// with empty values count as unknown; any placeholder left unresolved is
// replaced with "[não informado]".
func Render(text string, vars map[string]string) string {
	rendered := text
	for name, value := range vars {
		if value == "" {
			continue
		}
		rendered = strings.ReplaceAll(rendered, "{"+name+"}", value)
	}
	return placeholderPattern.ReplaceAllString(rendered, missingValue)
}
