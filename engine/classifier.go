package engine

import (
	"regexp"
	"strings"
)

// KeywordClassifier classifies conversation text against two pattern
// sets: booking/confirmation language and explicit decline/opt-out
// language. The success set is checked first, so a confirmation
// outranks an earlier decline in the same window. It is a heuristic,
// not a guaranteed-correct classifier.
type KeywordClassifier struct {
	success []*regexp.Regexp
	loss    []*regexp.Regexp
}

var successPatterns = []string{
	`agendad[oa]`,
	`agendamento confirmado`,
	`confirmad[oa]`,
	`horário marcado`,
	`marcad[oa] para`,
	`te aguardo`,
	`aguardamos você`,
	`fechado então`,
	`pode reservar`,
}

var lossPatterns = []string{
	`não tenho (mais )?interesse`,
	`sem interesse`,
	`não quero`,
	`par[ae] de (me )?mandar`,
	`parar de mandar`,
	`não me mande`,
	`desisti`,
	`cancelar? (o|meu) (horário|agendamento)`,
	`cancelei`,
	`já fechei com outr[oa]`,
	`me remov[ae]`,
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		success: compileAll(successPatterns),
		loss:    compileAll(lossPatterns),
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}

// Classify returns the outcome the text signals, or false when the text
// is silent about it.
func (c *KeywordClassifier) Classify(text string) (Outcome, bool) {
	if text == "" {
		return "", false
	}
	lowered := strings.ToLower(text)

	for _, pattern := range c.success {
		if pattern.MatchString(lowered) {
			return OutcomeAgendado, true
		}
	}
	for _, pattern := range c.loss {
		if pattern.MatchString(lowered) {
			return OutcomePerdido, true
		}
	}
	return "", false
}
