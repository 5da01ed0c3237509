package engine

import "testing"

func TestKeywordClassifier(t *testing.T) {
	classifier := NewKeywordClassifier()

	testCases := []struct {
		name      string
		text      string
		expected  Outcome
		wantMatch bool
	}{
		{
			name:      "Booking confirmation",
			text:      "agendado, te aguardo amanhã",
			expected:  OutcomeAgendado,
			wantMatch: true,
		},
		{
			name:      "Explicit opt-out",
			text:      "não tenho mais interesse, pode parar de mandar mensagem",
			expected:  OutcomePerdido,
			wantMatch: true,
		},
		{
			name:      "Uppercase booking",
			text:      "CONFIRMADO para sexta",
			expected:  OutcomeAgendado,
			wantMatch: true,
		},
		{
			name:      "Decline without keywords",
			text:      "vou pensar e depois te falo",
			wantMatch: false,
		},
		{
			name:      "Empty text",
			text:      "",
			wantMatch: false,
		},
		{
			name: "Booking outranks earlier decline",
			text: "não quero mais esse horário\nperfeito, agendado para quinta então",
			// Success set is checked first: a confirmation wins over an
			// earlier decline in the same window.
			expected:  OutcomeAgendado,
			wantMatch: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, matched := classifier.Classify(tc.text)
			if matched != tc.wantMatch {
				t.Fatalf("Classify(%q) matched=%v, want %v", tc.text, matched, tc.wantMatch)
			}
			if matched && outcome != tc.expected {
				t.Errorf("Classify(%q) = %s, want %s", tc.text, outcome, tc.expected)
			}
		})
	}
}
