package llm

import "testing"

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"response field", `{"response": "El plazo es de 30 días."}`, "El plazo es de 30 días."},
		{"surrounding whitespace", "\n {\"response\": \"ok\"} \n", "ok"},
		{"plain text", "El plazo es de 30 días.", "El plazo es de 30 días."},
		{"object without field", `{"answer": "x"}`, `{"answer": "x"}`},
		{"array", `["response"]`, `["response"]`},
		{"truncated json", `{"response": "cut`, `{"response": "cut`},
		{"null response", `{"response": null}`, `{"response": null}`},
		{"numeric response", `{"response": 30}`, `{"response": 30}`},
		{"object response", `{"response": {"dias": 30}}`, `{"response": {"dias": 30}}`},
		{"nested markdown", `{"response": "• uno\n• dos"}`, "• uno\n• dos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAnswer(tt.in); got != tt.want {
				t.Errorf("ParseAnswer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
