package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/relaykit/baton/internal/domain"
)

func TestRuleValidator(t *testing.T) {
	tests := []struct {
		rule    string
		wantErr bool
	}{
		{"nonempty", false},
		{"object", false},
		{"url", false},
		{"min_length:8", false},
		{"min_length:0", false},
		{"min_length", true},
		{"min_length:abc", true},
		{"min_length:-1", true},
		{"unknown_rule", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			v, err := RuleValidator(tt.rule)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v == nil {
				t.Fatal("expected a validator, got nil")
			}
		})
	}
}

func TestResolveRules(t *testing.T) {
	preset := func(_ context.Context, _ json.RawMessage) (bool, error) { return true, nil }

	reqs := []Requirement{
		{Name: "report", Rule: RuleObject},
		{Name: "freeform"},
		{Name: "custom", Rule: RuleURL, Validator: preset},
	}

	if err := ResolveRules(reqs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reqs[0].Validator == nil {
		t.Error("expected rule to resolve to a validator")
	}
	if reqs[1].Validator != nil {
		t.Error("expected rule-less requirement to stay validator-less")
	}
	// A preset validator wins over the rule string.
	ok, err := reqs[2].Validator(context.Background(), json.RawMessage(`123`))
	if err != nil || !ok {
		t.Errorf("preset validator was replaced: ok=%v err=%v", ok, err)
	}
}

func TestResolveRulesUnknown(t *testing.T) {
	reqs := []Requirement{{Name: "report", Rule: "bogus"}}

	err := ResolveRules(reqs)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got: %v", err)
	}
	if !strings.Contains(err.Error(), "deliverable report") {
		t.Errorf("expected error to name the deliverable, got: %v", err)
	}
}

func TestValidateNonEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"string", `"hello"`, true},
		{"empty string", `""`, false},
		{"null", `null`, false},
		{"empty object", `{}`, false},
		{"empty array", `[]`, false},
		{"object", `{"a":1}`, true},
		{"array", `[1]`, true},
		{"number", `42`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateNonEmpty(context.Background(), json.RawMessage(tt.value))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("validateNonEmpty(%s) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestValidateObject(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"object", `{"a":1}`, true},
		{"empty object", `{}`, true},
		{"null", `null`, false},
		{"array", `[1,2]`, false},
		{"string", `"hello"`, false},
		{"invalid json", `{broken`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateObject(context.Background(), json.RawMessage(tt.value))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("validateObject(%s) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"https", `"https://example.com/report"`, true},
		{"http", `"http://example.com"`, true},
		{"no scheme", `"example.com/report"`, false},
		{"relative path", `"/report"`, false},
		{"empty", `""`, false},
		{"not a string", `42`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateURL(context.Background(), json.RawMessage(tt.value))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("validateURL(%s) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestValidateMinLength(t *testing.T) {
	v, err := RuleValidator("min_length:5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"long enough", `"hello"`, true},
		{"longer", `"hello world"`, true},
		{"too short", `"hi"`, false},
		{"empty", `""`, false},
		{"not a string", `12345`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v(context.Background(), json.RawMessage(tt.value))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("min_length:5 on %s = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
