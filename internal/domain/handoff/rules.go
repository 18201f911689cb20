package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/relaykit/baton/internal/domain"
)

// Built-in validation rules usable by wire surfaces that cannot carry a
// Validator function. A rule string is either a bare name ("nonempty") or
// a name with an argument ("min_length:8").
const (
	RuleNonEmpty  = "nonempty"
	RuleObject    = "object"
	RuleURL       = "url"
	RuleMinLength = "min_length"
)

// RuleValidator resolves a rule string to its built-in Validator.
// Unknown rules are an error so that bad contracts fail at initiation,
// not at completion.
func RuleValidator(rule string) (Validator, error) {
	name, arg, hasArg := strings.Cut(rule, ":")
	switch name {
	case RuleNonEmpty:
		return validateNonEmpty, nil
	case RuleObject:
		return validateObject, nil
	case RuleURL:
		return validateURL, nil
	case RuleMinLength:
		if !hasArg {
			return nil, fmt.Errorf("rule %s requires a length argument", RuleMinLength)
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("rule %s: invalid length %q", RuleMinLength, arg)
		}
		return validateMinLength(n), nil
	default:
		return nil, fmt.Errorf("unknown rule %q", rule)
	}
}

// ResolveRules fills in Validators for requirements that carry a rule but
// no function. Explicitly provided Validators win over rules. An unknown
// rule wraps domain.ErrValidation so wire surfaces reject it as bad input.
func ResolveRules(reqs []Requirement) error {
	for i := range reqs {
		if reqs[i].Rule == "" || reqs[i].Validator != nil {
			continue
		}
		v, err := RuleValidator(reqs[i].Rule)
		if err != nil {
			return fmt.Errorf("%w: deliverable %s: %v", domain.ErrValidation, reqs[i].Name, err)
		}
		reqs[i].Validator = v
	}
	return nil
}

func validateNonEmpty(_ context.Context, value json.RawMessage) (bool, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s != "", nil
	}
	switch t := strings.TrimSpace(string(value)); t {
	case "", "null", "{}", "[]":
		return false, nil
	default:
		return true, nil
	}
}

func validateObject(_ context.Context, value json.RawMessage) (bool, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return false, nil
	}
	return m != nil, nil
}

func validateURL(_ context.Context, value json.RawMessage) (bool, error) {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return false, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return false, nil
	}
	return u.Scheme != "" && u.Host != "", nil
}

func validateMinLength(n int) Validator {
	return func(_ context.Context, value json.RawMessage) (bool, error) {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return false, nil
		}
		return len(s) >= n, nil
	}
}
