package event

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

// ValidationIssue is one validation failure, carrying a JSON-pointer-ish path and a
// human message, per spec §4.2 ("throw EVENT_INVALID with the first issue's
// path+message when validation is enabled").
type ValidationIssue struct {
	Path    string
	Message string
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validator validates a decoded Record, returning every ValidationIssue found.
type Validator func(r Record) []ValidationIssue

// ShouldValidateEvents implements spec §4.2's shouldValidateEvents(): reads
// NOSTR_GIT_VALIDATE_EVENTS as a boolean (truthy values: 1/true/yes, falsy:
// 0/false/no), defaulting to true unless NGIT_ENV=production and the
// variable is entirely unset.
func ShouldValidateEvents() bool {
	raw, ok := os.LookupEnv("NOSTR_GIT_VALIDATE_EVENTS")
	if ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return b
		}
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "yes", "on":
			return true
		case "no", "off", "":
			return false
		}
	}
	// Not set: default true outside production.
	return strings.ToLower(os.Getenv("NGIT_ENV")) != "production"
}

// AssertEvent runs validate against r when ShouldValidateEvents() is true,
// returning an EVENT_INVALID *errs.Error carrying the first issue's
// path+message, or nil if validation is disabled or r passes.
func AssertEvent(kindName string, r Record, validate Validator) error {
	if !ShouldValidateEvents() {
		return nil
	}
	issues := validate(r)
	if len(issues) == 0 {
		return nil
	}
	first := issues[0]
	return errs.New(errs.EventInvalid, first.String()).
		With("operation", "assertEvent").
		With("kind", kindName).
		With("address", r.Address()).
		With("issueCount", len(issues))
}
