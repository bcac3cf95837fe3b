package api

import (
	"errors"
	"fmt"
)

// ErrUnreadablePDF marks a ticket PDF the decoder could not open at all,
// usually because the ticket was cancelled or exchanged. Recoverable: the
// document is skipped and the operator is told.
var ErrUnreadablePDF = errors.New("unable to read ticket PDF")

// ParseError reports a required field whose extraction pattern found no
// match in a document. Recoverable: the one document (or page) is skipped.
type ParseError struct {
	Source string // which vendor/template was being parsed
	Field  string // the field whose pattern failed
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: no match for field %q", e.Source, e.Field)
}

// NoRuleError reports a message whose (sender, subject) pair matched no
// classification rule. Recoverable: the message is skipped.
type NoRuleError struct {
	Sender  string
	Subject string
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no rule for sender %q with subject %q", e.Sender, e.Subject)
}

// DateFormatError reports a travel date with an unknown month abbreviation.
// This means an extraction rule drifted from the vendor's template, not bad
// input, so it is fatal to the whole filter step.
type DateFormatError struct {
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("unrecognized date %q", e.Value)
}

// PortalStepError reports a failed step of the billing-portal protocol.
// It aborts the whole ticket group; nothing is retried automatically since
// a retry risks a duplicate invoice.
type PortalStepError struct {
	Step string // "validate", "register", "scrape" or "submit"
	Err  error
}

func (e *PortalStepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("portal %s failed", e.Step)
	}
	return fmt.Sprintf("portal %s failed: %v", e.Step, e.Err)
}

func (e *PortalStepError) Unwrap() error { return e.Err }
