package cmn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Wrap and Wrapf mirror github.com/pkg/errors so call sites don't import it
// directly; kept as a thin alias the way the teacher centralizes its error
// helpers in cmn.
var (
	Wrap  = errors.Wrap
	Wrapf = errors.Wrapf
	Cause = errors.Cause
)

// NewNotFoundError reports a missing entity; callers treat it as a
// recoverable, log-and-continue condition per §7's "missing-entity reads
// are not errors" policy rather than a real Error value where avoidable.
func NewNotFoundError(format string, a ...interface{}) error {
	return &NotFoundError{msg: fmt.Sprintf(format, a...)}
}

type NotFoundError struct{ msg string }

func (e *NotFoundError) Error() string { return "not found: " + e.msg }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// AggregateError collects every error contributed by independent scalers
// reconciling concurrently (§7 "aggregated with context preserving all
// contributing errors; other scalers still run").
type AggregateError struct {
	errs []error
}

func NewAggregateError() *AggregateError { return &AggregateError{} }

func (a *AggregateError) Add(ctx string, err error) {
	if err == nil {
		return
	}
	a.errs = append(a.errs, errors.Wrap(err, ctx))
}

// HasErrors reports whether any error was added.
func (a *AggregateError) HasErrors() bool { return a != nil && len(a.errs) > 0 }

func (a *AggregateError) ErrorOrNil() error {
	if !a.HasErrors() {
		return nil
	}
	return a
}

func (a *AggregateError) Error() string {
	msgs := make([]string, 0, len(a.errs))
	for _, e := range a.errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%d error(s) occurred: %s", len(a.errs), strings.Join(msgs, "; "))
}

func (a *AggregateError) Errors() []error { return a.errs }
