// Package simerr defines the failure taxonomy shared by the simulation engines.
package simerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind classifies a simulation failure.
type Kind string

const (
	KindInvalidQuantile  Kind = "invalid_quantile"
	KindEmptyLedger      Kind = "empty_ledger"
	KindEmptyInput       Kind = "empty_input"
	KindMissingColumn    Kind = "missing_column"
	KindNoSafeContracts  Kind = "no_safe_contracts"
	KindScoringFailed    Kind = "scoring_failed"
	KindOutOfDomainValue Kind = "out_of_domain_value"
)

// Error is a classified, caller-recoverable simulation failure. It names the
// offending column, value, or contracts so presentation can surface them.
type Error struct {
	Kind        Kind
	Column      string
	Value       string
	ContractIDs []string
	Detail      string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Column != "" {
		fmt.Fprintf(&b, " column=%s", e.Column)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value=%s", e.Value)
	}
	if len(e.ContractIDs) > 0 {
		ids := e.ContractIDs
		more := ""
		if len(ids) > 10 {
			more = fmt.Sprintf(" (+%d more)", len(ids)-10)
			ids = ids[:10]
		}
		fmt.Fprintf(&b, " contracts=[%s]%s", strings.Join(ids, ","), more)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidQuantile reports a quantile outside (0,1).
func InvalidQuantile(q float64) error {
	return eris.Wrap(&Error{Kind: KindInvalidQuantile, Value: fmt.Sprintf("%g", q), Detail: "quantile must be in (0,1)"}, "invalid quantile")
}

// EmptyLedger reports a ledger with zero rows.
func EmptyLedger() error {
	return eris.Wrap(&Error{Kind: KindEmptyLedger, Detail: "ledger has no contracts"}, "empty ledger")
}

// EmptyInput reports an aggregation over zero rows.
func EmptyInput(what string) error {
	return eris.Wrap(&Error{Kind: KindEmptyInput, Detail: what}, "empty input")
}

// MissingColumn reports a required column absent from the ledger.
func MissingColumn(column string) error {
	return eris.Wrap(&Error{Kind: KindMissingColumn, Column: column}, "missing column")
}

// NoSafeContracts reports an empty safe partition at the given threshold.
func NoSafeContracts(threshold float64) error {
	return eris.Wrap(&Error{
		Kind:   KindNoSafeContracts,
		Column: "risk_probability",
		Value:  fmt.Sprintf("%g", threshold),
		Detail: "every contract is at or above the risk threshold; reference price is undefined",
	}, "no safe contracts")
}

// ScoringFailed reports a scorer failure for the given contracts.
func ScoringFailed(ids []string, cause error) error {
	return eris.Wrap(&Error{Kind: KindScoringFailed, ContractIDs: ids, Err: cause}, "scoring failed")
}

// OutOfDomainValue reports a what-if override outside the observed domain.
func OutOfDomainValue(column, value, detail string) error {
	return eris.Wrap(&Error{Kind: KindOutOfDomainValue, Column: column, Value: value, Detail: detail}, "out of domain value")
}

// As extracts the classified error from an error chain.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// KindOf returns the Kind in err's chain, or "" when err is unclassified.
func KindOf(err error) Kind {
	if se, ok := As(err); ok {
		return se.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
