package vendors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
)

var (
	ErrAuthenticationFailed = errors.New("vendor authentication failed")
	ErrNetworkConnection    = errors.New("vendor network connection failed")
	ErrVendorSite           = errors.New("vendor site error")
	ErrOrderFetch           = errors.New("vendor order fetch failed")
	ErrEmptyResults         = errors.New("vendor returned no results")
	ErrProductNotFound      = errors.New("vendor product not found")
	ErrTooManyRequests      = errors.New("vendor rate limited the request")
	ErrUnsupportedVendor    = errors.New("unsupported vendor")
)

// Error attaches the vendor and the failed step to one of the sentinel kinds.
// errors.Is matches both Kind and the wrapped cause.
type Error struct {
	Vendor Slug
	Op     string
	Kind   error
	Err    error
}

// Wrap builds an *Error. A nil kind is inferred from err.
func Wrap(vendor Slug, op string, kind, err error) *Error {
	if kind == nil {
		var existing *Error
		if errors.As(err, &existing) && existing.Vendor == vendor {
			return existing
		}
		kind = kindOf(err)
	}
	return &Error{Vendor: vendor, Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %s: %v", e.Vendor, e.Op, e.Kind)
	case errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %s: %v", e.Vendor, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v: %v", e.Vendor, e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// FetchOutcome is the retry-relevant class of a vendor call result.
type FetchOutcome string

const (
	OutcomeSuccess     FetchOutcome = "success"
	OutcomeRateLimited FetchOutcome = "rate_limited"
	OutcomeTransient   FetchOutcome = "transient_error"
	OutcomePermanent   FetchOutcome = "permanent_error"
	OutcomeNotFound    FetchOutcome = "not_found"
)

func (o FetchOutcome) String() string {
	return string(o)
}

// Classify maps a vendor call error onto a FetchOutcome. Unrecognised errors
// are treated as transient.
func Classify(err error) FetchOutcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrTooManyRequests):
		return OutcomeRateLimited
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrEmptyResults):
		return OutcomeNotFound
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrVendorSite),
		errors.Is(err, ErrOrderFetch), errors.Is(err, ErrUnsupportedVendor):
		return OutcomePermanent
	case errors.Is(err, ErrNetworkConnection):
		return OutcomeTransient
	}

	var statusErr *httpsession.StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.Status)
	}
	return OutcomeTransient
}

// ClassifyStatus maps an HTTP status code onto a FetchOutcome.
func ClassifyStatus(status int) FetchOutcome {
	switch {
	case status >= 200 && status < 400:
		return OutcomeSuccess
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusNotFound, status == http.StatusGone:
		return OutcomeNotFound
	case status == http.StatusRequestTimeout, status >= 500:
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}

// ErrorForStatus returns the sentinel kind of a non-success status, or nil.
func ErrorForStatus(status int) error {
	switch {
	case status >= 200 && status < 400:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthenticationFailed
	case status == http.StatusTooManyRequests:
		return ErrTooManyRequests
	case status == http.StatusNotFound, status == http.StatusGone:
		return ErrProductNotFound
	case status == http.StatusRequestTimeout, status >= 500:
		return ErrNetworkConnection
	default:
		return ErrVendorSite
	}
}

func kindOf(err error) error {
	if err == nil {
		return ErrVendorSite
	}
	for _, kind := range []error{
		ErrAuthenticationFailed, ErrNetworkConnection, ErrVendorSite, ErrOrderFetch,
		ErrEmptyResults, ErrProductNotFound, ErrTooManyRequests, ErrUnsupportedVendor,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	var statusErr *httpsession.StatusError
	if errors.As(err, &statusErr) {
		return ErrorForStatus(statusErr.Status)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkConnection
	}
	return ErrVendorSite
}

// AsAPIError maps a vendor failure onto the typed errors the API renders.
func AsAPIError(err error) *pkgerrors.Error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	vendor := ""
	var vErr *Error
	if errors.As(err, &vErr) {
		vendor = vErr.Vendor.String()
	}

	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return pkgerrors.Wrap(pkgerrors.CodeVendorAuth, err, "vendor login failed").
			WithDetails(map[string]string{"vendor": vendor, "reason": "reconnect"})
	case errors.Is(err, ErrUnsupportedVendor):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "vendor not supported").
			WithDetails(map[string]string{"vendor": vendor})
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrEmptyResults):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "vendor product not found")
	case errors.Is(err, ErrVendorSite), errors.Is(err, ErrOrderFetch):
		return pkgerrors.Wrap(pkgerrors.CodeVendorRejected, err, "vendor rejected the request").
			WithDetails(map[string]string{"vendor": vendor})
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "vendor unavailable").
			WithDetails(map[string]string{"vendor": vendor})
	}
}
