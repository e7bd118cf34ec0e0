package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the classification of a failed remote call.
type Kind int

const (
	KindPermanent Kind = iota
	KindRetryable
	KindClockSkew
	KindThrottling
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindClockSkew:
		return "clock_skew"
	case KindThrottling:
		return "throttling"
	case KindTransient:
		return "transient"
	default:
		return "permanent"
	}
}

var clockSkewCodes = map[string]struct{}{
	"AuthFailure":               {},
	"InvalidSignatureException": {},
	"RequestExpired":            {},
	"RequestInTheFuture":        {},
	"RequestTimeTooSkewed":      {},
	"SignatureDoesNotMatch":     {},
}

var transientCodes = map[string]struct{}{
	"TimeoutError":       {},
	"InternalError":      {},
	"ServiceUnavailable": {},
}

// Classify determines why, if at all, an error may be retried.
func Classify(err error) Kind {
	if err == nil || errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	if isTraitRetryable(err) {
		return KindRetryable
	}

	code := ErrorCode(err)
	if _, ok := clockSkewCodes[code]; ok {
		return KindClockSkew
	}
	if _, ok := awsretry.DefaultThrottleErrorCodes[code]; ok {
		return KindThrottling
	}
	if st, ok := grpcStatus(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return KindThrottling
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return KindTransient
		}
	}
	if httpCode := httpStatusCode(err); httpCode == 429 {
		return KindThrottling
	} else if _, ok := awsretry.DefaultRetryableHTTPStatusCodes[httpCode]; ok {
		return KindTransient
	}
	if _, ok := awsretry.DefaultRetryableErrorCodes[code]; ok {
		return KindTransient
	}
	if _, ok := transientCodes[code]; ok {
		return KindTransient
	}
	if isTransientNetworkError(err) {
		return KindTransient
	}

	return classifyMessage(err)
}

// ErrorCode returns the service error code carried by err: the API error code
// for AWS errors, the status code name for gRPC errors, or "" when unknown.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	if st, ok := grpcStatus(err); ok && st.Code() != codes.OK {
		return st.Code().String()
	}
	return ""
}

func isTraitRetryable(err error) bool {
	var r interface{ RetryableError() bool }
	if errors.As(err, &r) && r.RetryableError() {
		return true
	}
	if st, ok := grpcStatus(err); ok {
		for _, d := range st.Details() {
			if _, ok := d.(*errdetails.RetryInfo); ok {
				return true
			}
		}
	}
	return false
}

func isTransientNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return awsretry.RetryableConnectionError{}.IsErrorRetryable(err).Bool()
}

// classifyMessage is the last resort for errors that carry no structure.
func classifyMessage(err error) Kind {
	s := strings.ToLower(err.Error())

	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "slow down") ||
		strings.Contains(s, "throttl"):
		return KindThrottling
	case strings.Contains(s, "connection reset") || strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "timeout") || strings.Contains(s, "timed out") ||
		strings.Contains(s, "503") || strings.Contains(s, "502") || strings.Contains(s, "504"):
		return KindTransient
	}
	return KindPermanent
}

func grpcStatus(err error) (*status.Status, bool) {
	var se interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &se) {
		return nil, false
	}
	st := se.GRPCStatus()
	return st, st != nil
}

func httpStatusCode(err error) int {
	var he interface{ HTTPStatusCode() int }
	if errors.As(err, &he) {
		return he.HTTPStatusCode()
	}
	return 0
}
