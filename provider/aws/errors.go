package aws

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/costhound/costhound/provider"
)

// authErrorCodes are the API error codes that mean the credentials
// themselves are bad, not the call.
var authErrorCodes = map[string]bool{
	"AuthFailure":                 true,
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnauthorizedOperation":       true,
	"InvalidClientTokenId":        true,
	"UnrecognizedClientException": true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"SignatureDoesNotMatch":       true,
	"RequestExpired":              true,
}

// classifyError wraps an SDK error as AuthError or AdapterError so the
// orchestrator can tell terminal credential failures from transient
// regional ones.
func classifyError(region string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return &provider.AuthError{Provider: "aws", Err: err}
	}
	return &provider.AdapterError{Provider: "aws", Region: region, Err: err}
}
