package builder

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrProvisioning classifies every failure that occurs after resource
	// creation has begun. By the time it propagates, teardown has already run.
	ErrProvisioning = fmt.Errorf("provisioning failed")

	// ErrToolMissing reports a required tool absent from the builder instance.
	ErrToolMissing = fmt.Errorf("required tool is absent")
)

// isAPIError reports whether err is a control-plane error with the given
// code. Used for the creates that treat "already exists" as success.
func isAPIError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
