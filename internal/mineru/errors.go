// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mineru

import (
	"fmt"
	"time"
)

// RemoteRejectedError reports an application-level rejection from the
// service: either a non-200 HTTP status on an API endpoint or a non-zero
// code in the response body. It is never retried.
type RemoteRejectedError struct {
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *RemoteRejectedError) Error() string {
	if e.HTTPStatus != 0 && e.HTTPStatus != 200 {
		return fmt.Sprintf("remote service rejected request: HTTP %d", e.HTTPStatus)
	}
	return fmt.Sprintf("remote service rejected request: code %d (%s)", e.Code, e.Msg)
}

// PollTimeoutError reports that the poll deadline elapsed with files still
// pending or processing.
type PollTimeoutError struct {
	BatchID string
	Waited  time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("batch %s did not complete within %s", e.BatchID, e.Waited)
}
