/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package xrouter

import (
	"fmt"
	"net/http"
)

// GenericInternalDetail is the public detail substituted for any error that
// is not explicitly flagged as safe to describe to the caller.
const GenericInternalDetail = "internal server error"

const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// HttpError is a routing condition or domain error that is explicitly flagged
// as safe to describe to the caller. The router's built-in error handler only
// renders HttpError values; everything else propagates out of dispatch and is
// replaced with a generic message at the transport boundary so internal
// detail is never leaked.
type HttpError struct {
	Status int
	Code   string
	Title  string
	Detail string
	Source string

	// AllowedMethods carries the route's full allowed-method set when Status
	// is 405, used to populate the Allow response header.
	AllowedMethods []string

	Cause error
}

func (httpError *HttpError) Error() string {
	return fmt.Sprintf("%s [%d]: %s", httpError.Code, httpError.Status, httpError.Detail)
}

func (httpError *HttpError) Unwrap() error {
	return httpError.Cause
}

// NewHttpError creates a caller-visible error with an explicit status, code,
// and public detail.
func NewHttpError(status int, code, detail string) *HttpError {
	return &HttpError{
		Status: status,
		Code:   code,
		Title:  http.StatusText(status),
		Detail: detail,
	}
}

// NewNotFoundError reports that no route matched pathname.
func NewNotFoundError(pathname string) *HttpError {
	return NewHttpError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("no resource found at [%s]", pathname))
}

// NewMethodNotAllowedError reports that a route matched but method did not.
// The allowed set is carried for the Allow response header.
func NewMethodNotAllowedError(method string, allowed []string) *HttpError {
	httpError := NewHttpError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, fmt.Sprintf("method [%s] is not allowed", method))
	httpError.AllowedMethods = allowed
	return httpError
}

// NewBadRequestError reports a malformed request with a caller-visible
// detail.
func NewBadRequestError(detail string, cause error) *HttpError {
	httpError := NewHttpError(http.StatusBadRequest, CodeBadRequest, detail)
	httpError.Cause = cause
	return httpError
}

// NewInternalServerError wraps cause in the generic caller-visible envelope.
// The cause stays available for logging but its message is never rendered.
func NewInternalServerError(cause error) *HttpError {
	httpError := NewHttpError(http.StatusInternalServerError, CodeInternalServerError, GenericInternalDetail)
	httpError.Cause = cause
	return httpError
}

// ErrorEnvelope is the structured JSON body rendered for handled conditions.
type ErrorEnvelope struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Source string `json:"source,omitempty"`
}

// Envelope renders the error as its JSON envelope.
func (httpError *HttpError) Envelope() *ErrorEnvelope {
	return &ErrorEnvelope{
		Status: httpError.Status,
		Code:   httpError.Code,
		Title:  httpError.Title,
		Detail: httpError.Detail,
		Source: httpError.Source,
	}
}
