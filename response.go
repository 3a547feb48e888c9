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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Response is the mutable value object a middleware chain builds up before
// the transport shim renders it. It starts as a 200 with no body. The body
// is either buffered bytes or a pass-through stream; setting one clears the
// other. Like Request, a Response belongs to exactly one request cycle and
// is mutated by strictly sequential middleware, so no locking is performed.
type Response struct {
	status int
	header http.Header

	bodyBytes    []byte
	bodyStream   io.Reader
	streamLength int64

	props map[string]interface{}
}

// NewResponse creates an empty 200 response with no body and no props.
func NewResponse() *Response {
	return &Response{
		status:       http.StatusOK,
		header:       http.Header{},
		streamLength: -1,
		props:        map[string]interface{}{},
	}
}

// Status returns the response status code.
func (response *Response) Status() int {
	return response.status
}

// SetStatus replaces the response status code.
func (response *Response) SetStatus(status int) *Response {
	response.status = status
	return response
}

// Header returns the response header map.
func (response *Response) Header() http.Header {
	return response.header
}

// SetHeader replaces any existing values for the named header.
func (response *Response) SetHeader(name, value string) *Response {
	response.header.Set(name, value)
	return response
}

// AddHeader appends a value to the named header, preserving existing values.
func (response *Response) AddHeader(name, value string) *Response {
	response.header.Add(name, value)
	return response
}

// CookieOption adjusts a cookie before it is serialized onto the response.
type CookieOption func(cookie *http.Cookie)

// WithCookiePath overrides the default "/" cookie path.
func WithCookiePath(path string) CookieOption {
	return func(cookie *http.Cookie) {
		cookie.Path = path
	}
}

// WithCookieDomain scopes the cookie to the given domain.
func WithCookieDomain(domain string) CookieOption {
	return func(cookie *http.Cookie) {
		cookie.Domain = domain
	}
}

// WithCookieMaxAge sets the cookie lifetime in seconds. Negative values
// expire the cookie immediately.
func WithCookieMaxAge(seconds int) CookieOption {
	return func(cookie *http.Cookie) {
		cookie.MaxAge = seconds
	}
}

// WithCookieSameSite overrides the default SameSite=Lax policy.
func WithCookieSameSite(sameSite http.SameSite) CookieOption {
	return func(cookie *http.Cookie) {
		cookie.SameSite = sameSite
	}
}

// WithCookieInsecure clears the Secure attribute for plain-HTTP development
// environments.
func WithCookieInsecure() CookieOption {
	return func(cookie *http.Cookie) {
		cookie.Secure = false
	}
}

// WithCookieScriptable clears the HttpOnly attribute, exposing the cookie to
// client-side scripts.
func WithCookieScriptable() CookieOption {
	return func(cookie *http.Cookie) {
		cookie.HttpOnly = false
	}
}

// SetCookie appends a Set-Cookie header. Cookies default to Path=/, Secure,
// HttpOnly, and SameSite=Lax; options override individual attributes.
func (response *Response) SetCookie(name, value string, options ...CookieOption) *Response {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	for _, option := range options {
		option(cookie)
	}

	response.header.Add("Set-Cookie", cookie.String())

	return response
}

// SetBody replaces the response body with buffered bytes, setting
// Content-Type and Content-Length to match. Any previously configured
// stream is discarded.
func (response *Response) SetBody(contentType string, body []byte) *Response {
	response.bodyBytes = body
	response.bodyStream = nil
	response.streamLength = -1

	response.header.Set("Content-Type", contentType)
	response.header.Set("Content-Length", strconv.Itoa(len(body)))

	return response
}

// RespondWithJson serializes payload as the response body. The serialized
// form always ends with a single newline, and Content-Length counts UTF-8
// bytes, not characters.
func (response *Response) RespondWithJson(payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)

	if err != nil {
		return nil, errors.Wrap(err, "error marshaling response payload")
	}

	body = append(body, '\n')

	return response.SetBody("application/json; charset=utf-8", body), nil
}

// RespondWithHtml sets a UTF-8 HTML body.
func (response *Response) RespondWithHtml(html string) *Response {
	return response.SetBody("text/html; charset=utf-8", []byte(html))
}

// RespondWithUtf8 sets a text body of the given content type, tagging the
// charset when the caller did not.
func (response *Response) RespondWithUtf8(contentType, text string) *Response {
	if !strings.Contains(contentType, "charset") {
		contentType = contentType + "; charset=utf-8"
	}

	return response.SetBody(contentType, []byte(text))
}

// RespondNotModified converts the response into a 304 with no body and an
// explicit zero Content-Length.
func (response *Response) RespondNotModified() *Response {
	response.status = http.StatusNotModified
	response.bodyBytes = nil
	response.bodyStream = nil
	response.streamLength = -1

	response.header.Del("Content-Type")
	response.header.Set("Content-Length", "0")

	return response
}

// RespondWithStream attaches a pass-through body stream. contentLength < 0
// means the length is unknown; no Content-Length is set and the transport
// falls back to chunked transfer.
func (response *Response) RespondWithStream(contentType string, contentLength int64, stream io.Reader) *Response {
	response.bodyBytes = nil
	response.bodyStream = stream
	response.streamLength = contentLength

	response.header.Set("Content-Type", contentType)

	if contentLength >= 0 {
		response.header.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	} else {
		response.header.Del("Content-Length")
	}

	return response
}

// Redirect points the client at location. A zero status defaults to 302.
func (response *Response) Redirect(status int, location string) *Response {
	if status == 0 {
		status = http.StatusFound
	}

	response.status = status
	response.header.Set("Location", location)

	return response
}

// HasBody reports whether any body, buffered or streaming, is attached.
func (response *Response) HasBody() bool {
	return response.bodyBytes != nil || response.bodyStream != nil
}

// BodyBytes returns the buffered body, or nil when the response has no body
// or carries a stream instead.
func (response *Response) BodyBytes() []byte {
	return response.bodyBytes
}

// BodyStream returns the pass-through stream, or nil when the response has
// no body or carries buffered bytes instead.
func (response *Response) BodyStream() io.Reader {
	return response.bodyStream
}

// StreamLength returns the declared stream length, or -1 when unknown.
func (response *Response) StreamLength() int64 {
	return response.streamLength
}

// UpdateProps deep-merges props into the response's property bag. Nested
// maps merge recursively; any other value replaces. Both the stored values
// and anything later returned by Props are defensive deep copies, so neither
// side can mutate the other's view.
func (response *Response) UpdateProps(props map[string]interface{}) *Response {
	mergeProps(response.props, props)
	return response
}

// Props returns a deep copy of the response's property bag.
func (response *Response) Props() map[string]interface{} {
	return copyProps(response.props)
}

// Prop returns a single property value (deep-copied when it is a container)
// and whether it was present.
func (response *Response) Prop(name string) (interface{}, bool) {
	value, found := response.props[name]

	if !found {
		return nil, false
	}

	return copyPropValue(value), true
}

func mergeProps(into, from map[string]interface{}) {
	for name, value := range from {
		existing, found := into[name]

		if found {
			existingMap, existingOk := existing.(map[string]interface{})
			valueMap, valueOk := value.(map[string]interface{})

			if existingOk && valueOk {
				mergeProps(existingMap, valueMap)
				continue
			}
		}

		into[name] = copyPropValue(value)
	}
}

func copyProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))

	for name, value := range props {
		out[name] = copyPropValue(value)
	}

	return out
}

func copyPropValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		return copyProps(typed)

	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(typed))

		for k, v := range typed {
			out[k] = copyPropValue(v)
		}

		return out

	case []interface{}:
		out := make([]interface{}, len(typed))

		for i, v := range typed {
			out[i] = copyPropValue(v)
		}

		return out

	default:
		return value
	}
}

// String summarizes the response for log output.
func (response *Response) String() string {
	body := "empty"

	if response.bodyStream != nil {
		body = "stream"
	} else if response.bodyBytes != nil {
		body = fmt.Sprintf("%d bytes", len(response.bodyBytes))
	}

	return fmt.Sprintf("{status=[%d] body=[%s]}", response.status, body)
}
