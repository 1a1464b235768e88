package api

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Response is a successful response, parsed according to its content type
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	// JSON is set when the body was served as application/json
	JSON  bool
	value any
}

func newResponse(status int, contentType string, body []byte) (*Response, error) {
	r := &Response{
		StatusCode:  status,
		ContentType: contentType,
		Body:        body,
		JSON:        strings.Contains(contentType, "application/json"),
	}
	if !r.JSON {
		r.value = string(body)
		return r, nil
	}
	if len(body) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(body, &r.value); err != nil {
		return nil, errors.Wrap(err, "failed to parse json response")
	}

	return r, nil
}

// Value returns the parsed JSON value, or the body text for other content types
func (r *Response) Value() any {
	return r.value
}

// Text returns the raw body
func (r *Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals a JSON body into v
func (r *Response) Decode(v any) error {
	if !r.JSON {
		return errors.Errorf("response is %q, not json", r.ContentType)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
