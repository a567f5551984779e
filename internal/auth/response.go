package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/savaki/ovhcloud-oauth2/internal/errors"
)

// ParseResponseBody decodes a provider response body that must be an object.
// Form encoded bodies are recognised by their content type; anything else must
// be a JSON object. An empty body decodes to an empty map.
func ParseResponseBody(resp *http.Response, body []byte) (map[string]any, error) {
	value, err := decodeResponseBody(resp, body)
	if err != nil {
		return nil, err
	}
	data, ok := value.(map[string]any)
	if !ok {
		return nil, &errors.ParseError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Err:         fmt.Errorf("body is not a JSON object"),
		}
	}
	return data, nil
}

// decodeResponseBody decodes any JSON value. Numbers are kept as json.Number.
func decodeResponseBody(resp *http.Response, body []byte) (any, error) {
	contentType := resp.Header.Get("Content-Type")
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	if isFormEncoded(contentType) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, &errors.ParseError{StatusCode: resp.StatusCode, ContentType: contentType, Err: err}
		}
		data := make(map[string]any, len(values))
		for key, vs := range values {
			if len(vs) == 1 {
				data[key] = vs[0]
			} else {
				data[key] = vs
			}
		}
		return data, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, &errors.ParseError{StatusCode: resp.StatusCode, ContentType: contentType, Err: err}
	}
	return value, nil
}

func isFormEncoded(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "urlencoded")
	}
	return strings.Contains(mediaType, "urlencoded")
}

// validatingTransport runs every response through Provider.ValidateResponse
// before the generic OAuth2 client sees it. Rejected responses are returned
// as errors and their bodies are never handed to token parsing. Arrays and
// scalars are validated as an empty object and passed through unchanged.
type validatingTransport struct {
	provider Provider
	base     http.RoundTripper
}

func (t *validatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	value, err := decodeResponseBody(resp, body)
	if err != nil {
		if resp.StatusCode < http.StatusBadRequest {
			return nil, err
		}
		// keep the status classification even when the error page is not JSON
		verr := t.provider.ValidateResponse(resp, map[string]any{})
		if verr == nil {
			return nil, err
		}
		if clientErr, ok := verr.(*errors.ClientError); ok {
			clientErr.RawBody = string(body)
		}
		return nil, verr
	}

	data, ok := value.(map[string]any)
	if !ok {
		data = map[string]any{}
	}
	if err := t.provider.ValidateResponse(resp, data); err != nil {
		if clientErr, isClientErr := err.(*errors.ClientError); isClientErr && !ok {
			clientErr.RawBody = string(body)
		}
		return nil, err
	}
	return resp, nil
}
