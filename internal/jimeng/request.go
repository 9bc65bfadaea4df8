package jimeng

import (
	"encoding/json"
	"fmt"
	"net/http"

	"jimeng-image-generator/internal/models"
)

// GenerateImagesPayload is the JSON body of POST /images/generations.
type GenerateImagesPayload struct {
	Model     string  `json:"model"`
	Prompt    string  `json:"prompt"`
	Size      string  `json:"size"`
	N         int     `json:"n"`
	Seed      int64   `json:"seed"`
	CfgScale  float64 `json:"cfg_scale"`
	Watermark bool    `json:"watermark"`
}

func newPayload(model string, req models.GenerationRequest) GenerateImagesPayload {
	return GenerateImagesPayload{
		Model:     model,
		Prompt:    req.Prompt,
		Size:      req.Size,
		N:         req.Count,
		Seed:      req.Seed,
		CfgScale:  req.Scale,
		Watermark: req.Watermark,
	}
}

// SignedRequest is a fully prepared request; it is discarded after use.
type SignedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// BuildRequest prepares a signed request. A nil payload produces an empty body.
func (c *Client) BuildRequest(method, path string, payload any) (*SignedRequest, error) {
	headers := map[string]string{
		HeaderContentType: "application/json",
		HeaderUserAgent:   c.userAgent,
		HeaderDate:        c.now().UTC().Format(http.TimeFormat),
	}

	body := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = string(data)
	}

	signature := Sign(method, path, headers, c.secretKey)
	headers[HeaderAuthorization] = Authorization(c.accessKey, signature)

	return &SignedRequest{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    body,
	}, nil
}
