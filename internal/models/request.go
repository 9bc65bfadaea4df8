package models

import "strings"

const (
	DefaultSize  = "2048x2048"
	DefaultCount = 1
	DefaultSeed  = int64(-1)
	DefaultScale = 0.5
)

// ValidSizes lists the output sizes accepted by the provider.
var ValidSizes = []string{"1024x1024", "1024x1792", "1792x1024", "2048x2048", "2560x1440", "1440x2560"}

// GenerationRequest is one validated-or-not request for a batch of images.
// Seed -1 leaves the choice of seed to the provider.
type GenerationRequest struct {
	Prompt    string  `json:"prompt" yaml:"prompt" validate:"required,max=500"`
	Size      string  `json:"size" yaml:"size" validate:"required,oneof=1024x1024 1024x1792 1792x1024 2048x2048 2560x1440 1440x2560"`
	Count     int     `json:"count" yaml:"count" validate:"min=1,max=10"`
	Seed      int64   `json:"seed" yaml:"seed" validate:"gte=-1"`
	Scale     float64 `json:"scale" yaml:"scale" validate:"gte=0,lte=1"`
	Watermark bool    `json:"watermark" yaml:"watermark"`
}

// NewGenerationRequest returns a request for prompt with every other field defaulted.
func NewGenerationRequest(prompt string) GenerationRequest {
	return GenerationRequest{
		Prompt:    strings.TrimSpace(prompt),
		Size:      DefaultSize,
		Count:     DefaultCount,
		Seed:      DefaultSeed,
		Scale:     DefaultScale,
		Watermark: true,
	}
}

// GenerateRequest is the body accepted by POST /generate. Pointer fields
// distinguish an omitted value (defaulted) from an explicit zero (validated).
type GenerateRequest struct {
	Prompt      string   `json:"prompt" example:"a red fox in the snow"`
	Size        string   `json:"size,omitempty" example:"1024x1024"`
	Count       *int     `json:"count,omitempty" example:"2"`
	Seed        *int64   `json:"seed,omitempty" example:"42"`
	Scale       *float64 `json:"scale,omitempty" example:"0.5"`
	NoWatermark bool     `json:"no_watermark,omitempty" example:"false"`
}

func (r GenerateRequest) ToGenerationRequest() GenerationRequest {
	req := NewGenerationRequest(r.Prompt)
	if r.Size != "" {
		req.Size = r.Size
	}
	if r.Count != nil {
		req.Count = *r.Count
	}
	if r.Seed != nil {
		req.Seed = *r.Seed
	}
	if r.Scale != nil {
		req.Scale = *r.Scale
	}
	req.Watermark = !r.NoWatermark
	return req
}
