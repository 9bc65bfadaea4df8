package jimeng

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
)

// PlaceholderFallback answers with synthetic image URLs when the wrapped
// generator cannot reach the provider. It exists for offline runs and must be
// switched on explicitly.
type PlaceholderFallback struct {
	Generator
}

func NewPlaceholderFallback(next Generator) *PlaceholderFallback {
	return &PlaceholderFallback{Generator: next}
}

func (p *PlaceholderFallback) GenerateImages(ctx context.Context, req models.GenerationRequest) (*Result, error) {
	result, err := p.Generator.GenerateImages(ctx, req)
	var transportErr *TransportError
	if err == nil || !errors.As(err, &transportErr) {
		return result, err
	}

	log.FromContextOrDiscard(ctx).Warn("provider unreachable, returning placeholder images", "error", err)
	return PlaceholderResult(req), nil
}

// PlaceholderResult builds count fake remote descriptors for req.
func PlaceholderResult(req models.GenerationRequest) *Result {
	seed := req.Seed
	if seed == -1 {
		seed = rand.New(rand.NewSource(time.Now().UnixNano())).Int63n(1000000) + 1
	}
	data := make([]models.ImageData, req.Count)
	for i := range data {
		data[i] = models.ImageData{
			URL:  fmt.Sprintf("https://example.com/generated_image_%d.jpg", i),
			Seed: seed + int64(i),
		}
	}
	return &Result{Status: StatusSucceeded, Data: data}
}
