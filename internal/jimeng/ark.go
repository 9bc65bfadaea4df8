package jimeng

import (
	"context"
	"errors"
	"time"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
)

var errArkSynchronous = errors.New("ark backend returns images synchronously and has no task to poll")

// ArkGenerator talks to the same provider through the official Ark runtime
// SDK with an API key instead of the signed HMAC requests.
type ArkGenerator struct {
	client *arkruntime.Client
	model  string
}

var _ Generator = (*ArkGenerator)(nil)

func NewArkGenerator(apiKey, modelName string, opts ...arkruntime.ConfigOption) *ArkGenerator {
	return &ArkGenerator{
		client: arkruntime.NewClientWithApiKey(apiKey, opts...),
		model:  modelName,
	}
}

func (g *ArkGenerator) GenerateImages(ctx context.Context, req models.GenerationRequest) (*Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("ark").With("model", g.model, "count", req.Count)
	log.Info("requesting image generation via ark runtime")

	generateReq := model.GenerateImagesRequest{
		Model:          g.model,
		Prompt:         req.Prompt,
		Size:           volcengine.String(req.Size),
		ResponseFormat: volcengine.String(model.GenerateImagesResponseFormatURL),
		Watermark:      volcengine.Bool(req.Watermark),
		GuidanceScale:  volcengine.Float64(req.Scale),
	}
	if req.Seed >= 0 {
		generateReq.Seed = volcengine.Int64(req.Seed)
	}
	if req.Count > 1 {
		var sequential model.SequentialImageGeneration = "auto"
		maxImages := req.Count
		generateReq.SequentialImageGeneration = &sequential
		generateReq.SequentialImageGenerationOptions = &model.SequentialImageGenerationOptions{
			MaxImages: &maxImages,
		}
	}

	resp, err := g.client.GenerateImages(ctx, generateReq)
	if err != nil {
		return nil, &TransportError{Op: "generate images", Err: err}
	}
	if resp.Error != nil {
		return nil, &APIError{Op: "generate images", Message: resp.Error.Code + " " + resp.Error.Message}
	}

	result := &Result{Status: StatusSucceeded}
	for _, image := range resp.Data {
		if image == nil || image.Url == nil {
			continue
		}
		result.Data = append(result.Data, models.ImageData{URL: *image.Url})
	}

	log.Info("ark runtime returned images", "images", len(result.Data))
	return result, nil
}

func (g *ArkGenerator) WaitForResult(context.Context, string, time.Duration, time.Duration) (*Result, error) {
	return nil, errArkSynchronous
}
