package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
)

const fileTimestampLayout = "20060102_150405"

// ImageSaver writes provider images into a task directory. Every item is
// handled independently: a bad item is logged and skipped.
type ImageSaver struct {
	httpClient *http.Client
	now        func() time.Time
}

func NewImageSaver(httpClient *http.Client) *ImageSaver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ImageSaver{httpClient: httpClient, now: time.Now}
}

// SaveFromBase64 decodes the inline data of each item. Items without inline
// data are skipped.
func (s *ImageSaver) SaveFromBase64(ctx context.Context, dir string, images []models.ImageData) []string {
	return s.save(ctx, dir, images, models.DescriptorInline, nil)
}

// SaveFromURL downloads each item's URL. Items without a usable http(s) URL
// are skipped, as are items that also carry inline data, since inline data
// takes precedence in an item's descriptor.
func (s *ImageSaver) SaveFromURL(ctx context.Context, dir string, images []models.ImageData) []string {
	return s.save(ctx, dir, images, models.DescriptorRemote, nil)
}

// SaveAll handles each item according to its descriptor kind and calls
// onSaved after every successful write.
func (s *ImageSaver) SaveAll(ctx context.Context, dir string, images []models.ImageData, onSaved func(path string)) []string {
	return s.save(ctx, dir, images, models.DescriptorNone, onSaved)
}

// save processes images in order. only restricts the accepted kind; DescriptorNone accepts both.
func (s *ImageSaver) save(ctx context.Context, dir string, images []models.ImageData, only models.DescriptorKind, onSaved func(string)) []string {
	log := log.FromContextOrDiscard(ctx).WithGroup("saver").With("dir", dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error("failed to create output directory", "error", err)
		return nil
	}

	timestamp := s.now().Format(fileTimestampLayout)
	saved := make([]string, 0, len(images))

	for i, image := range images {
		desc := image.Descriptor()
		if desc.Kind == models.DescriptorNone || (only != models.DescriptorNone && desc.Kind != only) {
			log.Warn("no usable image data, skipping", "index", i, "kind", desc.Kind.String())
			continue
		}

		path := filepath.Join(dir, ImageFileName(timestamp, i))
		if err := s.saveOne(ctx, desc, path); err != nil {
			log.Error("failed to save image", "index", i, "kind", desc.Kind.String(), "error", err)
			continue
		}

		log.Info("image saved", "index", i, "path", path)
		saved = append(saved, path)
		if onSaved != nil {
			onSaved(path)
		}
	}

	return saved
}

func (s *ImageSaver) saveOne(ctx context.Context, desc models.ImageDescriptor, path string) error {
	var data []byte
	var err error
	switch desc.Kind {
	case models.DescriptorInline:
		data, err = base64.StdEncoding.DecodeString(desc.Base64)
		if err != nil {
			return fmt.Errorf("failed to decode base64: %w", err)
		}
	case models.DescriptorRemote:
		data, err = s.download(ctx, desc.URL)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported descriptor kind %s", desc.Kind)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func (s *ImageSaver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// ImageFileName is image_<timestamp>_<index>.jpg.
func ImageFileName(timestamp string, index int) string {
	return fmt.Sprintf("image_%s_%d.jpg", timestamp, index)
}
