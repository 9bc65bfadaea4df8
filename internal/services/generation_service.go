package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"jimeng-image-generator/internal/jimeng"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/storage"
	"jimeng-image-generator/internal/supabase"
)

const DefaultListLimit = 50

var (
	ErrHistoryDisabled = errors.New("task history is not configured")
	ErrNothingSaved    = errors.New("no images could be saved")
	ErrTaskNotFound    = errors.New("task not found")
)

// TaskHistory persists one row per generation invocation.
type TaskHistory interface {
	CreateTask(ctx context.Context, record *models.TaskRecord) error
	CompleteTask(ctx context.Context, taskID, status string, imageCount int, errMsg string) error
	GetTask(ctx context.Context, taskID string) (*models.TaskRecord, error)
	ListTasks(ctx context.Context, limit int) ([]models.TaskRecord, error)
}

// Mirror copies saved images to remote storage. Mirrored task directories
// are removed together with their local copy.
type Mirror interface {
	UploadFile(taskDir, filename string, data []byte) (string, string, error)
	DeleteTaskFiles(taskDir string) error
}

// EventPublisher announces task lifecycle changes.
type EventPublisher interface {
	PublishTaskEvent(taskID, event string, payload map[string]interface{}) error
}

type GenerationService struct {
	generator    jimeng.Generator
	saver        *storage.ImageSaver
	outputs      *storage.OutputStore
	pollTimeout  time.Duration
	pollInterval time.Duration

	history TaskHistory
	mirror  Mirror
	events  EventPublisher
	now     func() time.Time
}

type Option func(*GenerationService)

func WithHistory(history TaskHistory) Option {
	return func(s *GenerationService) { s.history = history }
}

func WithMirror(mirror Mirror) Option {
	return func(s *GenerationService) { s.mirror = mirror }
}

func WithEvents(events EventPublisher) Option {
	return func(s *GenerationService) { s.events = events }
}

func WithClock(now func() time.Time) Option {
	return func(s *GenerationService) { s.now = now }
}

func NewGenerationService(
	generator jimeng.Generator,
	saver *storage.ImageSaver,
	outputs *storage.OutputStore,
	pollTimeout, pollInterval time.Duration,
	opts ...Option,
) *GenerationService {
	s := &GenerationService{
		generator:    generator,
		saver:        saver,
		outputs:      outputs,
		pollTimeout:  pollTimeout,
		pollInterval: pollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GenerationService) Validate(req models.GenerationRequest) error {
	return Validate(req)
}

// Generate runs one invocation: validate, call the provider (polling when the
// task is asynchronous), save every usable image into a fresh task directory
// and report what was written. Fewer files than requested is not an error.
func (s *GenerationService) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	task, err := s.outputs.CreateTask(s.now(), &req)
	if err != nil {
		return nil, err
	}

	logger := log.FromContextOrDiscard(ctx).With("task_id", task.TaskID)
	ctx = log.NewContext(ctx, logger)
	log := logger.WithGroup("generation")
	log.Info("generation started", "dir", task.Dir, "count", req.Count, "size", req.Size)

	s.recordStart(ctx, task, req)

	result, err := s.generator.GenerateImages(ctx, req)
	if err != nil {
		s.recordFailure(ctx, task, models.TaskStatusFailed, err)
		return nil, err
	}

	if pendingID := result.PendingTaskID(); pendingID != "" {
		log.Info("waiting for asynchronous task", "provider_task_id", pendingID)
		result, err = s.generator.WaitForResult(ctx, pendingID, s.pollTimeout, s.pollInterval)
		if err != nil {
			s.recordFailure(ctx, task, models.TaskStatusFailed, err)
			return nil, err
		}
	}

	if err := resultError(result); err != nil {
		status := lo.Ternary(result != nil && result.Status == jimeng.StatusTimeout, models.TaskStatusTimeout, models.TaskStatusFailed)
		s.recordFailure(ctx, task, status, err)
		return nil, err
	}

	files := s.saver.SaveAll(ctx, task.Dir, result.Data, func(path string) {
		if err := s.outputs.Record(task, path); err != nil {
			log.Warn("failed to update manifest", "path", path, "error", err)
		}
		s.mirrorFile(ctx, task, path)
	})

	if len(files) == 0 {
		s.recordFailure(ctx, task, models.TaskStatusFailed, ErrNothingSaved)
		return nil, ErrNothingSaved
	}

	s.recordSuccess(ctx, task, len(files))
	if len(files) < req.Count {
		log.Warn("fewer images saved than requested", "requested", req.Count, "saved", len(files))
	}

	return &models.GenerationResult{
		TaskID:    task.TaskID,
		Timestamp: task.Timestamp,
		Dir:       task.Dir,
		Files:     files,
		Images:    lo.Map(files, func(p string, _ int) string { return task.DirName() + "/" + filepath.Base(p) }),
		Requested: req.Count,
		Count:     len(files),
	}, nil
}

// ListOutputs returns the most recent task directories that contain images.
func (s *GenerationService) ListOutputs(limit int) ([]models.TaskSummary, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.outputs.ListTasks(limit)
}

// ResolveOutput maps a listed image back onto its file.
func (s *GenerationService) ResolveOutput(dirName, fileName string) (string, error) {
	return s.outputs.Resolve(dirName, fileName)
}

// History returns recorded tasks, newest first.
func (s *GenerationService) History(ctx context.Context, limit int) ([]models.TaskRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.history.ListTasks(ctx, limit)
}

// Task returns one recorded task by id.
func (s *GenerationService) Task(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	record, err := s.history.GetTask(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return record, err
}

// Cleanup removes task directories older than maxAge, along with their
// mirrored copies. Mirror failures are logged and do not fail the sweep.
func (s *GenerationService) Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error) {
	log := log.FromContextOrDiscard(ctx)

	removed, err := s.outputs.Cleanup(maxAge, s.now())
	if len(removed) > 0 {
		log.Info("removed expired outputs", "count", len(removed), "dirs", removed)
	}
	if s.mirror != nil {
		for _, dir := range removed {
			if err := s.mirror.DeleteTaskFiles(dir); err != nil {
				log.Warn("failed to remove mirrored outputs", "dir", dir, "error", err)
			}
		}
	}
	return removed, err
}

func resultError(result *jimeng.Result) error {
	switch {
	case result == nil:
		return &jimeng.APIError{Op: "generate images", Message: "empty response"}
	case result.Status == jimeng.StatusFailed || result.Status == jimeng.StatusTimeout:
		msg := lo.Ternary(result.ErrorMessage() != "", result.ErrorMessage(), "task "+result.Status)
		return &jimeng.APIError{Op: "generate images", Message: msg}
	case len(result.Data) == 0:
		return &jimeng.APIError{Op: "generate images", Message: "response contains no image data"}
	}
	return nil
}

func (s *GenerationService) mirrorFile(ctx context.Context, task *models.OutputTask, path string) {
	if s.mirror == nil {
		return
	}
	log := log.FromContextOrDiscard(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("failed to read image for mirroring", "path", path, "error", err)
		return
	}
	if _, url, err := s.mirror.UploadFile(task.DirName(), filepath.Base(path), data); err != nil {
		log.Warn("failed to mirror image", "path", path, "error", err)
	} else {
		log.Debug("image mirrored", "url", url)
	}
}

func (s *GenerationService) recordStart(ctx context.Context, task *models.OutputTask, req models.GenerationRequest) {
	log := log.FromContextOrDiscard(ctx)

	if s.history != nil {
		record := &models.TaskRecord{
			ID:        task.TaskID,
			TaskDir:   task.DirName(),
			Prompt:    req.Prompt,
			Size:      req.Size,
			Count:     req.Count,
			Seed:      req.Seed,
			Scale:     req.Scale,
			Watermark: req.Watermark,
			Status:    models.TaskStatusPending,
		}
		if err := s.history.CreateTask(ctx, record); err != nil {
			log.Warn("failed to record task", "error", err)
		}
	}
	s.publish(ctx, task.TaskID, supabase.EventTaskStarted, supabase.TaskStartedPayload(task.TaskID, req.Prompt, req.Count))
}

func (s *GenerationService) recordSuccess(ctx context.Context, task *models.OutputTask, saved int) {
	log := log.FromContextOrDiscard(ctx)

	if err := s.outputs.Finish(task, models.TaskStatusSucceeded, ""); err != nil {
		log.Warn("failed to update manifest", "error", err)
	}
	if s.history != nil {
		if err := s.history.CompleteTask(ctx, task.TaskID, models.TaskStatusSucceeded, saved, ""); err != nil {
			log.Warn("failed to complete task record", "error", err)
		}
	}
	s.publish(ctx, task.TaskID, supabase.EventTaskCompleted, supabase.TaskCompletedPayload(task.TaskID, task.DirName(), saved))
	log.Info("generation completed", "saved", saved)
}

func (s *GenerationService) recordFailure(ctx context.Context, task *models.OutputTask, status string, cause error) {
	log := log.FromContextOrDiscard(ctx)
	log.Error("generation failed", "status", status, "error", cause)

	if err := s.outputs.Finish(task, status, cause.Error()); err != nil {
		log.Warn("failed to update manifest", "error", err)
	}
	if s.history != nil {
		if err := s.history.CompleteTask(ctx, task.TaskID, status, 0, cause.Error()); err != nil {
			log.Warn("failed to complete task record", "error", err)
		}
	}
	s.publish(ctx, task.TaskID, supabase.EventTaskFailed, supabase.TaskFailedPayload(task.TaskID, status, cause.Error()))
}

func (s *GenerationService) publish(ctx context.Context, taskID, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTaskEvent(taskID, event, payload); err != nil {
		log.FromContextOrDiscard(ctx).Warn("failed to publish task event", "event", event, "error", fmt.Errorf("publish %s: %w", event, err))
	}
}
