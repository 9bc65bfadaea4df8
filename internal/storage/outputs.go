package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
	"jimeng-image-generator/internal/models"
)

const (
	manifestName    = "task.yaml"
	dateLayout      = "2006-01-02 15:04:05"
	manifestVersion = "1.0"
	taskIDLength    = 8
)

var ErrInvalidPath = errors.New("invalid output path")

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// Manifest is the task.yaml written inside every task directory.
type Manifest struct {
	Version   string                    `yaml:"version"`
	TaskID    string                    `yaml:"task_id"`
	Timestamp string                    `yaml:"timestamp"`
	CreatedAt time.Time                 `yaml:"created_at"`
	Status    string                    `yaml:"status"`
	Request   *models.GenerationRequest `yaml:"request,omitempty"`
	Files     []string                  `yaml:"files"`
	Error     string                    `yaml:"error,omitempty"`
}

// OutputStore owns the output root: one directory per generation invocation.
type OutputStore struct {
	root string
	mu   sync.Mutex
}

func NewOutputStore(root string) *OutputStore {
	return &OutputStore{root: root}
}

// CreateTask creates <root>/<timestamp>_<id> with a fresh 8 character id and
// writes its initial manifest.
func (s *OutputStore) CreateTask(now time.Time, req *models.GenerationRequest) (*models.OutputTask, error) {
	for attempt := 0; attempt < 5; attempt++ {
		task := &models.OutputTask{
			TaskID:    uuid.New().String()[:taskIDLength],
			Timestamp: now.Format(fileTimestampLayout),
			CreatedAt: now,
		}
		task.Dir = filepath.Join(s.root, task.DirName())

		if err := os.MkdirAll(s.root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output root: %w", err)
		}
		if err := os.Mkdir(task.Dir, 0755); err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to create task directory: %w", err)
		}

		manifest := &Manifest{
			Version:   manifestVersion,
			TaskID:    task.TaskID,
			Timestamp: task.Timestamp,
			CreatedAt: now,
			Status:    models.TaskStatusPending,
			Request:   req,
			Files:     []string{},
		}
		if err := writeManifest(task.Dir, manifest); err != nil {
			return nil, err
		}
		return task, nil
	}
	return nil, fmt.Errorf("failed to allocate a unique task directory under %s", s.root)
}

// Record appends a saved file to the task and rewrites its manifest.
func (s *OutputStore) Record(task *models.OutputTask, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Files = append(task.Files, path)
	return s.updateManifest(task, func(m *Manifest) {
		m.Files = lo.Map(task.Files, func(p string, _ int) string { return filepath.Base(p) })
	})
}

// Finish stores the final status of the task.
func (s *OutputStore) Finish(task *models.OutputTask, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateManifest(task, func(m *Manifest) {
		m.Status = status
		m.Error = errMsg
	})
}

func (s *OutputStore) updateManifest(task *models.OutputTask, mutate func(*Manifest)) error {
	manifest, err := readManifest(task.Dir)
	if err != nil {
		manifest = &Manifest{
			Version:   manifestVersion,
			TaskID:    task.TaskID,
			Timestamp: task.Timestamp,
			CreatedAt: task.CreatedAt,
		}
	}
	mutate(manifest)
	return writeManifest(task.Dir, manifest)
}

// LoadManifest reads the manifest of the task directory dirName.
func (s *OutputStore) LoadManifest(dirName string) (*Manifest, error) {
	if !isPlainName(dirName) {
		return nil, ErrInvalidPath
	}
	return readManifest(filepath.Join(s.root, dirName))
}

type taskEntry struct {
	summary models.TaskSummary
	created time.Time
}

// ListTasks returns task directories containing at least one image, most
// recent first, capped at limit when limit > 0.
func (s *OutputStore) ListTasks(limit int) ([]models.TaskSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.TaskSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	tasks := make([]taskEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		images, err := listImages(filepath.Join(s.root, name))
		if err != nil || len(images) == 0 {
			continue
		}

		created := s.createdAt(name, entry)
		timestamp, taskID := splitDirName(name)
		tasks = append(tasks, taskEntry{
			summary: models.TaskSummary{
				TaskDir:   name,
				Timestamp: timestamp,
				TaskID:    taskID,
				Images:    lo.Map(images, func(img string, _ int) string { return name + "/" + img }),
				Count:     len(images),
				Date:      created.Format(dateLayout),
			},
			created: created,
		})
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].created.Equal(tasks[j].created) {
			return tasks[i].created.After(tasks[j].created)
		}
		return tasks[i].summary.TaskDir > tasks[j].summary.TaskDir
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return lo.Map(tasks, func(t taskEntry, _ int) models.TaskSummary { return t.summary }), nil
}

// Resolve maps "<dir>/<file>" onto an image inside the output root. Anything
// other than two plain path elements naming an image is rejected.
func (s *OutputStore) Resolve(dirName, fileName string) (string, error) {
	if !isPlainName(dirName) || !isPlainName(fileName) || !isImageName(fileName) {
		return "", ErrInvalidPath
	}
	path := filepath.Join(s.root, dirName, fileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidPath, dirName, fileName)
	}
	return path, nil
}

// Cleanup removes task directories created more than maxAge before now.
func (s *OutputStore) Cleanup(maxAge time.Duration, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var removed []string
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if now.Sub(s.createdAt(entry.Name(), entry)) <= maxAge {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
			continue
		}
		removed = append(removed, entry.Name())
	}
	return removed, errors.Join(errs...)
}

// createdAt prefers the manifest, then the timestamp in the directory name,
// then the directory mtime.
func (s *OutputStore) createdAt(name string, entry os.DirEntry) time.Time {
	if manifest, err := readManifest(filepath.Join(s.root, name)); err == nil && !manifest.CreatedAt.IsZero() {
		return manifest.CreatedAt
	}
	timestamp, _ := splitDirName(name)
	if t, err := time.ParseInLocation(fileTimestampLayout, timestamp, time.Local); err == nil {
		return t
	}
	if info, err := entry.Info(); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

// splitDirName splits "<date>_<time>_<id>" into timestamp and id. Names
// without an underscore yield "unknown" for both parts.
func splitDirName(name string) (string, string) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 {
		return "unknown", "unknown"
	}
	return name[:idx], name[idx+1:]
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	images := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && isImageName(e.Name())
	})
	sort.Strings(images)
	return images, nil
}

func isImageName(name string) bool {
	return lo.Contains(imageExtensions, strings.ToLower(filepath.Ext(name)))
}

func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &manifest, nil
}

func writeManifest(dir string, manifest *Manifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0644); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}
