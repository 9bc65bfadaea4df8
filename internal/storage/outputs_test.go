package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOutputStore_CreateTask_SameSecondNoCollision(t *testing.T) {
	store := storage.NewOutputStore(t.TempDir())
	now := time.Date(2025, 9, 1, 8, 30, 0, 0, time.Local)

	first, err := store.CreateTask(now, nil)
	require.NoError(t, err)
	second, err := store.CreateTask(now, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.NotEqual(t, first.TaskID, second.TaskID)
	assert.NotEqual(t, first.Dir, second.Dir)
	assert.Len(t, first.TaskID, 8)
	assert.Equal(t, "20250901_083000_"+first.TaskID, filepath.Base(first.Dir))
	assert.DirExists(t, first.Dir)
	assert.DirExists(t, second.Dir)
}

func TestOutputStore_RecordUpdatesManifest(t *testing.T) {
	store := storage.NewOutputStore(t.TempDir())
	req := models.NewGenerationRequest("a red fox")

	task, err := store.CreateTask(time.Now(), &req)
	require.NoError(t, err)

	manifest, err := store.LoadManifest(task.DirName())
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, manifest.Status)
	assert.Empty(t, manifest.Files)
	assert.Equal(t, "a red fox", manifest.Request.Prompt)

	path := filepath.Join(task.Dir, "image_x_0.jpg")
	writeFile(t, path, "img")
	require.NoError(t, store.Record(task, path))
	require.NoError(t, store.Finish(task, models.TaskStatusSucceeded, ""))

	manifest, err = store.LoadManifest(task.DirName())
	require.NoError(t, err)
	assert.Equal(t, []string{"image_x_0.jpg"}, manifest.Files)
	assert.Equal(t, models.TaskStatusSucceeded, manifest.Status)
	assert.Equal(t, []string{path}, task.Files)
}

func TestOutputStore_ListTasks(t *testing.T) {
	root := t.TempDir()
	store := storage.NewOutputStore(root)

	writeFile(t, filepath.Join(root, "20250101_100000_aaaaaaaa", "image_20250101_100000_0.jpg"), "a")
	writeFile(t, filepath.Join(root, "20250301_100000_cccccccc", "image_20250301_100000_1.png"), "c")
	writeFile(t, filepath.Join(root, "20250301_100000_cccccccc", "image_20250301_100000_0.jpg"), "c")
	writeFile(t, filepath.Join(root, "20250201_100000_bbbbbbbb", "image_20250201_100000_0.JPEG"), "b")
	writeFile(t, filepath.Join(root, "20250401_100000_dddddddd", "notes.txt"), "no images")
	writeFile(t, filepath.Join(root, "stray.jpg"), "not a task")

	tasks, err := store.ListTasks(50)
	require.NoError(t, err)

	require.Len(t, tasks, 3)
	assert.Equal(t, "20250301_100000_cccccccc", tasks[0].TaskDir)
	assert.Equal(t, "20250201_100000_bbbbbbbb", tasks[1].TaskDir)
	assert.Equal(t, "20250101_100000_aaaaaaaa", tasks[2].TaskDir)

	assert.Equal(t, "20250301_100000", tasks[0].Timestamp)
	assert.Equal(t, "cccccccc", tasks[0].TaskID)
	assert.Equal(t, 2, tasks[0].Count)
	assert.Equal(t, []string{
		"20250301_100000_cccccccc/image_20250301_100000_0.jpg",
		"20250301_100000_cccccccc/image_20250301_100000_1.png",
	}, tasks[0].Images)
	assert.Equal(t, "2025-03-01 10:00:00", tasks[0].Date)
}

func TestOutputStore_ListTasks_Cap(t *testing.T) {
	root := t.TempDir()
	store := storage.NewOutputStore(root)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	for i := 0; i < 55; i++ {
		name := base.Add(time.Duration(i)*time.Minute).Format("20060102_150405") + "_task"
		writeFile(t, filepath.Join(root, name, "image_0.jpg"), "x")
	}

	tasks, err := store.ListTasks(50)
	require.NoError(t, err)

	assert.Len(t, tasks, 50)
	assert.Equal(t, "20250101_005400_task", tasks[0].TaskDir)
}

func TestOutputStore_ListTasks_MissingRoot(t *testing.T) {
	store := storage.NewOutputStore(filepath.Join(t.TempDir(), "missing"))

	tasks, err := store.ListTasks(50)

	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOutputStore_Resolve(t *testing.T) {
	root := t.TempDir()
	store := storage.NewOutputStore(root)
	writeFile(t, filepath.Join(root, "20250101_100000_aaaaaaaa", "image_0.jpg"), "a")

	path, err := store.Resolve("20250101_100000_aaaaaaaa", "image_0.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "20250101_100000_aaaaaaaa", "image_0.jpg"), path)

	invalid := [][2]string{
		{"..", "image_0.jpg"},
		{"20250101_100000_aaaaaaaa", ".."},
		{"20250101_100000_aaaaaaaa", "../image_0.jpg"},
		{"a/b", "image_0.jpg"},
		{"", "image_0.jpg"},
		{"20250101_100000_aaaaaaaa", "task.yaml"},
		{"20250101_100000_aaaaaaaa", "missing.jpg"},
	}
	for _, p := range invalid {
		_, err := store.Resolve(p[0], p[1])
		assert.ErrorIs(t, err, storage.ErrInvalidPath, "%s/%s", p[0], p[1])
	}
}

func TestOutputStore_Cleanup(t *testing.T) {
	root := t.TempDir()
	store := storage.NewOutputStore(root)
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.Local)

	old, err := store.CreateTask(now.Add(-8*24*time.Hour), nil)
	require.NoError(t, err)
	recent, err := store.CreateTask(now.Add(-time.Hour), nil)
	require.NoError(t, err)

	removed, err := store.Cleanup(7*24*time.Hour, now)
	require.NoError(t, err)

	assert.Equal(t, []string{old.DirName()}, removed)
	assert.NoDirExists(t, old.Dir)
	assert.DirExists(t, recent.Dir)
}
