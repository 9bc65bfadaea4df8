package supabase

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"jimeng-image-generator/internal/models"
)

// DatabaseClient stores the generation_tasks history in Postgres.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

func (d *DatabaseClient) CreateTask(ctx context.Context, record *models.TaskRecord) error {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO generation_tasks (id, task_dir, prompt, size, count, seed, scale, watermark, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, record.ID, record.TaskDir, record.Prompt, record.Size, record.Count,
		record.Seed, record.Scale, record.Watermark, record.Status,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (d *DatabaseClient) CompleteTask(ctx context.Context, taskID, status string, imageCount int, errMsg string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = $1, image_count = $2, error_message = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $4
	`, status, imageCount, errMsg, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetTask(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	var task models.TaskRecord
	err := d.db.QueryRowContext(ctx, `
		SELECT id, task_dir, prompt, size, count, seed, scale, watermark, status,
		       image_count, error_message, created_at, updated_at
		FROM generation_tasks
		WHERE id = $1
	`, taskID).Scan(
		&task.ID, &task.TaskDir, &task.Prompt, &task.Size, &task.Count, &task.Seed, &task.Scale,
		&task.Watermark, &task.Status, &task.ImageCount, &task.ErrorMessage, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (d *DatabaseClient) ListTasks(ctx context.Context, limit int) ([]models.TaskRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, task_dir, prompt, size, count, seed, scale, watermark, status,
		       image_count, error_message, created_at, updated_at
		FROM generation_tasks
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.TaskRecord{}
	for rows.Next() {
		var task models.TaskRecord
		err := rows.Scan(
			&task.ID, &task.TaskDir, &task.Prompt, &task.Size, &task.Count, &task.Seed, &task.Scale,
			&task.Watermark, &task.Status, &task.ImageCount, &task.ErrorMessage, &task.CreatedAt, &task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// Shutdown lets the injector close the pool.
func (d *DatabaseClient) Shutdown() error {
	return d.Close()
}
