package inject

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do"
	"jimeng-image-generator/internal/config"
	"jimeng-image-generator/internal/database"
	"jimeng-image-generator/internal/handlers"
	"jimeng-image-generator/internal/jimeng"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/services"
	"jimeng-image-generator/internal/storage"
	"jimeng-image-generator/internal/supabase"
)

// Setup registers every component both entry points need. Optional
// integrations (database history, Supabase mirror and events) are only
// attached to the service when their configuration is present.
func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Config](injector, cfg)
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: cfg.HTTPTimeout})

	do.Provide[jimeng.Generator](injector, newGenerator)
	do.Provide[*storage.ImageSaver](injector, func(i *do.Injector) (*storage.ImageSaver, error) {
		return storage.NewImageSaver(do.MustInvoke[*http.Client](i)), nil
	})
	do.Provide[*storage.OutputStore](injector, func(i *do.Injector) (*storage.OutputStore, error) {
		return storage.NewOutputStore(cfg.OutputDir), nil
	})

	do.Provide[*supabase.DatabaseClient](injector, func(i *do.Injector) (*supabase.DatabaseClient, error) {
		db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.NewMigrator(db.DB()).Run(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return db, nil
	})
	do.Provide[*supabase.Client](injector, func(i *do.Injector) (*supabase.Client, error) {
		return supabase.NewClient(cfg)
	})
	do.Provide[*supabase.StorageClient](injector, func(i *do.Injector) (*supabase.StorageClient, error) {
		return supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket), nil
	})
	do.Provide[*supabase.RealtimeClient](injector, func(i *do.Injector) (*supabase.RealtimeClient, error) {
		client, err := do.Invoke[*supabase.Client](i)
		if err != nil {
			return nil, err
		}
		return supabase.NewRealtimeClient(client.Supabase), nil
	})

	do.Provide[*services.GenerationService](injector, func(i *do.Injector) (*services.GenerationService, error) {
		return services.NewGenerationService(
			do.MustInvoke[jimeng.Generator](i),
			do.MustInvoke[*storage.ImageSaver](i),
			do.MustInvoke[*storage.OutputStore](i),
			cfg.PollTimeout,
			cfg.PollInterval,
			serviceOptions(ctx, i, cfg)...,
		), nil
	})

	do.Provide[*handlers.GenerateHandler](injector, func(i *do.Injector) (*handlers.GenerateHandler, error) {
		return handlers.NewGenerateHandler(do.MustInvoke[*services.GenerationService](i)), nil
	})
	do.Provide[*handlers.OutputsHandler](injector, func(i *do.Injector) (*handlers.OutputsHandler, error) {
		return handlers.NewOutputsHandler(do.MustInvoke[*services.GenerationService](i)), nil
	})
	do.Provide[*handlers.TasksHandler](injector, func(i *do.Injector) (*handlers.TasksHandler, error) {
		return handlers.NewTasksHandler(do.MustInvoke[*services.GenerationService](i)), nil
	})

	return injector
}

func newGenerator(i *do.Injector) (jimeng.Generator, error) {
	cfg := do.MustInvoke[*config.Config](i)

	var generator jimeng.Generator
	switch cfg.Backend {
	case config.BackendArk:
		generator = jimeng.NewArkGenerator(cfg.ArkAPIKey, cfg.ArkModel)
	default:
		generator = jimeng.NewClient(cfg.APIBaseURL, cfg.AccessKey, cfg.SecretKey,
			jimeng.WithModel(cfg.Model),
			jimeng.WithUserAgent(cfg.UserAgent),
			jimeng.WithHTTPClient(do.MustInvoke[*http.Client](i)),
		)
	}

	if cfg.PlaceholderOnFailure {
		generator = jimeng.NewPlaceholderFallback(generator)
	}
	return generator, nil
}

// serviceOptions attaches the optional integrations. One that fails to start
// is logged and left out.
func serviceOptions(ctx context.Context, i *do.Injector, cfg *config.Config) []services.Option {
	log := log.FromContextOrDiscard(ctx)
	var opts []services.Option

	if cfg.DatabaseURL != "" {
		if db, err := do.Invoke[*supabase.DatabaseClient](i); err != nil {
			log.Warn("task history disabled", "error", err)
		} else {
			opts = append(opts, services.WithHistory(db))
		}
	}

	if cfg.SupabaseEnabled() {
		opts = append(opts, services.WithMirror(do.MustInvoke[*supabase.StorageClient](i)))
		if events, err := do.Invoke[*supabase.RealtimeClient](i); err != nil {
			log.Warn("task events disabled", "error", err)
		} else {
			opts = append(opts, services.WithEvents(events))
		}
	}

	return opts
}
