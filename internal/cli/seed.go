package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"skillzone-service/internal/app"
	"skillzone-service/internal/config"
	"skillzone-service/internal/domain"
	"skillzone-service/internal/infra/memory"
	infraredis "skillzone-service/internal/infra/redis"
)

// NewSeedCmd imports a YAML catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import courses, lessons and quizzes from a YAML catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if file == "" {
				file = cfg.Catalog.Path
			}
			if file == "" {
				return fmt.Errorf("no catalog file: pass --file or set catalog.path")
			}
			log := newLogger(cfg)

			content, err := memory.ReadCatalogFile(file)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}
			infra, err := buildAdapters(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer infra.Close()

			if err := importCatalog(cmd.Context(), infra.pgLoader, infra.catalog, content); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"courses": len(content.Courses),
				"lessons": len(content.Lessons),
				"quizzes": len(content.Quizzes),
			}).Info("catalog imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML catalog to import (defaults to catalog.path)")
	return cmd
}

type catalogImporter interface {
	Import(ctx context.Context, courses []domain.Course, lessons []domain.Lesson, quizzes []domain.Quiz) error
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// importCatalog writes content to the system of record, then drops every
// imported item from a shared cache.
func importCatalog(ctx context.Context, dst catalogImporter, cache app.Catalog, content memory.CatalogContent) error {
	if err := dst.Import(ctx, content.Courses, content.Lessons, content.Quizzes); err != nil {
		return err
	}
	inv, ok := cache.(catalogInvalidator)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(content.Courses)+len(content.Lessons)+len(content.Quizzes))
	for _, c := range content.Courses {
		keys = append(keys, infraredis.CourseKey(c.ID))
	}
	for _, l := range content.Lessons {
		// A course caches the lessons that name it.
		keys = append(keys, infraredis.LessonKey(l.ID), infraredis.CourseKey(l.CourseID))
	}
	for _, q := range content.Quizzes {
		keys = append(keys, infraredis.QuizKey(q.ID))
	}
	if err := inv.Invalidate(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}
