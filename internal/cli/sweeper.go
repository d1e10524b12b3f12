package cli

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"skillzone-service/internal/app"
)

// startSweeper closes overdue attempts on a fixed interval. Runs never
// overlap; a slow sweep skips the next tick.
func startSweeper(svc *app.QuizService, interval time.Duration, log logrus.FieldLogger) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		closed, err := svc.ExpireOverdue(ctx)
		if err != nil {
			log.WithError(err).Error("expiry sweep failed")
			return
		}
		if closed > 0 {
			log.WithField("closed", closed).Info("expired overdue attempts")
		}
	})
	if err != nil {
		return nil, err
	}
	s.StartAsync()
	return s, nil
}
