package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"

	"houzel-server/internal/config"
	"houzel-server/internal/domain/title"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/utils/platformerrors"
)

const CronJobTimeout = 5 * time.Minute

// Crontab runs the periodic title sweep, picking up chats whose stream
// disconnected before detached titling could finish.
type Crontab struct {
	ctab         *crontab.Crontab
	titleService *title.TitleService
}

func NewCrontab(titleService *title.TitleService) *Crontab {
	return &Crontab{
		ctab:         crontab.New(),
		titleService: titleService,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	cfg := config.GetGlobal()
	if cfg != nil && cfg.TitleSweepEnabled {
		schedule := cfg.TitleSweepSchedule
		if err := c.ctab.AddJob(schedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
			defer cancel()
			c.titleService.SweepPlaceholders(jobCtx)
		}); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add title sweep job")
		}
		log.Info().Str("schedule", schedule).Msg("Title sweep scheduled")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}
