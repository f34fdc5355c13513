package cron

import (
	"context"
	"encoding/json"
	"time"

	"tutorly/config"
	sessionRepo "tutorly/database/repository/session"
	"tutorly/services/booking"
	"tutorly/utils"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// InitSyncWorker runs the asynq worker that retries failed calendar
// mirroring in the background.
func InitSyncWorker(svc booking.BookingService) *asynq.Server {
	logger := utils.GetLogger()

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSyncQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(booking.TaskTypeCalendarSync, handleSyncTask(svc))

	go func() {
		logger.Info("starting calendar sync worker")
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("sync worker failed to start",
					zap.Int("attempt", attempts), zap.Error(err))
				if attempts == maxAttempts {
					logger.Fatal("sync worker exhausted start attempts")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
	return srv
}

func handleSyncTask(svc booking.BookingService) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p booking.SyncTaskPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			utils.GetLogger().Error("invalid sync task payload", zap.Error(err))
			return err
		}
		utils.GetLogger().Debug("retrying calendar sync",
			zap.String("sessionID", p.SessionID))
		return svc.SyncExternal(ctx, p.SessionID)
	}
}

// InitCompletionSweep starts the cron job that moves confirmed sessions
// whose end time has passed to completed. Disabled unless
// AUTO_COMPLETE_SESSIONS is set.
func InitCompletionSweep(sessions sessionRepo.SessionRepository) *cron.Cron {
	logger := utils.GetLogger()
	if !config.AppConfig.AutoCompleteSessions {
		logger.Info("session auto-completion disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc("*/15 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		count, err := sessions.CompletePast(ctx, time.Now())
		if err != nil {
			logger.Error("completion sweep failed", zap.Error(err))
			return
		}
		if count > 0 {
			logger.Info("completed past sessions", zap.Int64("count", count))
		}
	})
	if err != nil {
		logger.Error("failed to schedule completion sweep", zap.Error(err))
		return nil
	}
	c.Start()
	logger.Info("session auto-completion sweep scheduled")
	return c
}
