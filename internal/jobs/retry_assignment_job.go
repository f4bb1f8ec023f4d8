package jobs

import (
	"context"
	"fmt"
	"time"

	"delivery-dispatch/internal/logger"

	"github.com/robfig/cron/v3"
)

// Retrier повторяет назначение курьеров для заказов без курьера
type Retrier interface {
	RetryUnassigned(ctx context.Context) (int, error)
}

// RetryAssignmentJob периодически перезапускает назначение для зависших заказов.
// Задача опциональна: пустое расписание означает, что она выключена.
type RetryAssignmentJob struct {
	retrier  Retrier
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	log      *logger.Logger
}

// NewRetryAssignmentJob создает задачу. schedule - стандартное cron-выражение
// из пяти полей или дескриптор вида "@every 30s".
func NewRetryAssignmentJob(retrier Retrier, schedule string, log *logger.Logger) *RetryAssignmentJob {
	return &RetryAssignmentJob{
		retrier:  retrier,
		schedule: schedule,
		timeout:  30 * time.Second,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.Logger)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.Logger)),
		)),
		log: log,
	}
}

// Enabled сообщает, задано ли расписание
func (j *RetryAssignmentJob) Enabled() bool {
	return j.schedule != ""
}

// Start регистрирует задачу в планировщике и запускает его
func (j *RetryAssignmentJob) Start() error {
	if !j.Enabled() {
		j.log.Info("Assignment retry job disabled")
		return nil
	}

	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("failed to schedule assignment retry job: %w", err)
	}

	j.cron.Start()
	j.log.WithField("schedule", j.schedule).Info("Assignment retry job started")
	return nil
}

// Stop останавливает планировщик и дожидается текущего запуска
func (j *RetryAssignmentJob) Stop() {
	if !j.Enabled() {
		return
	}
	<-j.cron.Stop().Done()
	j.log.Info("Assignment retry job stopped")
}

func (j *RetryAssignmentJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	assigned, err := j.retrier.RetryUnassigned(ctx)
	if err != nil {
		j.log.WithError(err).Error("Assignment retry failed")
		return
	}
	if assigned > 0 {
		j.log.WithField("assigned", assigned).Info("Assignment retry matched pending orders")
	}
}
