// Package scheduler периодически сверяет IN_PROGRESS шаги с GitHub.
//
// Scheduler по cron-расписанию вызывает
// orchestrator.Service.ReconcileInProgress: слитые PR и завершённые
// workflow runs переводят шаги в COMPLETED или FAILED без участия
// пользователя.
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Reconciler: svc,
//	    Schedule:   "@every 30s",
//	    Leader:     scheduler.NewAdvisoryLock(pool, 0), // опционально
//	    Logger:     logger,
//	})
//	err := sched.Run(ctx)
//
// Leader election:
//
// При нескольких экземплярах тик выполняет только владелец
// pg_try_advisory_lock. Без Leader тик выполняется всегда.
package scheduler
