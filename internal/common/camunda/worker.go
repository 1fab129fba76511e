// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"loan-origination/internal/common/config"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes one job. It completes or fails the job itself; the
// returned error is only recorded.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(client worker.JobClient, job entities.Job) error

func (f JobHandlerFunc) Handle(client worker.JobClient, job entities.Job) error {
	return f(client, job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for taskType. It returns nil when the worker
// is disabled in config.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, log logger.Logger) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 5
	}
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler, log)).
		MaxJobsActive(maxJobs).
		Timeout(timeout).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": maxJobs,
		"timeoutMs":     timeout.Milliseconds(),
	})
	return &CamundaWorker{worker: jobWorker, logger: log, taskType: taskType}
}

// instrument times every job and counts the outcome.
func instrument(taskType string, handler JobHandler, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		err := handler.Handle(client, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.WorkerJobsFailed.WithLabelValues(taskType, ErrorCode(err)).Inc()
			log.Error("handler returned error", map[string]interface{}{
				"jobKey": job.Key,
				"error":  err.Error(),
			})
			return
		}
		metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	}
}

// Stop closes the job worker. The shared Zeebe client is closed by its owner.
func (w *CamundaWorker) Stop() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
