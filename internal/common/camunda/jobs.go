// internal/common/camunda/jobs.go
package camunda

import (
	"context"
	"time"

	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const commandTimeout = 10 * time.Second

// ErrorCode returns the BPMN error code carried by err.
func ErrorCode(err error) string {
	if stdErr, ok := errors.AsStandard(err); ok {
		return string(stdErr.Code)
	}
	return string(errors.ErrCodeInternal)
}

// CompleteJob completes job with variables.
func CompleteJob(client worker.JobClient, job entities.Job, variables interface{}, log logger.Logger) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(variables)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return err
	}
	return nil
}

// RejectJob reports err to the engine as a retried failure or a thrown BPMN
// error and returns err unchanged.
func RejectJob(client worker.JobClient, job entities.Job, err error, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	errors.NewErrorHandler(log).HandleJobError(ctx, client, job, err)
	return err
}
