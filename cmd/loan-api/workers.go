// cmd/loan-api/workers.go
package main

import (
	"context"

	"loan-origination/internal/application"
	awsclients "loan-origination/internal/common/aws"
	"loan-origination/internal/common/camunda"
	"loan-origination/internal/common/config"
	"loan-origination/internal/common/database"
	"loan-origination/internal/common/logger"

	rrd "loan-origination/internal/workers/application/record-review-decision"
	sn "loan-origination/internal/workers/application/send-notification"
	vad "loan-origination/internal/workers/application/validate-application-data"
)

// startWorkers opens a job worker for every task of the review process.
// Disabled workers are skipped.
func startWorkers(
	ctx context.Context,
	cfg *config.Config,
	zeebe *camunda.Client,
	pg *database.PostgresClient,
	applications *application.Service,
	log logger.Logger,
) ([]*camunda.CamundaWorker, error) {
	var workers []*camunda.CamundaWorker
	add := func(taskType string, handler camunda.JobHandler) {
		if w := camunda.StartWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler, log); w != nil {
			workers = append(workers, w)
		}
	}

	add(vad.TaskType, vad.NewHandler(vad.LoadConfig(config.GetWorkerConfig(cfg, vad.TaskType)), log))
	add(rrd.TaskType, rrd.NewHandler(rrd.LoadConfig(config.GetWorkerConfig(cfg, rrd.TaskType)), applications, log))

	notifyCfg := sn.LoadConfig(cfg)
	var sesClient sn.SESService
	var snsClient sn.SNSService
	if notifyCfg.EmailEnabled {
		c, err := awsclients.NewSESClient(ctx, cfg.Integrations.AWS.Region, notifyCfg.FromEmail)
		if err != nil {
			return workers, err
		}
		sesClient = c
	}
	if notifyCfg.SMSEnabled {
		c, err := awsclients.NewSNSClient(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.DefaultSMSSenderID)
		if err != nil {
			return workers, err
		}
		snsClient = c
	}
	add(sn.TaskType, sn.NewHandler(notifyCfg, pg.DB, sesClient, snsClient, log))

	log.Info("workers registered", map[string]interface{}{"count": len(workers)})
	return workers, nil
}
