// cmd/loan-api/scheduler.go
package main

import (
	"context"
	"time"

	"loan-origination/internal/api"
	"loan-origination/internal/application"
	"loan-origination/internal/common/config"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/mcpserver"

	"github.com/robfig/cron/v3"
)

const (
	sessionSweepSpec = "@every 1m"
	clientSweepSpec  = "@every 5m"
	clientIdleAfter  = 10 * time.Minute
)

// newScheduler registers the periodic housekeeping jobs. mcp may be nil.
func newScheduler(cfg config.SchedulerConfig, applications *application.Service, mcp *mcpserver.Handler, server *api.Server, log logger.Logger) (*cron.Cron, error) {
	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	c := cron.New()

	spec := cfg.StatusGaugeSpec
	if spec == "" {
		spec = "@every 1m"
	}
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := applications.RefreshStatusGauge(ctx); err != nil {
			log.Warn("status gauge refresh failed", map[string]interface{}{"error": err.Error()})
		}
	}); err != nil {
		return nil, err
	}

	if mcp != nil {
		if _, err := c.AddFunc(sessionSweepSpec, func() {
			if n := mcp.EvictIdle(); n > 0 {
				log.Info("evicted idle MCP sessions", map[string]interface{}{"count": n})
			}
		}); err != nil {
			return nil, err
		}
	}

	if _, err := c.AddFunc(clientSweepSpec, func() {
		if n := server.SweepClients(clientIdleAfter); n > 0 {
			log.Debug("dropped idle rate limiter entries", map[string]interface{}{"count": n})
		}
	}); err != nil {
		return nil, err
	}
	return c, nil
}
