package cmd

import (
	"time"

	"truelink/internal"
	"truelink/providers"
	"truelink/resolver"
	"truelink/utils"
)

// app is everything a command needs, built once from the loaded config.
type app struct {
	client  *utils.HTTPClient
	generic *resolver.Generic
	pool    *resolver.WorkerPool
	orch    *resolver.Orchestrator
}

func newApp(cfg internal.Config) (*app, error) {
	client := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:     cfg.MaxTimeoutDuration(),
		ProxyURL:    cfg.ProxyURL,
		PoolSize:    cfg.ConnectionPoolSize,
		UserAgents:  cfg.UserAgentList,
		RetryConfig: utils.DefaultRetryConfig(),
		Limiter:     utils.NewHostLimiter(cfg.OutboundRPS, cfg.OutboundBurst),
	})

	generic, err := resolver.NewGeneric(client, providers.Default(cfg.Credentials)...)
	if err != nil {
		return nil, err
	}
	pool := resolver.NewWorkerPool(cfg.WorkerPoolSize)

	internal.LogDebug("Dispatch table ready: %d providers, %d domains", len(generic.Providers()), len(generic.SupportedDomains()))
	return &app{
		client:  client,
		generic: generic,
		pool:    pool,
		orch:    resolver.NewOrchestrator(generic, pool, cfg),
	}, nil
}

// request builds a resolution request from command flags. Zero values
// fall back to the configured defaults.
func (a *app) request(rawURL string, timeout time.Duration, retries int) internal.ResolutionRequest {
	req := a.orch.NewRequest(rawURL)
	if timeout > 0 {
		req.Timeout = timeout
	}
	if retries >= 0 {
		req.MaxRetries = retries
	}
	return req
}

func (a *app) close() {
	a.pool.Shutdown()
	a.client.CloseIdleConnections()
}
