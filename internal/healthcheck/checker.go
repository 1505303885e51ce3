package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dependency is anything the service needs to stay healthy (Postgres,
// Redis). Ping must respect the context deadline.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// Checker pings every dependency on an interval and keeps the latest status
// so the /health endpoint answers from memory instead of fanning out per
// request.
type Checker struct {
	mu       sync.RWMutex
	statuses map[string]*Status

	deps        []Dependency
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	log         zerolog.Logger
	stopChan    chan struct{}
	running     bool
}

type Config struct {
	Dependencies []Dependency
	Interval     time.Duration // How often to check (default: 10s)
	Timeout      time.Duration // Per-ping timeout (default: 5s)
	MaxFailures  int           // Consecutive failures before unhealthy (default: 3)
}

func NewChecker(cfg Config, log zerolog.Logger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	checker := &Checker{
		statuses:    make(map[string]*Status),
		deps:        cfg.Dependencies,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		log:         log.With().Str("component", "healthcheck").Logger(),
		stopChan:    make(chan struct{}),
	}

	for _, dep := range cfg.Dependencies {
		checker.statuses[dep.Name] = &Status{
			Name:      dep.Name,
			IsHealthy: true, // assume healthy until first check
			LastCheck: time.Now(),
		}
	}

	return checker
}

// Start begins periodic checks. The first round runs immediately.
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.checkAll()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.checkAll()
			case <-c.stopChan:
				return
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
	}
}

func (c *Checker) checkAll() {
	var wg sync.WaitGroup

	for _, dep := range c.deps {
		wg.Add(1)
		go func(d Dependency) {
			defer wg.Done()
			c.check(d)
		}(dep)
	}

	wg.Wait()
}

func (c *Checker) check(dep Dependency) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	err := dep.Ping(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.statuses[dep.Name]
	status.LastCheck = time.Now()

	if err != nil {
		status.ConsecutiveFails++
		status.LastError = err.Error()
		if status.ConsecutiveFails >= c.maxFailures && status.IsHealthy {
			status.IsHealthy = false
			c.log.Warn().Str("dependency", dep.Name).Err(err).Msg("dependency marked unhealthy")
		}
		return
	}

	if !status.IsHealthy {
		c.log.Info().Str("dependency", dep.Name).Msg("dependency recovered")
	}
	status.ConsecutiveFails = 0
	status.LastError = ""
	status.IsHealthy = true
}

// Snapshot returns the current status of every dependency and whether all of
// them are healthy.
func (c *Checker) Snapshot() (map[string]Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	allHealthy := true
	out := make(map[string]Status, len(c.statuses))
	for name, status := range c.statuses {
		out[name] = *status
		if !status.IsHealthy {
			allHealthy = false
		}
	}

	return out, allHealthy
}
