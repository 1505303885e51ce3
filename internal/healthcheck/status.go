package healthcheck

import "time"

// Status is the latest observed state of one dependency.
type Status struct {
	Name             string    `json:"name"`
	IsHealthy        bool      `json:"is_healthy"`
	LastCheck        time.Time `json:"last_check"`
	ConsecutiveFails int       `json:"consecutive_fails,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
}
