// Package reporting is the operational channel for failures that must not
// reach the requester: audit write errors, email delivery, unexpected 500s.
package reporting

import (
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
)

// Reporter prints to a std logger and forwards to Rollbar when a token is configured.
type Reporter struct {
	std     *log.Logger
	rollbar bool
}

// New creates a Reporter. An empty token keeps Rollbar disabled.
func New(token, env string) *Reporter {
	r := NewStd(log.New(os.Stderr, "", log.LstdFlags))
	if token != "" {
		rollbar.SetToken(token)
		rollbar.SetEnvironment(env)
		rollbar.SetCodeVersion("v1")
		r.rollbar = true
	}
	return r
}

// NewStd returns a log-only Reporter writing to std.
func NewStd(std *log.Logger) *Reporter {
	return &Reporter{std: std}
}

// Error records a failure with optional extra context.
func (r *Reporter) Error(msg string, err error, extras ...map[string]interface{}) {
	if r == nil {
		log.Printf("%s: %v", msg, err)
		return
	}
	r.std.Printf("ERROR %s: %v", msg, err)
	if r.rollbar {
		args := []interface{}{msg, err}
		for _, e := range extras {
			args = append(args, e)
		}
		rollbar.Error(args...)
	}
}

// Warn records a non-fatal condition.
func (r *Reporter) Warn(msg string) {
	if r == nil {
		log.Println(msg)
		return
	}
	r.std.Printf("WARN %s", msg)
	if r.rollbar {
		rollbar.Warning(msg)
	}
}

// Close flushes pending Rollbar items.
func (r *Reporter) Close() {
	if r != nil && r.rollbar {
		rollbar.Wait()
	}
}
