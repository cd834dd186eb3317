package health

import (
	"context"
	"runtime"
	"time"
)

const (
	statusHealthy     = "healthy"
	statusDegraded    = "degraded"
	statusUnreachable = "unreachable"
)

// Collect probes the backend once and gathers the local setup into a report.
func Collect(ctx context.Context, opts Options) Snapshot {
	opts = opts.normalize()

	s := Snapshot{
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	s.Backend = BackendInfo{BaseURL: opts.BaseURL}
	if opts.Prober != nil {
		pctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		s.Backend.Status = Probe(pctx, opts.Prober)
		cancel()
	}

	switch {
	case !s.Backend.Reachable:
		s.Status = statusUnreachable
	case !s.Backend.OK:
		s.Status = statusDegraded
	default:
		s.Status = statusHealthy
	}

	if opts.ConfigPath != "" {
		s.Config = inspectConfigFile(opts.ConfigPath)
	}
	if opts.LogPath != "" {
		s.Log = inspectFile(opts.LogPath)
	}
	return s
}

// Probe calls the backend health endpoint once. A backend that answers with
// an HTTP error is reachable but not ok.
func Probe(ctx context.Context, p Prober) Status {
	start := time.Now()
	hs, err := p.Health(ctx)
	st := Status{
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}
	if err != nil {
		st.Err = err.Error()
		st.Reachable = isReachableError(err)
		return st
	}
	st.Reachable = true
	st.OK = hs.OK
	st.Provider = hs.Provider
	st.Model = hs.Model
	return st
}
