package engine

import (
	"context"
	"errors"

	"datamedic/internal/checks"
	"datamedic/internal/config"
	"datamedic/internal/warehouse"
)

// RunSequential executes checks one at a time on the shared session, in
// submission order, without decomposition. Per-check wall times are kept:
// nothing else competed for the session while each check ran.
//
// On cancellation it returns whatever completed plus the context error.
func RunSequential(ctx context.Context, session *warehouse.Session, env *config.Environment, catalog *checks.Catalog, suites []SuiteChecks) ([]checks.Result, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if env == nil {
		return nil, errors.New("environment is nil")
	}

	var results []checks.Result
	for _, suite := range suites {
		for _, chk := range suite.Checks {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			bag := map[string]any{
				checks.KeyParallelExecution: false,
				checks.KeyShowProgress:      true,
			}
			if meta, ok := catalog.Meta(chk.Name()); ok && meta.FailureThreshold != nil {
				bag[checks.KeyFailureThresholds] = map[string]any{chk.Name(): *meta.FailureThreshold}
			}
			rc := &checks.RunContext{
				Environment: env.Name,
				Databases:   env.DatabaseMap(),
				Schemas:     env.SchemaMap(),
				Session:     session,
				Config:      bag,
			}

			ictx := ctx
			if timeout := catalog.Timeout(chk.Name()); timeout > 0 {
				var cancel context.CancelFunc
				ictx, cancel = context.WithTimeout(ctx, timeout)
				results = append(results, checks.Run(ictx, chk, rc))
				cancel()
				continue
			}
			results = append(results, checks.Run(ictx, chk, rc))
		}
	}
	return results, ctx.Err()
}
