/*
Package log provides structured logging for the autoscaler using zerolog.

A single global zerolog.Logger is initialized once via log.Init() and
components derive child loggers from it with WithComponent, attaching a
"component" field (e.g. "scaler", "nodelifecycle", "controlloop") so log
lines can be filtered by the part of the control loop that produced them.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true, // JSON in production, console in development
	})

	scalerLog := log.WithComponent("scaler")
	scalerLog.Info().Str("service", "web").Int("replicas", 3).Msg("scaled service")

# Output

JSON (production):

	{"level":"info","component":"scaler","service":"web","replicas":3,"time":"2026-07-31T10:30:00Z","message":"scaled service"}

Console (development, --log-json=false):

	2026-07-31T10:30:00Z INF scaled service component=scaler replicas=3 service=web
*/
package log
