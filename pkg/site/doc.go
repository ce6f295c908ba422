// Package site serves the BeachBev web front end.
//
// The static directory is served over HTTPS with CORS headers on every
// response. A second plain HTTP port answers every request with a 301
// to the same host and path over HTTPS:
//
//	srv, err := site.New(cfg, site.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx)
//
// Requests are counted and timed in Prometheus and traced with
// OpenTelemetry. Run returns after a graceful shutdown once ctx is done.
package site
