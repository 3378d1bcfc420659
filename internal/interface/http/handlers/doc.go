// Package handlers contains the reusable pieces of the HTTP API: health
// checks and gin middleware.
//
// # Health Checks
//
// Checks are registered by name and run in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	router.GET("/health", handlers.Health(checker))
//
// # Middleware
//
// The router installs, in order:
//
//	router.Use(handlers.Recovery(log))
//	router.Use(handlers.RequestID(log))
//	router.Use(handlers.Tracing())
//	router.Use(handlers.Metrics(recorder))
//	router.Use(handlers.RequestLogger(log))
//	router.Use(handlers.Actor())
//
// # Actor
//
// Authentication happens upstream. The gateway forwards the authenticated
// subject in X-Actor-ID and its administrator bit in X-Actor-Admin; handlers
// read it with GetActor and pass it to every mutating command.
package handlers
