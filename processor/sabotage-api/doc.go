// Package sabotageapi serves the sabotage orchestration, the chaos pattern table and the
// starter challenge catalog over HTTP.
//
// Routes:
//
//	POST /api/sabotage
//	GET  /api/patterns
//	GET  /api/challenges?skill=<skill>&difficulty=<category|score>
//	GET  /health
//
// Every response carries X-Request-ID; an incoming X-Request-ID is reused so a client can
// correlate its own logs with the server's.
package sabotageapi
