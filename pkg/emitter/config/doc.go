/*
Package config loads emitter settings from YAML, JSON, or TOML files with
environment variable overrides.

# File Format

	error_policy: continue   # propagate (default) or continue
	metrics: true
	tracing: false
	log_level: debug
	dead_letter:
	  driver: sqlite         # memory, sqlite, or empty to disable
	  path: ./deadletters.db
	bindings:
	  - event: score
	    handler: announce_high_score
	    filter: "v >= 100"
	  - event: round.end
	    handler: close_round
	    once: true

# Environment Overrides

Load applies these variables after reading the file:

	EMITTER_ERROR_POLICY
	EMITTER_METRICS
	EMITTER_TRACING
	EMITTER_LOG_LEVEL
	EMITTER_DEAD_LETTER_DRIVER
	EMITTER_DEAD_LETTER_PATH

Bindings can only be declared in files. The same settings in TOML:

	error_policy = "continue"

	[dead_letter]
	driver = "memory"

	[[bindings]]
	event = "score"
	handler = "announce_high_score"
	filter = "v >= 100"
*/
package config
