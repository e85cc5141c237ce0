// Package config loads phasetrack configuration.
//
// The schema lives in schema.cue and is embedded in the binary. A user file
// is plain CUE unified with #Config, so defaults, enums and bounds come from
// the schema and unknown fields are rejected:
//
//	log: level: "debug"
//	engine: max_depth: 32
//	journal: path: "phasetrack.db"
//
// Environment variables (PHASETRACK_LOG_LEVEL, PHASETRACK_LOG_FORMAT,
// PHASETRACK_OWNER_CHECK, PHASETRACK_POOL_CAPACITY, PHASETRACK_MAX_DEPTH,
// PHASETRACK_JOURNAL_PATH) override the file and are validated against the
// same schema.
package config
