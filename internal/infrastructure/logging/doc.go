// Package logging builds the slog logger shared by the beamline core.
//
// Every record carries service="beamline", the build version and the
// beamline the run was started for, so records from a connect run can be
// filtered by beamline the way the control room filters its log server.
// Component narrows the logger per subsystem:
//
//	log := logging.New(cfg.Logging, version, "i03")
//	log.Component("loader").Info("device batch finished", "connected", 12, "failed", 1)
//
// Packages never import this one. They declare a small Logger interface
// (Debug/Info/Warn/Error with slog-style key/value args) that *Logger
// satisfies, and default to a no-op logger until SetLogger is called.
//
// config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Broker passwords and InfluxDB tokens must never be logged; log the
// username or URL instead.
package logging
