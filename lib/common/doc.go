// Package common contains the pieces shared by the library and the command
// line tools: the logger factory that plugs into dragonboat's logger facade
// and the workload configuration used to drive a version map.
//
// Loggers are obtained per package with logger.GetLogger(name) and are
// configured once through InitLoggers. Until InitLoggers is called the
// default dragonboat logger is used.
package common
