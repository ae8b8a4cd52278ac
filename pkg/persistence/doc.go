// Package persistence stores the last successfully connected UnaMentis
// server as a single JSON record on disk. The discovery orchestrator
// writes the record after each successful health-validated connection;
// the cached discovery tier reads it on the next attempt.
package persistence
