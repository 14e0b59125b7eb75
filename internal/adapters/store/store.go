package store

import "backupwatch/internal/core"

// Store combines the persistence interfaces served by a single backend.
// Every backend holds both clients and the settings record so that
// ApplyOutcomes and settings updates share one database.
type Store interface {
	core.ClientStore
	core.SettingsStore
	Stop()
}
