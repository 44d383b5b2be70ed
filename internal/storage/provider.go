package storage

import "sdbooth/internal/ports"

// Provider is the archive contract shared by the tracker, the archive
// handler and health checks.
type Provider = ports.StorageProvider
