package main

import "github.com/google/uuid"

// generateAPIKey produces the default API key used when the operator
// doesn't pass --api-key: a random, unguessable token with a recognizable
// prefix so it's obvious at a glance which config value it is.
func generateAPIKey() string {
	return "exeio_" + uuid.NewString()
}
