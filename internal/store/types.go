package store

import "time"

// PoolClientID is the sentinel client_id marking an unassigned warm-pool
// container.
const PoolClientID = "__pool__"

// ContainerRecord is the single persistent entity: the assignment of a
// client (or the pool sentinel) to a running container on a host port.
type ContainerRecord struct {
	ClientID      string    `json:"client_id"`
	ContainerID   string    `json:"container_id"`
	ContainerName string    `json:"container_name"`
	Port          int       `json:"port"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed_at"`
	Width         string    `json:"width,omitempty"`
	Height        string    `json:"height,omitempty"`
}

// IsPool reports whether this record belongs to the warm pool rather than
// a client.
func (r ContainerRecord) IsPool() bool {
	return r.ClientID == PoolClientID
}
