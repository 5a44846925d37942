// shared/registry/types.go
package registry

import "fmt"

// ServiceInfo represents the details of a registered service instance.
// This information is stored in Redis and used for service discovery.
type ServiceInfo struct {
	ServiceID   string            `json:"serviceId"`          // Unique ID for this specific instance (e.g., a UUID)
	ServiceType string            `json:"serviceType"`        // Type of service (e.g., "moderation-service", "game-service")
	IP          string            `json:"ip"`                 // IP address where the service is listening
	Port        int               `json:"port"`               // Port where the service is listening
	LastSeen    int64             `json:"last_seen"`          // Unix milliseconds of the last heartbeat
	Metadata    map[string]string `json:"metadata,omitempty"` // Optional: additional key-value pairs (e.g., "version", "region")
}

// BaseURL returns the http address of the service instance, suitable for an api.Client.
func (si ServiceInfo) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", si.IP, si.Port)
}
