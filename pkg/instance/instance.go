package instance

import "os"

// GetID identifies this process in logs. DYNO is set on the hosting dynos;
// TEEVO_INSTANCE_ID overrides it elsewhere.
func GetID() string {
	if id := os.Getenv("TEEVO_INSTANCE_ID"); id != "" {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "local"
}
