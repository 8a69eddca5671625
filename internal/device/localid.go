package device

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// fingerprintPaths are read in order; the first non-empty one wins.
var fingerprintPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/sys/class/dmi/id/product_uuid",
}

// LocalID returns a stable identifier for this machine when one is available,
// and a random UUID otherwise.
func LocalID() string {
	return localID(fingerprintPaths)
}

func localID(paths []string) string {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
