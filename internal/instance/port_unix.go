//go:build !windows

package instance

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/net"
)

// GetProcessUsingPort finds the PID of whatever process is LISTENING on
// port, or 0 if none is found.
func GetProcessUsingPort(port int) (int, error) {
	conns, err := net.Connections("tcp")
	if err != nil {
		return 0, fmt.Errorf("list tcp connections: %w", err)
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && int(c.Laddr.Port) == port {
			return int(c.Pid), nil
		}
	}
	return 0, fmt.Errorf("no process found listening on port %d", port)
}
