//go:build !windows

package instance

// binaryName is the executable name CheckExistingInstance verifies a PID
// against, so a reused PID never gets mistaken for our own daemon.
const binaryName = "sabachand"
