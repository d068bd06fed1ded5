//go:build windows

package instance

const binaryName = "sabachand.exe"
