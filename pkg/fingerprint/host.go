package fingerprint

import (
	"os"
	"runtime"
	"strings"
	"time"
)

// HostEnvironment reads attributes of the local process host, for tools that
// identify themselves as a guest device.
type HostEnvironment struct {
	Product string
}

func (h HostEnvironment) Attributes() Attributes {
	product := h.Product
	if product == "" {
		product = "guestctl"
	}
	cpus := runtime.NumCPU()

	return Attributes{
		UserAgent:           product + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")",
		ColorDepth:          terminalColorDepth(),
		Timezone:            hostTimezone(),
		Language:            hostLanguage(),
		Platform:            runtime.GOOS,
		HardwareConcurrency: &cpus,
	}
}

func hostTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	name, _ := time.Now().Zone()
	return name
}

func hostLanguage() string {
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" {
			// en_US.UTF-8 -> en-US
			v, _, _ = strings.Cut(v, ".")
			return strings.ReplaceAll(v, "_", "-")
		}
	}
	return ""
}

func terminalColorDepth() int {
	switch {
	case os.Getenv("COLORTERM") == "truecolor" || os.Getenv("COLORTERM") == "24bit":
		return 24
	case strings.Contains(os.Getenv("TERM"), "256color"):
		return 8
	default:
		return 0
	}
}
