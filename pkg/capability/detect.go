package capability

import (
	"os"
	"regexp"
	"runtime"

	"github.com/charmbracelet/colorprofile"
	"golang.org/x/term"
)

var mobileUA = regexp.MustCompile(`(?i)iPhone|iPad|Android|Windows Phone|webOS`)

// IsMobileUserAgent reports whether a browser user agent looks mobile.
func IsMobileUserAgent(ua string) bool {
	return mobileUA.MatchString(ua)
}

// DetectHost reads signals from the local terminal and machine. Blending
// means the terminal can render true-color tints; anything less gets the
// low tier.
func DetectHost() Signals {
	return Signals{
		SupportsBlending: terminalBlends(os.Stdout, os.Environ()),
		MemoryGB:         hostMemoryGB(),
		Cores:            runtime.NumCPU(),
		Mobile:           runtime.GOOS == "android" || runtime.GOOS == "ios" || os.Getenv("TERMUX_VERSION") != "",
	}
}

func terminalBlends(f *os.File, env []string) bool {
	if !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return BlendingProfile(colorprofile.Detect(f, env))
}

// BlendingProfile reports whether a color profile can render blended tints.
func BlendingProfile(p colorprofile.Profile) bool {
	return p >= colorprofile.TrueColor
}
