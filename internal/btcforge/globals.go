package btcforge

import (
	"github.com/gookit/color"
)

// Global variables
var (
	buildRoot       string // root directory for checkouts and collected binaries
	buildCores      int    // parallel jobs handed to make/cmake/cargo
	continueOnError bool   // "both" target: keep going after the first failure
	archiveOutput   bool   // produce a .tar.xz next to the collected binaries
	Debug           bool
	ConfigFile      = "" // resolved in Main, overridable via BTCFORGE_CONFIG

	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
