package btcforge

import (
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)`)

// parseVersion extracts the leading major.minor pair from a tag, ignoring a
// leading "v". Unparseable tags yield (0, 0).
func parseVersion(tag string) (major, minor int) {
	tag = strings.TrimPrefix(tag, "v")
	m := versionPattern.FindStringSubmatch(tag)
	if m == nil {
		return 0, 0
	}
	major, _ = strconv.Atoi(m[1])
	minor, _ = strconv.Atoi(m[2])
	return major, minor
}

// buildSystem is the closed set of build strategies. Selection is a pure
// function of the parsed version.
type buildSystem int

const (
	buildAutotools buildSystem = iota
	buildCMake
	buildCargo
)

func (b buildSystem) String() string {
	switch b {
	case buildAutotools:
		return "autotools"
	case buildCMake:
		return "cmake"
	case buildCargo:
		return "cargo"
	}
	return "unknown"
}

// Bitcoin Core switched its build system in v25; everything at or above
// builds with CMake, older releases with Autotools.
const cmakeCutoverMajor = 25

func bitcoinBuildSystem(tag string) buildSystem {
	major, _ := parseVersion(tag)
	if major >= cmakeCutoverMajor {
		return buildCMake
	}
	return buildAutotools
}
