package version

import "runtime/debug"

const MajorVersion = 1

var (
	version = "undefined"
	commit  = ""
)

func Version() string {
	return version
}

func Commit() string {
	if commit != "" {
		return commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}

	return "unknown"
}
