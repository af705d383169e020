package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at link time with -ldflags "-X .../internal/cli.Version=v1.2.3".
var Version = "dev"

func versionString() string {
	version := Version
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	return fmt.Sprintf("cjsesm %s (%s %s/%s)", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
