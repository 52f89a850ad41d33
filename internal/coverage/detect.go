package coverage

import "github.com/yammerjp/gocovrun/internal/runner"

// Detection is the outcome of the capability check. Plugin is nil when
// coverage is disabled.
type Detection struct {
	Enabled bool
	Plugin  *Plugin
}

// Detect looks up the go toolchain with lookPath (usually exec.LookPath)
// and, when it is present, builds the plugin for it. A missing toolchain
// disables coverage instead of failing the run.
func Detect(lookPath func(file string) (string, error), build func(goBin string) *Plugin) Detection {
	goBin, err := lookPath("go")
	if err != nil {
		return Detection{}
	}
	return Detection{Enabled: true, Plugin: build(goBin)}
}

// Plugins returns the runner plugins for d.
func (d Detection) Plugins() []runner.Plugin {
	if !d.Enabled {
		return nil
	}
	return []runner.Plugin{d.Plugin}
}
