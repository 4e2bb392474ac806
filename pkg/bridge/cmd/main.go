package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/stalexteam/mediabridge/pkg/bridge"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose bool
)

func init() {
	pflag.BoolVarP(&verbose, "verbose", "v", false, "show verbose logs")
	pflag.Int("port", 5000, "port for the control surface to listen on")
	pflag.String("bind", "0.0.0.0", "address for the control surface to bind to")
	pflag.Parse()
}

func main() {

	// first we need a logger
	logger, err := bridge.NewLogger(buildType, verbose)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	// provide a fair warning if the user's running in verbose mode
	if verbose {
		named.Debug("Verbose flag provided, all log messages will be shown")
	}

	// create the bridge instance
	b, err := bridge.NewBridge(logger, verbose, pflag.CommandLine)
	if err != nil {
		named.Fatalw("Failed to create bridge object", "error", err)
	}

	// if injected by build process, set version info to show up in the tray
	if buildType != "" && (versionTag != "" || gitCommit != "") {
		identifier := gitCommit
		if versionTag != "" {
			identifier = versionTag
		}

		versionString := fmt.Sprintf("Version %s-%s", buildType, identifier)
		b.SetVersion(versionString)
	}

	// onwards, to glory
	if err = b.Initialize(); err != nil {
		named.Fatalw("Failed to initialize bridge", "error", err)
	}
}
