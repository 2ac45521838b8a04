package version

import "fmt"

// Version, GitCommit and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/enp6s0/dspgate/pkg/version.Version=v1.0.0 \
//	  -X github.com/enp6s0/dspgate/pkg/version.GitCommit=abc1234 \
//	  -X github.com/enp6s0/dspgate/pkg/version.BuildDate=2026-07-30"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info renders a one-line version string for the CLI's version command.
func Info() string {
	return fmt.Sprintf("dspgate %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
