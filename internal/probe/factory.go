package probe

import (
	"fmt"

	"github.com/dverstak/triage/internal/config"
)

// NewProber constructs the configured probe runtime. Called once at server
// startup. Runtime "none" returns nil: probing disabled, classification
// falls back to the evidence already in each record.
func NewProber(cfg config.ProbeConfig) (Prober, error) {
	switch cfg.Runtime {
	case "apptainer":
		return NewApptainerProber(), nil
	case "docker":
		return NewDockerProber(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown probe runtime %q: must be one of apptainer, docker, none", cfg.Runtime)
	}
}
