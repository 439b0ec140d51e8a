package physion

import (
	"fmt"
)

// Config describes which archive frame the vision service reconstructs.
type Config struct {
	ArchivePath string `json:"archive_path"`
	Frame       int    `json:"frame,omitempty"`

	NearPlane float64 `json:"near_plane,omitempty"`
	FarPlane  float64 `json:"far_plane,omitempty"`
	DepthMode string  `json:"depth_mode,omitempty"`
	Workers   int     `json:"workers,omitempty"`
	// PlotPath, if set, receives a top-down plot of every reconstruction.
	PlotPath string `json:"plot_path,omitempty"`
}

// Validate validates the config and returns implicit dependencies,
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.ArchivePath == "" {
		return nil, fmt.Errorf(`expected "archive_path" attribute for physion point cloud service %q`, path)
	}

	if cfg.Frame < 0 {
		return nil, fmt.Errorf("frame needs to be non-negative (got %d)", cfg.Frame)
	}

	if cfg.NearPlane < 0 || cfg.FarPlane < 0 {
		return nil, fmt.Errorf("clipping planes need to be non-negative")
	}

	if (cfg.NearPlane != 0 || cfg.FarPlane != 0) && cfg.NearPlane >= cfg.FarPlane {
		return nil, fmt.Errorf("near_plane (%v) needs to be closer than far_plane (%v)", cfg.NearPlane, cfg.FarPlane)
	}

	if cfg.DepthMode != "" {
		if err := DepthMode(cfg.DepthMode).Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers needs to be non-negative")
	}

	return nil, nil
}

func (cfg *Config) setDefaults() {
	if cfg.NearPlane == 0 && cfg.FarPlane == 0 {
		cfg.NearPlane = DefaultNearPlane
		cfg.FarPlane = DefaultFarPlane
	}
	if cfg.DepthMode == "" {
		cfg.DepthMode = string(DepthModeStandard)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
}

func (cfg *Config) options() Options {
	opts := Options{
		NearPlane: cfg.NearPlane,
		FarPlane:  cfg.FarPlane,
		DepthMode: DepthMode(cfg.DepthMode),
		Workers:   cfg.Workers,
	}
	if cfg.PlotPath != "" {
		opts.Sink = PlotSink{Path: cfg.PlotPath}
	}
	return opts
}
