package demux

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Options carries the recognized configuration knobs from spec.md §6,
// excluding reuseRedirectedURL which belongs to the loader, not the
// demuxer.
type Options struct {
	OverriddenDuration uint32 `yaml:"overridden_duration"`
	OverriddenHasAudio bool   `yaml:"overridden_has_audio"`
	OverriddenHasVideo bool   `yaml:"overridden_has_video"`
	TimestampBase      uint32 `yaml:"timestamp_base"`
}

// LoadOptions reads and unmarshals a YAML options document from path.
func LoadOptions(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("demux: read options %s: %w", path, err)
	}

	var opts Options
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("demux: parse options %s: %w", path, err)
	}

	return opts, nil
}
