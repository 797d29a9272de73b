package ffmpeg

import (
	"fmt"
	"sort"
)

// Preset fixes output resolution and encoder settings.
type Preset struct {
	Name         string
	Width        int
	Height       int
	CRF          int
	AudioBitrate string
}

var presets = map[string]Preset{
	"720p":  {Name: "720p", Width: 1280, Height: 720, CRF: 23, AudioBitrate: "128k"},
	"1080p": {Name: "1080p", Width: 1920, Height: 1080, CRF: 20, AudioBitrate: "192k"},
	"4k":    {Name: "4k", Width: 3840, Height: 2160, CRF: 18, AudioBitrate: "256k"},
}

// DefaultPreset is used when no quality is requested.
const DefaultPreset = "1080p"

// PresetFor looks up a quality preset by name. An empty name selects DefaultPreset.
func PresetFor(name string) (Preset, error) {
	if name == "" {
		name = DefaultPreset
	}
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown video quality %q (want one of %v)", name, PresetNames())
	}
	return p, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
