package bridge

import (
	"testing"

	"github.com/jfreymuth/pulse/proto"
)

func TestChannelVolumes(t *testing.T) {
	volumes := createChannelVolumes(2, 0.5)

	if len(volumes) != 2 || volumes[0] != maxVolume/2 || volumes[1] != maxVolume/2 {
		t.Errorf("unexpected channel volumes %v", volumes)
	}

	if level := parseChannelVolumes(volumes); level != 0.5 {
		t.Errorf("expected 0.5, got %v", level)
	}

	// uneven channels average out
	if level := parseChannelVolumes([]uint32{0, maxVolume}); level != 0.5 {
		t.Errorf("expected 0.5, got %v", level)
	}

	if level := parseChannelVolumes(nil); level != 0 {
		t.Errorf("expected 0 without channels, got %v", level)
	}
}

func TestDefaultSinkRequest(t *testing.T) {
	named := defaultSinkRequest("alsa_output.pci-0000_00_1f.3.analog-stereo")
	if named.SinkIndex != proto.Undefined || named.SinkName != "alsa_output.pci-0000_00_1f.3.analog-stereo" {
		t.Errorf("unexpected request %+v", named)
	}

	// no server info: an undefined index with no name is how the server's default sink is addressed
	fallback := defaultSinkRequest("")
	if fallback.SinkIndex != proto.Undefined || fallback.SinkName != "" {
		t.Errorf("unexpected request %+v", fallback)
	}
}
