package devices

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
)

type fakeGateway struct {
	mu sync.Mutex

	sources []domain.AudioDevice
	sinks   []domain.AudioDevice
	cards   []domain.BluetoothCard

	defaultSource string
	defaultSink   string

	profileCalls []string // "card:profile"
	movedSinks   []string
}

func (g *fakeGateway) System() string { return SystemPulseAudio }

func (g *fakeGateway) Sinks() ([]domain.AudioDevice, error)   { return g.sinks, nil }
func (g *fakeGateway) Sources() ([]domain.AudioDevice, error) { return g.sources, nil }

func (g *fakeGateway) DefaultSink() (string, error)   { return g.defaultSink, nil }
func (g *fakeGateway) DefaultSource() (string, error) { return g.defaultSource, nil }

func (g *fakeGateway) SetDefaultSink(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultSink = name
	return nil
}

func (g *fakeGateway) SetDefaultSource(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultSource = name
	return nil
}

func (g *fakeGateway) MoveSinkInputs(sink string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.movedSinks = append(g.movedSinks, sink)
	return nil
}

func (g *fakeGateway) SuspendSource(string, bool) error  { return nil }
func (g *fakeGateway) SourceActive(string) (bool, error) { return true, nil }

func (g *fakeGateway) BluetoothCards() ([]domain.BluetoothCard, error) { return g.cards, nil }

func (g *fakeGateway) SetCardProfile(card, profile string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profileCalls = append(g.profileCalls, card+":"+profile)
	return nil
}

func (g *fakeGateway) CardDescription(string) (string, error) { return "Test Headset", nil }

func newTestManager(gw *fakeGateway) *Manager {
	m := NewManager(gw, zerolog.Nop())
	m.bluetooth.sleep = func(time.Duration) {}
	return m
}

func TestLegacyModeSwapsMicOnStartOutputOnStop(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{defaultSource: "builtin_mic", defaultSink: "builtin_speakers"}
	m := newTestManager(gw)
	m.ConfigureLegacy("usb_mic", "usb_speakers")

	m.StartRecordingSwitch()
	if gw.defaultSource != "usb_mic" {
		t.Fatalf("expected mic switch on start, got %q", gw.defaultSource)
	}
	if gw.defaultSink != "builtin_speakers" {
		t.Fatalf("start must not touch the sink, got %q", gw.defaultSink)
	}

	m.StopRecordingSwitch()
	if gw.defaultSink != "usb_speakers" {
		t.Fatalf("expected output switch on stop, got %q", gw.defaultSink)
	}
	// The mic deliberately stays on the dictation device between
	// sessions.
	if gw.defaultSource != "usb_mic" {
		t.Fatalf("stop must leave the mic alone, got %q", gw.defaultSource)
	}
}

func TestFourDeviceModeSwapsBothEnds(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	m := newTestManager(gw)
	m.ConfigureFourDevice("d_mic", "d_out", "n_mic", "n_out")

	m.StartRecordingSwitch()
	if gw.defaultSource != "d_mic" || gw.defaultSink != "d_out" {
		t.Fatalf("expected dictating pair, got source=%q sink=%q", gw.defaultSource, gw.defaultSink)
	}

	m.StopRecordingSwitch()
	if gw.defaultSource != "n_mic" || gw.defaultSink != "n_out" {
		t.Fatalf("expected normal pair, got source=%q sink=%q", gw.defaultSource, gw.defaultSink)
	}
}

func TestFourDeviceConfigDisablesLegacy(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	m := newTestManager(gw)
	m.ConfigureLegacy("legacy_mic", "legacy_out")
	m.ConfigureFourDevice("d_mic", "d_out", "n_mic", "n_out")

	m.StartRecordingSwitch()
	if gw.defaultSource == "legacy_mic" {
		t.Fatal("legacy switching ran after four-device mode was configured")
	}
	if gw.defaultSource != "d_mic" {
		t.Fatalf("expected dictating mic, got %q", gw.defaultSource)
	}
}

func TestLegacyConfigDisablesFourDevice(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	m := newTestManager(gw)
	m.ConfigureFourDevice("d_mic", "d_out", "n_mic", "n_out")
	m.ConfigureLegacy("legacy_mic", "legacy_out")

	m.StartRecordingSwitch()
	if gw.defaultSource != "legacy_mic" {
		t.Fatalf("expected legacy mic, got %q", gw.defaultSource)
	}
	if gw.defaultSink == "d_out" {
		t.Fatal("four-device switching ran after legacy mode was configured")
	}
}

func TestDisabledManagerTouchesNothing(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{defaultSource: "mic", defaultSink: "out"}
	m := newTestManager(gw)

	m.StartRecordingSwitch()
	m.StopRecordingSwitch()
	if gw.defaultSource != "mic" || gw.defaultSink != "out" {
		t.Fatal("disabled manager must not switch devices")
	}
}

func TestBounceSequenceOrder(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	b := newBluetooth(gw, zerolog.Nop())
	b.sleep = func(time.Duration) {}

	if !b.bounce("bluez_card.AA_BB") {
		t.Fatal("expected bounce to succeed")
	}

	want := []string{
		"bluez_card.AA_BB:headset-head-unit-msbc",
		"bluez_card.AA_BB:off",
		"bluez_card.AA_BB:headset-head-unit-msbc",
	}
	if len(gw.profileCalls) != len(want) {
		t.Fatalf("expected %d profile calls, got %v", len(want), gw.profileCalls)
	}
	for i := range want {
		if gw.profileCalls[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q", i, want[i], gw.profileCalls[i])
		}
	}
}

func TestHeadsetSwitchBouncesA2DPCards(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{cards: []domain.BluetoothCard{{
		Name:          "bluez_card.AA",
		ActiveProfile: "a2dp-sink",
		Profiles: map[string]string{
			"a2dp-sink":              "High Fidelity Playback",
			"headset-head-unit-msbc": "Headset Head Unit (mSBC)",
		},
	}}}
	b := newBluetooth(gw, zerolog.Nop())
	b.sleep = func(time.Duration) {}

	b.SwitchAllToHeadset()
	if len(gw.profileCalls) != 3 {
		t.Fatalf("expected full bounce for a2dp card, got %v", gw.profileCalls)
	}
}

func TestHeadsetSwitchSkipsCardsAlreadyInHeadsetMode(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{cards: []domain.BluetoothCard{{
		Name:          "bluez_card.AA",
		ActiveProfile: "headset-head-unit-msbc",
		Profiles: map[string]string{
			"headset-head-unit-msbc": "Headset Head Unit (mSBC)",
		},
	}}}
	b := newBluetooth(gw, zerolog.Nop())
	b.sleep = func(time.Duration) {}

	b.SwitchAllToHeadset()
	if len(gw.profileCalls) != 0 {
		t.Fatalf("expected no profile calls, got %v", gw.profileCalls)
	}
}

func TestVirtualHFPDeviceResolution(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	m := newTestManager(gw)
	m.ConfigureLegacy("bt_hfp_source_AA_BB", "")

	m.StartRecordingSwitch()
	if gw.defaultSource != "bluez_input.AA_BB.0" {
		t.Fatalf("expected resolved bluez source, got %q", gw.defaultSource)
	}
	if len(gw.profileCalls) == 0 {
		t.Fatal("expected headset activation before source switch")
	}
}

func TestProfileVariantsSynthesized(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		sinks: []domain.AudioDevice{{Index: 1, Name: "bluez_output.AA.1", Description: "My Headset"}},
		cards: []domain.BluetoothCard{{
			Name:          "bluez_card.AA",
			ActiveProfile: "a2dp-sink",
			Profiles: map[string]string{
				"a2dp-sink":              "High Fidelity Playback",
				"headset-head-unit-msbc": "Headset Head Unit (mSBC)",
			},
		}},
	}
	m := newTestManager(gw)

	sources, sinks := m.ListDevices()

	if !containsDevice(sources, "bt_hfp_source_AA") {
		t.Fatalf("expected virtual handsfree source, got %v", sources)
	}
	if !containsDevice(sinks, "bt_hfp_sink_AA") {
		t.Fatalf("expected virtual handsfree sink, got %v", sinks)
	}
	// The A2DP sink already existed; it must not be duplicated.
	count := 0
	for _, s := range sinks {
		if s.Name == "bluez_output.AA.1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one a2dp sink entry, got %d", count)
	}
}

func TestProfileVariantsSkipSingleProfileCards(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{cards: []domain.BluetoothCard{{
		Name:          "bluez_card.BB",
		ActiveProfile: "a2dp-sink",
		Profiles:      map[string]string{"a2dp-sink": "High Fidelity Playback"},
	}}}
	m := newTestManager(gw)

	sources, sinks := m.ListDevices()
	if containsDevice(sources, "bt_hfp_source_BB") || containsDevice(sinks, "bt_hfp_sink_BB") {
		t.Fatal("cards without a headset profile must not get virtual variants")
	}
}

func TestCleanDeviceName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		description string
		name        string
		want        string
	}{
		{"USB PnP Audio Device Analog Stereo", "alsa_output.usb", "USB Audio (Analog)"},
		{"Built-in Audio Analog Stereo", "alsa_output.pci", "Built-in Audio (Analog)"},
		{"", "alsa_output.hdmi-stereo-2", "HDMI Output 2"},
		{"", "alsa_input.analog-stereo", "Built-in Microphone"},
		{"", "weird-device", "Audio Device"},
	}
	for _, tc := range cases {
		if got := CleanDeviceName(tc.description, tc.name); got != tc.want {
			t.Errorf("CleanDeviceName(%q, %q) = %q, want %q", tc.description, tc.name, got, tc.want)
		}
	}
}
