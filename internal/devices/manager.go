package devices

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

// Manager maps a logical recording session onto physical device state:
// which microphone and output are default while dictating versus
// otherwise, and what profile any Bluetooth card has to be in for its
// microphone to work. Every device-control call degrades gracefully on
// failure; a recording proceeds from whatever device ends up default.
type Manager struct {
	gateway   ports.SoundGateway
	bluetooth *bluetooth
	log       zerolog.Logger

	mu sync.Mutex

	// Legacy two-device mode: swap the mic on start, swap the output on
	// stop. The mic stays on the dictation device between sessions to
	// avoid renegotiation churn.
	switchingEnabled bool
	preferredMic     string
	preferredOutput  string

	// Four-device mode: swap both ends on start and on stop.
	fourDeviceMode  bool
	dictatingMic    string
	dictatingOutput string
	normalMic       string
	normalOutput    string
}

func NewManager(gateway ports.SoundGateway, log zerolog.Logger) *Manager {
	return &Manager{
		gateway:   gateway,
		bluetooth: newBluetooth(gateway, log),
		log:       log.With().Str("component", "device-manager").Logger(),
	}
}

// ConfigureLegacy enables two-device switching: one preferred mic and
// one preferred output. Disables four-device mode.
func (m *Manager) ConfigureLegacy(mic, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferredMic = mic
	m.preferredOutput = output
	m.switchingEnabled = mic != "" || output != ""
	m.fourDeviceMode = false
	m.log.Info().Str("mic", mic).Str("output", output).Msg("legacy device switching configured")
}

// ConfigureFourDevice enables independent dictating/normal device
// pairs. Disables legacy mode.
func (m *Manager) ConfigureFourDevice(dictatingMic, dictatingOutput, normalMic, normalOutput string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dictatingMic = dictatingMic
	m.dictatingOutput = dictatingOutput
	m.normalMic = normalMic
	m.normalOutput = normalOutput
	m.fourDeviceMode = true
	m.switchingEnabled = true
	m.log.Info().
		Str("dictating_mic", dictatingMic).Str("dictating_output", dictatingOutput).
		Str("normal_mic", normalMic).Str("normal_output", normalOutput).
		Msg("four-device switching configured")
}

// DisableSwitching turns off both modes.
func (m *Manager) DisableSwitching() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switchingEnabled = false
	m.fourDeviceMode = false
}

// Configure applies a settings snapshot, choosing the mode. Four-device
// preferences win when set.
func (m *Manager) Configure(fourDevice bool, preferredMic, preferredOutput, dictatingMic, dictatingOutput, normalMic, normalOutput string) {
	if fourDevice && (dictatingMic != "" || normalMic != "") {
		m.ConfigureFourDevice(dictatingMic, dictatingOutput, normalMic, normalOutput)
		return
	}
	if preferredMic != "" || preferredOutput != "" {
		m.ConfigureLegacy(preferredMic, preferredOutput)
		return
	}
	m.DisableSwitching()
}

// ListDevices enumerates current sources and sinks, enhanced with
// virtual Bluetooth handsfree entries. Queried fresh every call.
func (m *Manager) ListDevices() (sources, sinks []domain.AudioDevice) {
	sources, err := m.gateway.Sources()
	if err != nil {
		m.log.Warn().Err(err).Msg("could not list sources")
	}
	sinks, err = m.gateway.Sinks()
	if err != nil {
		m.log.Warn().Err(err).Msg("could not list sinks")
	}
	return m.bluetooth.profileVariants(sources, sinks)
}

// StartRecordingSwitch moves device defaults into dictation position.
func (m *Manager) StartRecordingSwitch() {
	m.mu.Lock()
	enabled := m.switchingEnabled
	fourDevice := m.fourDeviceMode
	mic := m.preferredMic
	dictatingMic := m.dictatingMic
	dictatingOutput := m.dictatingOutput
	m.mu.Unlock()

	if !enabled {
		return
	}

	if fourDevice {
		// The headset profile has to be up before the bluez source can
		// be made default.
		m.bluetooth.SwitchAllToHeadset()
		m.setSource(dictatingMic)
		m.setSink(dictatingOutput)
		return
	}

	m.setSource(mic)
}

// StopRecordingSwitch restores device defaults after a session. Legacy
// mode restores the output only; the mic stays put.
func (m *Manager) StopRecordingSwitch() {
	m.mu.Lock()
	enabled := m.switchingEnabled
	fourDevice := m.fourDeviceMode
	output := m.preferredOutput
	normalMic := m.normalMic
	normalOutput := m.normalOutput
	m.mu.Unlock()

	if !enabled {
		return
	}

	if fourDevice {
		m.setSource(normalMic)
		m.setSink(normalOutput)
		m.bluetooth.SwitchAllToA2DP()
		return
	}

	m.setSink(output)
}

func (m *Manager) setSource(name string) {
	if name == "" {
		return
	}
	name = m.bluetooth.resolveVirtual(name)
	if err := m.gateway.SetDefaultSource(name); err != nil {
		m.log.Warn().Err(err).Str("source", name).Msg("could not set default source")
	}
}

func (m *Manager) setSink(name string) {
	if name == "" {
		return
	}
	name = m.bluetooth.resolveVirtual(name)
	if err := m.gateway.SetDefaultSink(name); err != nil {
		m.log.Warn().Err(err).Str("sink", name).Msg("could not set default sink")
		return
	}
	if err := m.gateway.MoveSinkInputs(name); err != nil {
		m.log.Debug().Err(err).Str("sink", name).Msg("could not move playback streams")
	}
}

// CleanDeviceName turns verbose sound-server descriptions into labels
// fit for a picker.
func CleanDeviceName(description, deviceName string) string {
	if description != "" && !strings.HasPrefix(description, "alsa_") && len(description) > 5 {
		cleaned := description
		replacements := []struct{ from, to string }{
			{"Cannon Point-LP High Definition Audio Controller", "Built-in Audio"},
			{"USB PnP Audio Device", "USB Audio"},
			{" Audio Device", ""},
			{" Audio Controller", ""},
			{" Digital Stereo (IEC958)", " (Digital)"},
			{" Analog Stereo", " (Analog)"},
			{" Speaker + Headphones", " (Built-in)"},
			{" Digital Microphone", " (Built-in Mic)"},
			{" Headphones Stereo Microphone", " (Headset Mic)"},
		}
		for _, r := range replacements {
			cleaned = strings.ReplaceAll(cleaned, r.from, r.to)
		}

		if len(cleaned) > 50 {
			var meaningful []string
			for _, part := range strings.Fields(cleaned) {
				lower := strings.ToLower(part)
				if strings.Contains(lower, "generic") || strings.Contains(lower, "controller") || strings.Contains(lower, "device") {
					continue
				}
				meaningful = append(meaningful, part)
				if len(meaningful) >= 3 {
					break
				}
			}
			if len(meaningful) > 0 {
				cleaned = strings.Join(meaningful, " ")
			}
		}
		return cleaned
	}

	lower := strings.ToLower(deviceName)
	switch {
	case strings.Contains(lower, "usb"):
		return "USB Audio Device"
	case strings.Contains(lower, "hdmi"):
		for _, n := range []string{"1", "2", "3"} {
			if strings.Contains(deviceName, n) {
				return "HDMI Output " + n
			}
		}
		return "HDMI Output"
	case strings.Contains(lower, "analog"):
		if strings.Contains(lower, "input") || strings.Contains(lower, "source") {
			return "Built-in Microphone"
		}
		return "Built-in Speakers"
	case strings.Contains(lower, "digital"):
		return "Digital Audio"
	}

	if description != "" {
		return description
	}
	return "Audio Device"
}
