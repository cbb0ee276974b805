package devices

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

const (
	SystemPulseAudio = "pulseaudio"
	SystemPipeWire   = "pipewire"
	SystemUnknown    = "unknown"
)

// Runner executes an external command and returns its stdout. Injected
// so gateways can be tested against canned CLI output.
type Runner func(timeout time.Duration, name string, args ...string) (string, error)

func execRunner(timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Gateway talks to the running sound server through its CLI tools. All
// queries hit the live system; nothing is cached because default
// devices and card profiles are externally mutable at any time.
type Gateway struct {
	system string
	run    Runner
	log    zerolog.Logger
}

var _ ports.SoundGateway = (*Gateway)(nil)

// NewGateway detects the active sound server (wpctl means PipeWire,
// pactl means PulseAudio) and returns a gateway bound to it.
func NewGateway(log zerolog.Logger) *Gateway {
	return newGateway(execRunner, log)
}

func newGateway(run Runner, log zerolog.Logger) *Gateway {
	g := &Gateway{run: run, log: log.With().Str("component", "sound-gateway").Logger()}
	g.system = g.detectSystem()
	g.log.Info().Str("system", g.system).Msg("audio system detected")
	return g
}

func (g *Gateway) detectSystem() string {
	if _, err := g.run(2*time.Second, "wpctl", "--version"); err == nil {
		return SystemPipeWire
	}
	if _, err := g.run(2*time.Second, "pactl", "--version"); err == nil {
		return SystemPulseAudio
	}
	return SystemUnknown
}

func (g *Gateway) System() string { return g.system }

func (g *Gateway) Sinks() ([]domain.AudioDevice, error) {
	switch g.system {
	case SystemPulseAudio:
		return g.pulseDevices("sinks")
	case SystemPipeWire:
		return g.pipewireDevices("Sinks:", "sink")
	}
	return nil, fmt.Errorf("unsupported audio system %q", g.system)
}

func (g *Gateway) Sources() ([]domain.AudioDevice, error) {
	switch g.system {
	case SystemPulseAudio:
		return g.pulseDevices("sources")
	case SystemPipeWire:
		return g.pipewireDevices("Sources:", "source")
	}
	return nil, fmt.Errorf("unsupported audio system %q", g.system)
}

// pulseDevices lists sinks or sources via `pactl list short`, tagging
// the current default. Monitor sources are skipped.
func (g *Gateway) pulseDevices(kind string) ([]domain.AudioDevice, error) {
	defaultName := ""
	if kind == "sinks" {
		defaultName, _ = g.DefaultSink()
	} else {
		defaultName, _ = g.DefaultSource()
	}

	out, err := g.run(5*time.Second, "pactl", "list", "short", kind)
	if err != nil {
		return nil, err
	}

	var devices []domain.AudioDevice
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		name := parts[1]
		if strings.HasSuffix(name, ".monitor") {
			continue
		}
		devices = append(devices, domain.AudioDevice{
			Index:       index,
			Name:        name,
			Description: CleanDeviceName(g.deviceDescription(name, kind), name),
			IsDefault:   name == defaultName,
		})
	}
	return devices, nil
}

// deviceDescription digs the human-readable label out of the verbose
// `pactl list` output. Falls back to the technical name.
func (g *Gateway) deviceDescription(name, kind string) string {
	out, err := g.run(5*time.Second, "pactl", "list", kind)
	if err != nil {
		return name
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "Name: "+name) {
			continue
		}
		for j := i + 1; j < i+10 && j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if strings.HasPrefix(trimmed, "Description:") {
				return strings.TrimSpace(strings.TrimPrefix(trimmed, "Description:"))
			}
		}
		break
	}
	return name
}

// pipewireDevices parses a section of `wpctl status`. PipeWire exposes
// devices by numeric object id, so names are synthesized as
// "<kind>_<id>".
func (g *Gateway) pipewireDevices(section, kind string) ([]domain.AudioDevice, error) {
	out, err := g.run(5*time.Second, "wpctl", "status")
	if err != nil {
		return nil, err
	}

	var devices []domain.AudioDevice
	inSection := false
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, section):
			inSection = true
		case inSection && strings.TrimSpace(line) == "":
			return devices, nil
		case inSection && strings.Contains(line, "│"):
			parts := strings.Split(line, "│")
			if len(parts) < 2 {
				continue
			}
			info := strings.TrimSpace(parts[1])
			if strings.Contains(info, ".monitor") {
				continue
			}
			isDefault := strings.Contains(info, "*")
			idx := strings.Index(info, ". ")
			if idx < 0 {
				continue
			}
			indexText := strings.TrimSpace(strings.ReplaceAll(info[:idx], "*", ""))
			index, err := strconv.Atoi(indexText)
			if err != nil {
				continue
			}
			desc := strings.TrimSpace(info[idx+2:])
			devices = append(devices, domain.AudioDevice{
				Index:       index,
				Name:        fmt.Sprintf("%s_%d", kind, index),
				Description: CleanDeviceName(desc, fmt.Sprintf("%s_%d", kind, index)),
				IsDefault:   isDefault,
			})
		}
	}
	return devices, nil
}

func (g *Gateway) DefaultSink() (string, error) {
	return g.defaultDevice("Default Sink:", func(d domain.AudioDevice) bool { return d.IsDefault }, g.Sinks)
}

func (g *Gateway) DefaultSource() (string, error) {
	return g.defaultDevice("Default Source:", func(d domain.AudioDevice) bool { return d.IsDefault }, g.Sources)
}

func (g *Gateway) defaultDevice(infoPrefix string, isDefault func(domain.AudioDevice) bool, list func() ([]domain.AudioDevice, error)) (string, error) {
	if g.system == SystemPulseAudio {
		out, err := g.run(5*time.Second, "pactl", "info")
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, infoPrefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, infoPrefix)), nil
			}
		}
		return "", fmt.Errorf("no %q line in pactl info", infoPrefix)
	}

	devices, err := list()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if isDefault(d) {
			return d.Name, nil
		}
	}
	return "", fmt.Errorf("no default device")
}

func (g *Gateway) SetDefaultSink(name string) error {
	switch g.system {
	case SystemPulseAudio:
		_, err := g.run(5*time.Second, "pactl", "set-default-sink", name)
		return err
	case SystemPipeWire:
		_, err := g.run(5*time.Second, "wpctl", "set-default", strings.TrimPrefix(name, "sink_"))
		return err
	}
	return fmt.Errorf("unsupported audio system %q", g.system)
}

func (g *Gateway) SetDefaultSource(name string) error {
	switch g.system {
	case SystemPulseAudio:
		_, err := g.run(5*time.Second, "pactl", "set-default-source", name)
		return err
	case SystemPipeWire:
		_, err := g.run(5*time.Second, "wpctl", "set-default", strings.TrimPrefix(name, "source_"))
		return err
	}
	return fmt.Errorf("unsupported audio system %q", g.system)
}

// MoveSinkInputs reroutes active playback streams so audio keeps
// playing through the new sink. PulseAudio only; PipeWire follows the
// default on its own.
func (g *Gateway) MoveSinkInputs(sink string) error {
	if g.system != SystemPulseAudio {
		return nil
	}
	out, err := g.run(5*time.Second, "pactl", "list", "short", "sink-inputs")
	if err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		index := strings.Split(line, "\t")[0]
		if _, err := g.run(3*time.Second, "pactl", "move-sink-input", index, sink); err != nil {
			g.log.Debug().Err(err).Str("stream", index).Msg("could not move stream")
		}
	}
	return nil
}

func (g *Gateway) SuspendSource(name string, suspend bool) error {
	flag := "0"
	if suspend {
		flag = "1"
	}
	_, err := g.run(5*time.Second, "pactl", "suspend-source", name, flag)
	return err
}

// SourceActive reports whether the named source exists and is not
// suspended, per `pactl list short sources`.
func (g *Gateway) SourceActive(name string) (bool, error) {
	out, err := g.run(5*time.Second, "pactl", "list", "short", "sources")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.Contains(line, name) {
			continue
		}
		return !strings.Contains(line, "SUSPENDED"), nil
	}
	return false, nil
}

// BluetoothCards parses `pactl list cards` for bluez cards, capturing
// the active profile and the available profile table.
func (g *Gateway) BluetoothCards() ([]domain.BluetoothCard, error) {
	out, err := g.run(10*time.Second, "pactl", "list", "cards")
	if err != nil {
		return nil, err
	}

	var cards []domain.BluetoothCard
	var current *domain.BluetoothCard
	inProfiles := false

	flush := func() {
		if current != nil && strings.Contains(current.Name, "bluez") {
			cards = append(cards, *current)
		}
		current = nil
		inProfiles = false
	}

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Card #"):
			flush()
			current = &domain.BluetoothCard{Profiles: map[string]string{}}
		case current == nil:
		case strings.HasPrefix(trimmed, "Name: "):
			current.Name = strings.TrimPrefix(trimmed, "Name: ")
		case strings.HasPrefix(trimmed, "Active Profile: "):
			current.ActiveProfile = strings.TrimPrefix(trimmed, "Active Profile: ")
			inProfiles = false
		case strings.HasPrefix(trimmed, "Profiles:"):
			inProfiles = true
		case inProfiles && strings.HasPrefix(line, "\t\t") && strings.Contains(trimmed, ":"):
			parts := strings.SplitN(trimmed, ":", 2)
			current.Profiles[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		case inProfiles && trimmed != "" && !strings.HasPrefix(line, "\t"):
			inProfiles = false
		}
	}
	flush()

	// `pactl list cards short` sometimes shows cards the verbose parse
	// missed mid-negotiation.
	if short, err := g.run(5*time.Second, "pactl", "list", "cards", "short"); err == nil {
		for _, line := range strings.Split(strings.TrimSpace(short), "\n") {
			if !strings.Contains(line, "bluez") {
				continue
			}
			parts := strings.Split(line, "\t")
			if len(parts) < 2 {
				continue
			}
			name := parts[1]
			known := false
			for _, c := range cards {
				if c.Name == name {
					known = true
					break
				}
			}
			if !known {
				cards = append(cards, domain.BluetoothCard{Name: name, Profiles: map[string]string{}})
			}
		}
	}
	return cards, nil
}

func (g *Gateway) SetCardProfile(card, profile string) error {
	_, err := g.run(10*time.Second, "pactl", "set-card-profile", card, profile)
	return err
}

// CardDescription extracts device.description for a card, for labeling
// synthesized Bluetooth profile variants.
func (g *Gateway) CardDescription(card string) (string, error) {
	out, err := g.run(5*time.Second, "pactl", "list", "cards")
	if err != nil {
		return "", err
	}
	inCard := false
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(line, card):
			inCard = true
		case inCard && strings.HasPrefix(trimmed, "device.description = "):
			return strings.Trim(strings.TrimPrefix(trimmed, "device.description = "), `"`), nil
		case inCard && strings.HasPrefix(line, "Card #"):
			return "", fmt.Errorf("card %q has no description", card)
		}
	}
	return "", fmt.Errorf("card %q not found", card)
}
