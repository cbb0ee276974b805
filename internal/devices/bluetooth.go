package devices

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

const (
	// Virtual device name prefixes. These identify synthesized entries
	// that require a card profile switch before the underlying bluez
	// device exists.
	hfpSinkPrefix   = "bt_hfp_sink_"
	hfpSourcePrefix = "bt_hfp_source_"

	bluezCardPrefix = "bluez_card."

	profileA2DP      = "a2dp-sink"
	profileA2DPSBCXQ = "a2dp-sink-sbc_xq"
	profileOff       = "off"
)

// Headset profiles in preference order. mSBC first, then CVSD, then the
// generic name.
var headsetProfiles = []string{
	"headset-head-unit-msbc",
	"headset-head-unit-cvsd",
	"headset-head-unit",
}

// bluetooth drives bluez card profile state through the sound gateway.
// Every operation queries card state fresh; profiles change underneath
// us whenever the user touches their audio settings.
type bluetooth struct {
	gateway ports.SoundGateway
	log     zerolog.Logger

	// sleep is replaceable in tests so the bounce delays do not slow
	// the suite down.
	sleep func(time.Duration)
}

func newBluetooth(gateway ports.SoundGateway, log zerolog.Logger) *bluetooth {
	return &bluetooth{
		gateway: gateway,
		log:     log.With().Str("component", "bluetooth").Logger(),
		sleep:   time.Sleep,
	}
}

// SwitchAllToHeadset puts every Bluetooth card into a microphone-capable
// profile. Cards already on a known headset profile are left alone;
// cards on A2DP or with undetectable profiles get the full bounce.
func (b *bluetooth) SwitchAllToHeadset() {
	cards, err := b.gateway.BluetoothCards()
	if err != nil {
		b.log.Warn().Err(err).Msg("could not enumerate bluetooth cards")
		return
	}

	for _, card := range cards {
		if len(card.Profiles) == 0 || card.ActiveProfile == profileA2DP {
			b.bounce(card.Name)
			continue
		}

		target := ""
		for _, p := range headsetProfiles {
			if _, ok := card.Profiles[p]; ok {
				target = p
				break
			}
		}
		switch {
		case target == "":
			b.bounce(card.Name)
		case card.ActiveProfile == target:
			b.log.Debug().Str("card", card.Name).Str("profile", target).Msg("already in headset mode")
		default:
			if err := b.gateway.SetCardProfile(card.Name, target); err != nil {
				b.log.Warn().Err(err).Str("card", card.Name).Msg("headset profile switch failed")
				continue
			}
			b.sleep(100 * time.Millisecond)
		}
	}
}

// bounce runs the headset → off → headset activation sequence. A plain
// profile switch is not enough on some adapters; the microphone path
// only comes up on a fresh profile activation, which requires a full
// disconnect in between. Empirically derived; treat as a heuristic, not
// a protocol guarantee.
func (b *bluetooth) bounce(card string) bool {
	if err := b.gateway.SetCardProfile(card, headsetProfiles[0]); err != nil {
		b.log.Warn().Err(err).Str("card", card).Msg("bounce step 1 failed")
		return false
	}
	b.sleep(500 * time.Millisecond)

	if err := b.gateway.SetCardProfile(card, profileOff); err != nil {
		b.log.Warn().Err(err).Str("card", card).Msg("bounce step 2 failed")
		return false
	}
	b.sleep(500 * time.Millisecond)

	if err := b.gateway.SetCardProfile(card, headsetProfiles[0]); err != nil {
		b.log.Warn().Err(err).Str("card", card).Msg("bounce step 3 failed")
		return false
	}
	b.sleep(1 * time.Second)

	b.log.Info().Str("card", card).Msg("bluetooth microphone activated")
	return true
}

// SwitchAllToA2DP restores every Bluetooth card to the high-quality
// output profile.
func (b *bluetooth) SwitchAllToA2DP() {
	cards, err := b.gateway.BluetoothCards()
	if err != nil {
		b.log.Warn().Err(err).Msg("could not enumerate bluetooth cards")
		return
	}

	for _, card := range cards {
		target := ""
		for _, p := range []string{profileA2DP, profileA2DPSBCXQ} {
			if _, ok := card.Profiles[p]; ok {
				target = p
				break
			}
		}
		if target == "" || card.ActiveProfile == target {
			continue
		}
		if err := b.gateway.SetCardProfile(card.Name, target); err != nil {
			b.log.Warn().Err(err).Str("card", card.Name).Msg("a2dp profile switch failed")
		}
	}
}

// resolveVirtual maps a bt_hfp_* virtual device name to the real bluez
// device it stands for, activating the headset profile first. Returns
// the input unchanged for non-virtual names.
func (b *bluetooth) resolveVirtual(name string) string {
	switch {
	case strings.HasPrefix(name, hfpSinkPrefix):
		id := strings.TrimPrefix(name, hfpSinkPrefix)
		b.bounce(bluezCardPrefix + id)
		b.sleep(500 * time.Millisecond)
		return "bluez_output." + id + ".1"
	case strings.HasPrefix(name, hfpSourcePrefix):
		id := strings.TrimPrefix(name, hfpSourcePrefix)
		b.bounce(bluezCardPrefix + id)
		b.sleep(500 * time.Millisecond)
		return "bluez_input." + id + ".0"
	}
	return name
}

// profileVariants synthesizes virtual handsfree sink/source entries for
// every Bluetooth card that supports both A2DP and a headset profile,
// so callers can offer "use this headset as a dictation mic" without
// juggling profiles themselves. The A2DP and HFP variants share the
// same hardware and are never both active.
func (b *bluetooth) profileVariants(sources, sinks []domain.AudioDevice) ([]domain.AudioDevice, []domain.AudioDevice) {
	cards, err := b.gateway.BluetoothCards()
	if err != nil {
		b.log.Debug().Err(err).Msg("no bluetooth card info for variants")
		return sources, sinks
	}

	for _, card := range cards {
		if !strings.HasPrefix(card.Name, bluezCardPrefix) {
			continue
		}
		id := strings.TrimPrefix(card.Name, bluezCardPrefix)

		hasA2DP, hasHFP := false, false
		for profile := range card.Profiles {
			if strings.HasPrefix(profile, "a2dp") {
				hasA2DP = true
			}
			if strings.HasPrefix(profile, "headset-head-unit") {
				hasHFP = true
			}
		}
		if !hasA2DP || !hasHFP {
			continue
		}

		base := b.deviceBaseName(id, sources, sinks)

		a2dpSink := "bluez_output." + id + ".1"
		if !containsDevice(sinks, a2dpSink) {
			sinks = append(sinks, domain.AudioDevice{
				Index:       9000 + len(sinks),
				Name:        a2dpSink,
				Description: base,
			})
		}
		if !containsDevice(sinks, hfpSinkPrefix+id) {
			sinks = append(sinks, domain.AudioDevice{
				Index:       9100 + len(sinks),
				Name:        hfpSinkPrefix + id,
				Description: "Handsfree (" + base + ")",
			})
		}
		if !containsDevice(sources, hfpSourcePrefix+id) {
			sources = append(sources, domain.AudioDevice{
				Index:       9200 + len(sources),
				Name:        hfpSourcePrefix + id,
				Description: "Handsfree (" + base + ")",
			})
		}
	}
	return sources, sinks
}

// deviceBaseName finds a friendly label for a Bluetooth device, trying
// existing device entries first and the card description second.
func (b *bluetooth) deviceBaseName(id string, sources, sinks []domain.AudioDevice) string {
	for _, d := range append(append([]domain.AudioDevice{}, sources...), sinks...) {
		if strings.Contains(d.Name, id) && strings.Contains(d.Name, "bluez") {
			desc := d.Description
			for _, suffix := range []string{" (Built-in)", " (Analog)", " (Digital)", " Stereo", " Mono"} {
				desc = strings.ReplaceAll(desc, suffix, "")
			}
			return desc
		}
	}
	if desc, err := b.gateway.CardDescription(bluezCardPrefix + id); err == nil && desc != "" {
		return desc
	}
	tail := id
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "Bluetooth Device " + tail
}

func containsDevice(devices []domain.AudioDevice, name string) bool {
	for _, d := range devices {
		if d.Name == name {
			return true
		}
	}
	return false
}
