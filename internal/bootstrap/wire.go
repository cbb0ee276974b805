package bootstrap

import (
	"github.com/rs/zerolog"

	"voxkey/internal/audio"
	"voxkey/internal/config"
	"voxkey/internal/devices"
	"voxkey/internal/history"
	"voxkey/internal/llm"
	"voxkey/internal/notify"
	"voxkey/internal/paste"
	"voxkey/internal/ports"
	"voxkey/internal/session"
	"voxkey/internal/stt"
	"voxkey/internal/transcribe"
)

// Services is the assembled runtime graph.
type Services struct {
	Settings    *config.Settings
	Gateway     ports.SoundGateway
	Devices     *devices.Manager
	Recorder    *audio.Recorder
	Session     *session.Session
	Transcriber *transcribe.Transcriber
	Processor   *llm.Processor
	History     ports.HistoryStore
	Paster      ports.Paster
	Notifier    ports.Notifier
}

// Build wires all backend dependencies. The hotkey source is probed
// separately by the caller because its failure handling differs (it is
// the only fatal startup error besides config).
func Build(events transcribe.Events, log zerolog.Logger) (Services, error) {
	settings, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return buildWith(settings, events, log)
}

func buildWith(settings *config.Settings, events transcribe.Events, log zerolog.Logger) (Services, error) {
	gateway := devices.NewGateway(log)

	deviceManager := devices.NewManager(gateway, log)
	dc := settings.Devices()
	deviceManager.Configure(dc.FourDeviceMode,
		dc.PreferredMic, dc.PreferredOutput,
		dc.DictatingMic, dc.DictatingOutput,
		dc.NormalMic, dc.NormalOutput)

	recorder := audio.NewRecorder(settings.SampleRate(), settings.Channels(), gateway, log)
	recSession := session.New(recorder, settings.MinRecordingDuration(), log)

	historyStore, err := history.NewStore(log)
	if err != nil {
		return Services{}, err
	}

	var completer ports.Completer
	if key := settings.APIKey(); key != "" {
		completer = llm.NewOpenAIClient(settings.BaseURL(), key, log)
	}
	processor := llm.NewProcessor(settings, completer, historyStore, log)

	engine := stt.NewClient(settings.STTEndpoint(), settings.SampleRate(), settings.STTMaxRetries(), log)
	transcriber := transcribe.New(engine, processor, events, settings.Language(), log)

	clip := paste.NewClipboard(log)

	return Services{
		Settings:    settings,
		Gateway:     gateway,
		Devices:     deviceManager,
		Recorder:    recorder,
		Session:     recSession,
		Transcriber: transcriber,
		Processor:   processor,
		History:     historyStore,
		Paster:      paste.NewPaster(clip, log),
		Notifier:    notify.NewDesktop(log),
	}, nil
}
