package app

import (
	"fmt"
	"strings"

	"github.com/ent0n29/mockinterview/internal/config"
	"github.com/ent0n29/mockinterview/internal/voice"
)

type voiceSetup struct {
	sttProvider      voice.STTProvider
	ttsProvider      voice.TTSProvider
	resolvedProvider string
	detail           string
}

// resolveVoiceProviders picks the capture and synthesis backends. "none" runs typed-only,
// which the practice session reports once per session as a degraded notice.
func resolveVoiceProviders(cfg config.Config) (voiceSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if mode == "" {
		mode = "mock"
	}

	switch mode {
	case "mock":
		p := voice.NewMockProvider()
		return voiceSetup{
			sttProvider:      p,
			ttsProvider:      p,
			resolvedProvider: "mock",
			detail:           "mock (scripted capture, text-bytes synthesis)",
		}, nil
	case "none":
		p := voice.NewUnavailableProvider()
		return voiceSetup{
			sttProvider:      p,
			ttsProvider:      p,
			resolvedProvider: "none",
			detail:           "typed answers only",
		}, nil
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected mock|none)", cfg.VoiceProvider)
	}
}
