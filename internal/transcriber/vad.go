// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transcriber

import (
	"github.com/streamer45/silero-vad-go/speech"

	"github.com/rapidaai/clipcast/pkg/commons"
)

// VoiceActivityGate wraps the Silero VAD detector to decide utterance
// boundaries, satisfying spec §4.2's "voice-activity heuristic" without
// the transcriber buffering audio beyond the current in-flight utterance.
type VoiceActivityGate struct {
	log      commons.Logger
	detector *speech.Detector
}

// NewVoiceActivityGate loads the Silero model from modelPath. sampleRate
// must match the canonical 16kHz PCM rate the Transcriber contract mandates.
func NewVoiceActivityGate(log commons.Logger, modelPath string, sampleRate int) (*VoiceActivityGate, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           sampleRate,
		Threshold:            0.5,
		MinSilenceDurationMs: 300,
		SpeechPadMs:          30,
	})
	if err != nil {
		return nil, err
	}
	return &VoiceActivityGate{log: log, detector: detector}, nil
}

// Segments reports completed speech segments detected in pcm, converting
// int16 samples to the float32 range Silero expects.
func (g *VoiceActivityGate) Segments(pcm []int16) ([]speech.Segment, error) {
	floats := make([]float32, len(pcm))
	for i, s := range pcm {
		floats[i] = float32(s) / 32768.0
	}
	return g.detector.Detect(floats)
}

// Close releases the underlying detector.
func (g *VoiceActivityGate) Close() error {
	return g.detector.Destroy()
}
