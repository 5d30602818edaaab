// Package audio provides the PCM plumbing for the capture audio path:
// decoding Opus frames delivered by the browser, resampling, and framing
// the result as a WAV file for batch transcription.
package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Browser capture delivers 48 kHz mono Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 1
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
)

// OpusDecoder decodes a stream of Opus frames into little-endian int16 PCM.
// One decoder per stream; gopus keeps decoder state across consecutive
// frames, so frames from different streams must not share a decoder.
type OpusDecoder struct {
	dec *gopus.Decoder
}

// NewOpusDecoder creates a decoder configured for browser capture audio.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// Decode decodes one Opus frame into PCM bytes (little-endian int16).
func (d *OpusDecoder) Decode(frame []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(frame, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return int16sToBytes(pcm), nil
}

// SampleRate returns the decoder's output sample rate in Hz.
func (d *OpusDecoder) SampleRate() int { return opusSampleRate }

// int16sToBytes packs int16 samples into little-endian bytes.
func int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
