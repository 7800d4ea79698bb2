//go:build headless

package hostdev

import "io"

type audioOut struct{}

func openAudio(sampleRate int, src io.Reader) (*audioOut, error) {
	return &audioOut{}, nil
}

func (a *audioOut) Close() error {
	return nil
}
