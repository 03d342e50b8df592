package voice

import "context"

// UnavailableProvider models a runtime without speech capture or synthesis.
type UnavailableProvider struct{}

func NewUnavailableProvider() *UnavailableProvider { return &UnavailableProvider{} }

func (UnavailableProvider) StartSession(context.Context, string) (STTSession, <-chan STTEvent, error) {
	return nil, nil, ErrUnavailable
}

func (UnavailableProvider) StartStream(context.Context, TTSSettings) (TTSStream, error) {
	return nil, ErrUnavailable
}
