package services

import (
	"context"

	pubnub "github.com/pubnub/go"
)

// Publisher delivers one message to one destination channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

// PubNubPublisher sends through the PubNub realtime transport.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(_ context.Context, channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}
