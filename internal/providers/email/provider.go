package email

import (
	"context"
	"errors"
)

var ErrNoRecipient = errors.New("email_no_recipient")

type Message struct {
	To       []string
	Subject  string
	TextBody string
}

type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

func validate(msg Message) error {
	if len(msg.To) == 0 || msg.To[0] == "" {
		return ErrNoRecipient
	}
	return nil
}
