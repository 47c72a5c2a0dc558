package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel carrying cart changes.
const DefaultChannel = "academy:cart-changes"

// Change announces that the cart stored under Key was written by Origin.
type Change struct {
	Key    string
	Origin string
}

// Encode writes c as {"key":..,"origin":..}.
func (c Change) Encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("key")
	e.Str(c.Key)
	e.FieldStart("origin")
	e.Str(c.Origin)
	e.ObjEnd()
	return e.Bytes()
}

// DecodeChange parses a message written by Change.Encode.
func DecodeChange(data []byte) (Change, error) {
	var c Change
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "key":
			c.Key, err = d.Str()
		case "origin":
			c.Origin, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return Change{}, errors.Wrap(err, "decode change")
	}
	if c.Key == "" {
		return Change{}, errors.New("change without key")
	}
	return c, nil
}

// Feed relays cart changes between instances sharing one Redis.
type Feed struct {
	client  *redis.Client
	channel string
	origin  string
	lg      *zap.Logger
}

// NewFeed returns a Feed publishing as origin. Messages from the same origin
// are ignored by Run.
func NewFeed(client *redis.Client, channel, origin string, lg *zap.Logger) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Feed{client: client, channel: channel, origin: origin, lg: lg}
}

// Broadcast announces a change of the cart under key.
func (f *Feed) Broadcast(ctx context.Context, key string) error {
	msg := Change{Key: key, Origin: f.origin}.Encode()
	if err := f.client.Publish(ctx, f.channel, msg).Err(); err != nil {
		return errors.Wrap(err, "publish change")
	}
	return nil
}

// Run calls handle for every change published by other origins until ctx is
// done. Handler errors are logged.
func (f *Feed) Run(ctx context.Context, handle func(ctx context.Context, key string) error) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed so no change published after
	// Run starts is missed.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "subscribe")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, err := DecodeChange([]byte(msg.Payload))
			if err != nil {
				f.lg.Warn("Dropping malformed change", zap.Error(err))
				continue
			}
			if c.Origin == f.origin {
				continue
			}
			if err := handle(ctx, c.Key); err != nil {
				f.lg.Warn("Apply remote change",
					zap.String("key", c.Key),
					zap.String("origin", c.Origin),
					zap.Error(err),
				)
			}
		}
	}
}
