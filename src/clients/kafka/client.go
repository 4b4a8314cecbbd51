package kafka

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

var ErrAlreadyStarted = errors.New("kafka client already started")

// Client owns one kgo.Client and its pre-validated option set. The
// driver is created on Start so construction stays side-effect free.
type Client struct {
	logger  zerolog.Logger
	options []kgo.Opt
	Driver  *kgo.Client
}

func newClient(options []kgo.Opt, logger zerolog.Logger) *Client {
	return &Client{
		logger:  logger,
		options: options,
		Driver:  nil,
	}
}

func (c *Client) Start(_ context.Context) error {
	if c.Driver != nil {
		return ErrAlreadyStarted
	}

	client, err := kgo.NewClient(c.options...)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINIT).
			Wrapf(err, "can't create a new Kafka client")
	}

	c.Driver = client
	return nil
}

func (c *Client) Stop(_ context.Context) {
	if c.Driver == nil {
		c.logger.Warn().Msg("Kafka client already stopped")
		return
	}

	c.Driver.Close()
	c.Driver = nil
}
