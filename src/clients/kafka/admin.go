package kafka

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

// EnsureTopics creates the given topics if they do not exist yet.
// Replication factor -1 lets the broker apply its default, so the same
// call works against a single-node dev broker and a real cluster.
func EnsureTopics(ctx context.Context, driver *kgo.Client, logger zerolog.Logger, partitions int32, topics ...string) error {
	adminClient := kadm.NewClient(driver)

	responses, err := adminClient.CreateTopics(ctx, partitions, -1, nil, topics...)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EIO).
			Wrapf(err, "can't issue CreateTopics for %v", topics)
	}

	for _, response := range responses.Sorted() {
		if response.Err == nil {
			logger.Info().Msgf("Created topic '%s' with %d partitions", response.Topic, partitions)
			continue
		}
		if errors.Is(response.Err, kerr.TopicAlreadyExists) {
			logger.Debug().Msgf("Topic '%s' already exists", response.Topic)
			continue
		}
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EIO).
			Wrapf(response.Err, "broker refused to create topic '%s'", response.Topic)
	}

	return nil
}
