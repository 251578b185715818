package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// gcpPublisher adapts a Pub/Sub publisher. With ordering enabled a failed
// publish pauses its key, so the key is resumed once the failure is observed
// and the retried row can go out on the next poll.
type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpResult{
		res:   p.Publisher.Publish(ctx, msg),
		owner: p.Publisher,
		key:   msg.OrderingKey,
	}
}

type gcpResult struct {
	res   *gcppubsub.PublishResult
	owner *gcppubsub.Publisher
	key   string
}

func (r *gcpResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.res == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.owner.ResumePublish(r.key)
	}
	return id, err
}
