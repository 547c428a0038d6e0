package worker

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestMessageID_UniqueWithinBatchWithoutMetadata(t *testing.T) {
	t.Parallel()

	first := messageID(&nats.Msg{Subject: "pollypress.jobs"}, 0)
	second := messageID(&nats.Msg{Subject: "pollypress.jobs"}, 1)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "pollypress.jobs#0", first)
}
