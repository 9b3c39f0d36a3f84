package msg

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestSubscribe(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub1, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub2, err := uuid.NewUUID()
	assert.NilError(t, err)

	pubsub := NewPublisher(pidPub)
	ch1, err := pubsub.Subscribe(pidSub1, RunCompleted)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pidSub2, RunCompleted)
	assert.NilError(t, err)

	randValue := rand.Float64()
	assert.Equal(t, pubsub.Publish(RunCompleted, randValue), 2)

	for _, ch := range []<-chan Msg{ch1, ch2} {
		select {
		case incoming := <-ch:
			assert.Equal(t, incoming.Payload(), randValue, "subscriber did not recieve the correct published value")
			assert.Equal(t, incoming.PID(), pidPub)
			assert.Equal(t, incoming.Topic(), RunCompleted)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestSubscribeTwice(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()
	_, err := pubsub.Subscribe(pid, RunFailed)
	assert.NilError(t, err)
	_, err = pubsub.Subscribe(pid, RunFailed)
	assert.Assert(t, errors.Is(err, ErrSubscribed))
}

func TestTopicsAreSeparate(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), RunFailed)
	assert.NilError(t, err)

	assert.Equal(t, pubsub.Publish(RunCompleted, 1), 0)
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %v", m)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()
	ch, err := pubsub.Subscribe(pid, RunCompleted)
	assert.NilError(t, err)

	pubsub.Unsubscribe(pid)
	_, ok := <-ch
	assert.Assert(t, !ok, "channel should be closed")
	assert.Equal(t, pubsub.Publish(RunCompleted, 1), 0)
}

func TestForwardKeepsSender(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), RunFailed)
	assert.NilError(t, err)

	origin := uuid.New()
	pubsub.Forward(New(origin, RunFailed, "x"))
	m := <-ch
	assert.Equal(t, m.PID(), origin)
}

func TestPublishDropsWhenFull(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	_, err := pubsub.Subscribe(uuid.New(), RunCompleted)
	assert.NilError(t, err)

	for i := 0; i < bufferSize; i++ {
		assert.Equal(t, pubsub.Publish(RunCompleted, i), 1)
	}
	assert.Equal(t, pubsub.Publish(RunCompleted, -1), 0)
}
