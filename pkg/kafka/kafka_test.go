package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/resilience"
)

type sample struct {
	URL  string `json:"url"`
	TopK int    `json:"top_k"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"url":"https://example.com","top_k":5}`))
	require.NoError(t, err)
	assert.Equal(t, sample{URL: "https://example.com", TopK: 5}, got)

	_, err = DecodeJSON[sample]([]byte(`{not json`))
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	msg, err := encode(Event{Key: "k", Value: sample{URL: "u", TopK: 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), msg.Key)
	assert.JSONEq(t, `{"url":"u","top_k":1}`, string(msg.Value))

	_, err = encode(Event{Key: "bad", Value: make(chan int)})
	assert.Error(t, err)
}

// fakeReader serves queued messages, then io.EOF.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func testConsumer(r *fakeReader, handler MessageHandler) *Consumer {
	c := newConsumer(r, "test", handler)
	c.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	c.fetchPause = time.Millisecond
	return c
}

func TestConsumer_CommitsHandledMessages(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("a")},
		{Offset: 2, Value: []byte("b")},
	}}
	var seen []string
	c := testConsumer(r, func(_ context.Context, _, value []byte) error {
		seen = append(seen, string(value))
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestConsumer_RetriesThenLeavesUncommitted(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("flaky")},
		{Offset: 2, Value: []byte("broken")},
	}}
	attempts := map[string]int{}
	c := testConsumer(r, func(_ context.Context, _, value []byte) error {
		attempts[string(value)]++
		if string(value) == "flaky" && attempts["flaky"] < 2 {
			return errors.New("transient")
		}
		if string(value) == "broken" {
			return errors.New("always")
		}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 2, attempts["flaky"])
	assert.Equal(t, 3, attempts["broken"])
	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumer_SurvivesFetchErrors(t *testing.T) {
	r := &fakeReader{
		fetchErrs: []error{errors.New("broker unreachable")},
		queue:     []kafka.Message{{Offset: 7}},
	}
	c := testConsumer(r, func(context.Context, []byte, []byte) error { return nil })

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}}}
	c := testConsumer(r, func(context.Context, []byte, []byte) error {
		t.Fatal("handler must not run after cancel")
		return nil
	})
	require.NoError(t, c.Start(ctx))
	assert.Empty(t, r.committed)
}
