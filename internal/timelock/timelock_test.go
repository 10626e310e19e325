package timelock

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/goldengate/goldengate/internal/notify"
	"github.com/goldengate/goldengate/internal/timelockstore"
)

type capturingBroker struct {
	sent []notify.Notification
}

func (b *capturingBroker) Send(n notify.Notification) error {
	b.sent = append(b.sent, n)
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *capturingBroker) {
	broker := &capturingBroker{}
	store := timelockstore.NewMemory()
	return NewCoordinator(store, broker, zaptest.NewLogger(t)), broker
}

func TestRequestGrantsAfterDurationElapses(t *testing.T) {
	coord, broker := newTestCoordinator(t)
	req := &ggrequest.Request{Method: "POST", Host: "gateway.example.com", Header: http.Header{}}

	granted, id, err := coord.Request(context.Background(), req, Grant{
		Entity:     "alice",
		Duration:   20 * time.Millisecond,
		Template:   "Request {{ request_uuid }} executes at {{ request_execution_time }} in {{ time_lock_duration }} minutes",
		Recipients: []string{"ops@example.com"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NotEmpty(t, id)
	require.Len(t, broker.sent, 1)
	assert.Contains(t, broker.sent[0].Message, id)
}

func TestCancelWakesPendingRequestEarly(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	req := &ggrequest.Request{Method: "POST", Host: "gateway.example.com", Header: http.Header{}}

	queuedID := make(chan string, 1)
	resultCh := make(chan bool, 1)
	go func() {
		granted, _, err := coord.Request(context.Background(), req, Grant{
			Duration: time.Hour,
			Template: "{{ request_uuid }}",
		}, func(id string) { queuedID <- id })
		require.NoError(t, err)
		resultCh <- granted
	}()

	var id string
	select {
	case id = <-queuedID:
	case <-time.After(time.Second):
		t.Fatal("grant was never queued")
	}
	require.NoError(t, coord.Cancel(id))

	select {
	case granted := <-resultCh:
		assert.False(t, granted, "a cancelled grant must not be granted")
	case <-time.After(time.Second):
		t.Fatal("cancel did not wake the pending request")
	}
}

func TestRequestContextCancellationAbortsWait(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	req := &ggrequest.Request{Header: http.Header{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := coord.Request(ctx, req, Grant{Duration: time.Hour, Template: "{{ request_uuid }}"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancelUnknownIDErrors(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	err := coord.Cancel("missing")
	assert.Error(t, err)
}

func TestSanitizedRequestInformationRedactsSignature(t *testing.T) {
	req := &ggrequest.Request{
		Header: http.Header{},
		Query: ggrequest.Query{
			{Key: "Action", Value: "ListUsers"},
			{Key: "Signature", Value: "top-secret-bytes"},
		},
	}
	info, err := sanitizedRequestInformation(req)
	require.NoError(t, err)
	assert.NotContains(t, info, "top-secret-bytes")
	assert.Contains(t, info, "ListUsers")
}
