package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/modelmesh"
	"github.com/BaSui01/modelmesh/testutil"
	"github.com/BaSui01/modelmesh/testutil/fixtures"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialEvents(t *testing.T, hub *modelmesh.EventHub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewEventsHandler(hub, nil, zap.NewNop()).HandleEvents)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	// 等待服务端完成订阅
	testutil.AssertEventuallyTrue(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second)
	return conn
}

func TestEventsHandler_StreamsRoundEvents(t *testing.T) {
	core := newTestCore(t)
	conn := dialEvents(t, core.Events(), "")

	ctx := testutil.TestContext(t)
	for _, c := range fixtures.TwoNodeRound() {
		require.NoError(t, core.SubmitContribution(ctx, c))
	}
	_, err := core.CloseRound(ctx)
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var ev modelmesh.Event
	require.NoError(t, wsjson.Read(readCtx, conn, &ev))

	assert.Equal(t, modelmesh.EventRoundClosed, ev.Type)
	assert.Equal(t, uint64(1), ev.Round)
	assert.Equal(t, 2, ev.Participants)
}

func TestEventsHandler_Filter(t *testing.T) {
	core := newTestCore(t)
	conn := dialEvents(t, core.Events(), "?types=generation.completed")

	ctx := testutil.TestContext(t)
	// 被过滤的 round.skipped
	_, err := core.CloseRound(ctx)
	require.Error(t, err)
	_, err = core.Evolve(ctx)
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var ev modelmesh.Event
	require.NoError(t, wsjson.Read(readCtx, conn, &ev))

	assert.Equal(t, modelmesh.EventGenerationCompleted, ev.Type)
	assert.Equal(t, uint64(1), ev.Generation)
}

func TestEventsHandler_HubClosed(t *testing.T) {
	hub := modelmesh.NewEventHub(4)
	conn := dialEvents(t, hub, "")

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestEventsHandler_ClientDisconnectUnsubscribes(t *testing.T) {
	hub := modelmesh.NewEventHub(4)
	t.Cleanup(hub.Close)
	conn := dialEvents(t, hub, "")

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	testutil.AssertEventuallyTrue(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second)
}

func TestParseEventFilter(t *testing.T) {
	assert.Nil(t, parseEventFilter(""))
	f := parseEventFilter("round.closed, expert.transitioned,,")
	assert.Len(t, f, 2)
	assert.True(t, f[modelmesh.EventRoundClosed])
	assert.True(t, f[modelmesh.EventExpertTransitioned])
}
