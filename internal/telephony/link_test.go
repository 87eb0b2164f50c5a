package telephony

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/testutil"
)

type receiveResult struct {
	frames    chan []byte
	streamIDs chan string
	done      chan error
	link      chan *Link
}

func startReceiver(t *testing.T, ctx context.Context, opts Options) (*websocket.Conn, *receiveResult) {
	t.Helper()
	res := &receiveResult{
		frames:    make(chan []byte, 16),
		streamIDs: make(chan string, 1),
		done:      make(chan error, 1),
		link:      make(chan *Link, 1),
	}
	srv := testutil.NewWSServer(t, nil, func(_ *http.Request, conn *websocket.Conn) {
		link := NewLink(conn, zap.NewNop(), opts)
		res.link <- link
		res.done <- link.Receive(ctx, res.frames, res.streamIDs)
	})
	return testutil.Dial(t, srv.URL), res
}

func sendJSON(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func mediaMsg(track string, audio []byte) string {
	return `{"event":"media","streamSid":"SS1","media":{"track":"` + track + `","payload":"` +
		base64.StdEncoding.EncodeToString(audio) + `"}}`
}

func TestReceivePublishesStreamIDAndFrames(t *testing.T) {
	client, res := startReceiver(t, context.Background(), Options{FrameSize: 4})

	sendJSON(t, client, `{"event":"connected","protocol":"Call"}`)
	sendJSON(t, client, `{"event":"start","start":{"streamSid":"SS123"}}`)

	select {
	case id := <-res.streamIDs:
		assert.Equal(t, "SS123", id)
	case <-time.After(2 * time.Second):
		t.Fatal("stream id not published")
	}

	sendJSON(t, client, mediaMsg(TrackInbound, []byte{1, 2, 3}))
	sendJSON(t, client, mediaMsg(TrackOutbound, []byte{9, 9, 9, 9}))
	sendJSON(t, client, mediaMsg(TrackInbound, []byte{4, 5, 6, 7, 8, 9}))

	var got [][]byte
	for len(got) < 2 {
		select {
		case f := <-res.frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d frames, want 2", len(got))
		}
	}
	assert.Equal(t, []byte{1, 2, 3, 4}, got[0])
	assert.Equal(t, []byte{5, 6, 7, 8}, got[1])

	sendJSON(t, client, `{"event":"stop","stop":{"callSid":"CA1"}}`)
	select {
	case err := <-res.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not return on stop")
	}
}

func TestReceiveSkipsMalformedAndRepeatedStart(t *testing.T) {
	client, res := startReceiver(t, context.Background(), Options{FrameSize: 2})

	sendJSON(t, client, `garbage`)
	sendJSON(t, client, `{"event":"bogus"}`)
	sendJSON(t, client, `{"event":"start","start":{"streamSid":"SS1"}}`)
	sendJSON(t, client, `{"event":"start","start":{"streamSid":"SS2"}}`)
	sendJSON(t, client, `{"event":"media","media":{"track":"inbound","payload":"%%%"}}`)
	sendJSON(t, client, mediaMsg(TrackInbound, []byte{7, 7}))

	select {
	case f := <-res.frames:
		assert.Equal(t, []byte{7, 7}, f)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered after malformed messages")
	}
	assert.Equal(t, "SS1", <-res.streamIDs)
	assert.Empty(t, res.streamIDs)
}

func TestReceiveNormalCloseReturnsNil(t *testing.T) {
	client, res := startReceiver(t, context.Background(), Options{FrameSize: 4})
	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	select {
	case err := <-res.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not return on close")
	}
}

func TestReceiveStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client, res := startReceiver(t, ctx, Options{FrameSize: 2})

	// frames has room for 16; fill past it so the send blocks
	for i := 0; i < 20; i++ {
		sendJSON(t, client, mediaMsg(TrackInbound, []byte{byte(i), byte(i)}))
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-res.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("receive ignored cancellation")
	}
}

func TestSendClearAndMedia(t *testing.T) {
	client, res := startReceiver(t, context.Background(), Options{FrameSize: 4})
	link := <-res.link

	require.NoError(t, link.SendClear("SS123"))
	assert.JSONEq(t, `{"event":"clear","streamSid":"SS123"}`, string(testutil.ReadText(t, client, 2*time.Second)))

	require.NoError(t, link.SendMedia("SS123", []byte{0xAA}))
	assert.JSONEq(t,
		`{"event":"media","streamSid":"SS123","media":{"payload":"qg=="}}`,
		string(testutil.ReadText(t, client, 2*time.Second)))

	require.NoError(t, link.Close())
	require.NoError(t, link.Close())
}

func TestKeepaliveAnswersPings(t *testing.T) {
	client, res := startReceiver(t, context.Background(), Options{
		FrameSize:    4,
		PingInterval: 20 * time.Millisecond,
		PongTimeout:  200 * time.Millisecond,
	})

	pings := make(chan struct{}, 8)
	client.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return client.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	// the client only processes control frames while reading
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, res.done, "receiver should stay up while pongs arrive")
}
