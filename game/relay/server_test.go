package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/arena-relay/game/world"
)

type testServer struct {
	*Server
	cancel context.CancelFunc
	errc   chan error
}

func startServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	var seq atomic.Int64
	if opts.NewID == nil {
		opts.NewID = func() string {
			return fmt.Sprintf("p%d", seq.Add(1))
		}
	}
	if opts.Bounds == (world.Bounds{}) {
		opts.Bounds = world.NewBounds(200, 100)
	}

	s := NewServer(opts)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	ts := &testServer{Server: s, cancel: cancel, errc: errc}
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return ts
}

// flush waits until everything queued so far has been processed
func (ts *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.query(ctx, func() {}))
}

func (ts *testServer) connect(t *testing.T) (string, *fakeConn) {
	t.Helper()
	c := &fakeConn{}
	id, err := ts.Connect(c)
	require.NoError(t, err)
	return id, c
}

func (ts *testServer) send(id, frame string) {
	ts.Receive(id, []byte(frame))
}

func TestServer_ConnectSendsInit(t *testing.T) {
	ts := startServer(t, Options{})

	id, c := ts.connect(t)
	ts.flush(t)

	msgs := c.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "init", msgs[0]["type"])
	assert.Equal(t, id, msgs[0]["id"])
}

func TestServer_DefaultIDsAreUnique(t *testing.T) {
	s := NewServer(Options{})

	a, b := s.newID(), s.newID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestServer_RoomReadinessStartsGame(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	b, cb := ts.connect(t)

	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.send(b, `{"type":"player_name","name":"Bob"}`)
	ts.flush(t)

	joinedA := ca.ofType(t, "room_player_joined")
	require.Len(t, joinedA, 1)
	assert.Equal(t, b, joinedA[0]["id"])
	assert.Equal(t, "Bob", joinedA[0]["name"])

	joinedB := cb.ofType(t, "room_player_joined")
	require.Len(t, joinedB, 1)
	assert.Equal(t, a, joinedB[0]["id"])
	assert.Equal(t, "Alice", joinedB[0]["name"])
	assert.Equal(t, false, joinedB[0]["ready"])

	ts.send(a, `{"type":"player_ready","ready":true}`)
	ts.flush(t)
	assert.Empty(t, ca.ofType(t, "start_game"))
	assert.Len(t, ca.ofType(t, "player_ready_status"), 1)
	assert.Len(t, cb.ofType(t, "player_ready_status"), 1)

	ts.send(b, `{"type":"player_ready","ready":true}`)
	ts.flush(t)
	assert.Len(t, ca.ofType(t, "start_game"), 1)
	assert.Len(t, cb.ofType(t, "start_game"), 1)
}

func TestServer_SoloReadyNeverStarts(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.send(a, `{"type":"player_ready","ready":true}`)
	ts.flush(t)

	assert.Empty(t, ca.ofType(t, "start_game"))
}

func TestServer_MalformedFrameKeepsConnection(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	b, cb := ts.connect(t)
	ts.send(b, `{"type":"player_name","name":"Bob"}`)

	ts.send(a, `not json`)
	ts.send(a, `{"type":"player_name","name":42}`)
	ts.send(a, `{"type":"player_ready","ready":"yes"}`)
	ts.send(a, `{"type":"teleport"}`)
	ts.send(a, `{"name":"no type"}`)
	ts.flush(t)

	assert.False(t, ca.isClosed())
	assert.Len(t, cb.ofType(t, "room_player_joined"), 0)

	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.flush(t)
	assert.Len(t, cb.ofType(t, "room_player_joined"), 1)
}

func TestServer_EnterGameMovesPlayerOutOfRoom(t *testing.T) {
	ts := startServer(t, Options{})

	a, _ := ts.connect(t)
	b, cb := ts.connect(t)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.send(b, `{"type":"player_name","name":"Bob"}`)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)
	ts.flush(t)

	roster, err := ts.Roster(context.Background())
	require.NoError(t, err)
	require.Len(t, roster.Room, 1)
	assert.Equal(t, b, roster.Room[0].ID)
	require.Len(t, roster.Active, 1)
	assert.Equal(t, a, roster.Active[0].ID)

	// leaving the room for the game is silent
	assert.Empty(t, cb.ofType(t, "room_player_left"))
}

func TestServer_GameJoinAndRelay(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	b, cb := ts.connect(t)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)
	ts.send(b, `{"type":"enter_game","name":"Bob"}`)
	ts.flush(t)

	require.Len(t, ca.ofType(t, "game_init"), 1)
	require.Len(t, cb.ofType(t, "game_init"), 1)

	announced := ca.ofType(t, "player_joined")
	require.Len(t, announced, 1)
	assert.Equal(t, b, announced[0]["id"])
	assert.Equal(t, "Bob", announced[0]["name"])

	catchUp := cb.ofType(t, "player_joined")
	require.Len(t, catchUp, 1)
	assert.Equal(t, a, catchUp[0]["id"])

	ts.send(a, fmt.Sprintf(`{"type":"position_update","id":%q,"position":{"x":1,"y":2},"rotation":0.5}`, b))
	ts.send(a, `{"type":"shoot","angle":1.2}`)
	ts.flush(t)

	moves := cb.ofType(t, "position_update")
	require.Len(t, moves, 1)
	assert.Equal(t, a, moves[0]["id"], "sender id overrides the client-supplied one")
	assert.Equal(t, 0.5, moves[0]["rotation"])

	shots := cb.ofType(t, "shoot")
	require.Len(t, shots, 1)
	assert.Equal(t, a, shots[0]["id"])

	assert.Empty(t, ca.ofType(t, "position_update"))
	assert.Empty(t, ca.ofType(t, "shoot"))
}

func TestServer_GameOverReachesSender(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	b, cb := ts.connect(t)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)
	ts.send(b, `{"type":"enter_game","name":"Bob"}`)
	ts.send(a, `{"type":"game_over","winner":"Alice","extra":[1,2]}`)
	ts.flush(t)

	for _, c := range []*fakeConn{ca, cb} {
		over := c.ofType(t, "game_over")
		require.Len(t, over, 1)
		assert.Equal(t, "Alice", over[0]["winner"])
		assert.NotContains(t, over[0], "id")
	}
}

func TestServer_DisconnectFromRoom(t *testing.T) {
	ts := startServer(t, Options{})

	a, _ := ts.connect(t)
	b, cb := ts.connect(t)
	c, cc := ts.connect(t)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.send(b, `{"type":"player_name","name":"Bob"}`)
	ts.send(c, `{"type":"player_name","name":"Carol"}`)
	ts.send(b, `{"type":"player_ready","ready":true}`)
	ts.send(c, `{"type":"player_ready","ready":true}`)
	ts.flush(t)
	require.Empty(t, cb.ofType(t, "start_game"))

	ts.Disconnect(a)
	ts.flush(t)

	left := cb.ofType(t, "room_player_left")
	require.Len(t, left, 1)
	assert.Equal(t, a, left[0]["id"])
	assert.Len(t, cb.ofType(t, "start_game"), 1)
	assert.Len(t, cc.ofType(t, "start_game"), 1)

	st, err := ts.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.RoomPlayers)
	assert.Equal(t, 2, st.Connections)
}

func TestServer_DisconnectFromGame(t *testing.T) {
	ts := startServer(t, Options{})

	a, _ := ts.connect(t)
	b, cb := ts.connect(t)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)
	ts.send(b, `{"type":"enter_game","name":"Bob"}`)
	ts.flush(t)

	ts.Disconnect(a)
	ts.flush(t)

	left := cb.ofType(t, "player_left")
	require.Len(t, left, 1)
	assert.Equal(t, a, left[0]["id"])
	assert.Empty(t, cb.ofType(t, "room_player_left"))

	roster, err := ts.Roster(context.Background())
	require.NoError(t, err)
	require.Len(t, roster.Active, 1)
	assert.Equal(t, b, roster.Active[0].ID)
}

func TestServer_NameFromGameReturnsToRoom(t *testing.T) {
	ts := startServer(t, Options{SpawnInterval: time.Hour})

	a, _ := ts.connect(t)
	b, cb := ts.connect(t)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)
	ts.send(b, `{"type":"enter_game","name":"Bob"}`)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.flush(t)

	roster, err := ts.Roster(context.Background())
	require.NoError(t, err)
	require.Len(t, roster.Room, 1)
	assert.Equal(t, a, roster.Room[0].ID)
	require.Len(t, roster.Active, 1)
	assert.Equal(t, b, roster.Active[0].ID)

	left := cb.ofType(t, "player_left")
	require.Len(t, left, 1)
	assert.Equal(t, a, left[0]["id"])

	ts.Disconnect(a)
	ts.flush(t)

	st, err := ts.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.RoomPlayers)
	assert.Equal(t, 1, st.ActivePlayers)
	assert.Equal(t, 1, st.Connections)
	assert.Len(t, cb.ofType(t, "player_left"), 1)
}

func TestServer_DisconnectUnknownIsQuiet(t *testing.T) {
	ts := startServer(t, Options{})

	_, ca := ts.connect(t)
	ts.Disconnect("nobody")
	ts.flush(t)

	assert.Equal(t, []string{"init"}, ca.types(t))
}

func TestServer_SpawnsItemsForLonePlayer(t *testing.T) {
	ts := startServer(t, Options{SpawnInterval: 10 * time.Millisecond})

	a, ca := ts.connect(t)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)

	require.Eventually(t, func() bool {
		return len(ca.ofType(t, "spawn_item")) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	item := ca.ofType(t, "spawn_item")[0]
	assert.Contains(t, []any{"health", "ammo"}, item["item_type"])
	assert.NotEmpty(t, item["item_id"])

	ts.Disconnect(a)

	require.Eventually(t, func() bool {
		st, err := ts.Status(context.Background())
		return err == nil && !st.Spawning && st.Items == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServer_StopNotifiesAndCloses(t *testing.T) {
	ts := startServer(t, Options{SpawnInterval: time.Hour})

	a, ca := ts.connect(t)
	b, cb := ts.connect(t)
	_, idle := ts.connect(t)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.send(b, `{"type":"enter_game","name":"Bob"}`)
	ts.flush(t)

	ts.Stop()
	select {
	case <-ts.Done():
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
	require.NoError(t, <-ts.errc)

	assert.Len(t, ca.ofType(t, "server_shutdown"), 1)
	assert.Len(t, cb.ofType(t, "server_shutdown"), 1)
	assert.Empty(t, idle.ofType(t, "server_shutdown"))
	assert.True(t, ca.isClosed())
	assert.True(t, cb.isClosed())
	assert.True(t, idle.isClosed())
	assert.False(t, ts.spawner.Running())

	_, err := ts.Connect(&fakeConn{})
	assert.ErrorIs(t, err, ErrServerClosed)

	_, err = ts.Status(context.Background())
	assert.ErrorIs(t, err, ErrServerClosed)
}

func TestServer_ConnectRacingStopIsClosedOrRejected(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := NewServer(Options{SpawnInterval: time.Hour})
		errc := make(chan error, 1)
		go func() { errc <- s.Run(context.Background()) }()

		blocked := make(chan struct{})
		release := make(chan struct{})
		require.True(t, s.post(func() {
			close(blocked)
			<-release
		}))
		<-blocked

		s.Stop()

		c := &fakeConn{}
		result := make(chan error, 1)
		go func() {
			_, err := s.Connect(c)
			result <- err
		}()
		time.Sleep(time.Millisecond)
		close(release)

		<-s.Done()
		require.NoError(t, <-errc)

		select {
		case err := <-result:
			if err == nil {
				assert.True(t, c.isClosed(), "accepted connection must be closed by shutdown")
			} else {
				assert.ErrorIs(t, err, ErrServerClosed)
				assert.Empty(t, c.types(t), "rejected connection must not be registered")
			}
		case <-time.After(time.Second):
			t.Fatal("connect did not return after shutdown")
		}
	}
}

func TestServer_PostUnlessGivesUpOnCancel(t *testing.T) {
	s := NewServer(Options{QueueSize: 1})
	require.True(t, s.post(func() {}))

	cancel := make(chan struct{})
	result := make(chan bool, 1)
	go func() { result <- s.postUnless(func() {}, cancel) }()

	select {
	case <-result:
		t.Fatal("post into a full queue returned early")
	case <-time.After(20 * time.Millisecond):
	}

	close(cancel)
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("post ignored cancel")
	}
}

func TestServer_ContextCancelShutsDown(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	ts.send(a, `{"type":"enter_game","name":"Alice"}`)
	ts.flush(t)

	ts.cancel()
	<-ts.Done()

	assert.Len(t, ca.ofType(t, "server_shutdown"), 1)
	assert.True(t, ca.isClosed())
}

func TestServer_HandlerPanicIsFatal(t *testing.T) {
	ts := startServer(t, Options{})

	a, ca := ts.connect(t)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.flush(t)

	require.True(t, ts.post(func() { panic("boom") }))

	select {
	case err := <-ts.errc:
		assert.ErrorIs(t, err, ErrHandlerPanic)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}

	assert.Len(t, ca.ofType(t, "server_shutdown"), 1)
	assert.True(t, ca.isClosed())
}

func TestServer_Status(t *testing.T) {
	ts := startServer(t, Options{MaxPlayers: 8, SpawnInterval: time.Hour})

	a, _ := ts.connect(t)
	b, _ := ts.connect(t)
	ts.send(a, `{"type":"player_name","name":"Alice"}`)
	ts.send(b, `{"type":"enter_game","name":"Bob"}`)

	st, err := ts.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.RoomPlayers)
	assert.Equal(t, 1, st.ActivePlayers)
	assert.Equal(t, 2, st.Connections)
	assert.Equal(t, 8, st.MaxPlayers)
	assert.True(t, st.Spawning)
	assert.NotEmpty(t, st.Uptime)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h 0m 0s", FormatUptime(0))
	assert.Equal(t, "1h 2m 3s", FormatUptime(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "26h 0m 59s", FormatUptime(26*time.Hour+59*time.Second+400*time.Millisecond))
}
