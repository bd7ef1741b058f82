package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdugdh24/yuno-backend/internal/geo"
)

func newBroadcaster() (*Broadcaster, *recorder) {
	rec := &recorder{}
	return NewBroadcaster(NewRegistry(), rec, DefaultConfig()), rec
}

func TestOnLocationUpdate_NotifiesOthersInRange(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()

	c1, c2 := reg.Register(), reg.Register()
	_, err := b.OnLocationUpdate(c2, geo.Point{Lat: 12.98, Lng: 77.60}, 9, PublicProfile{Name: "Nine"})
	require.NoError(t, err)
	rec.reset()

	n, err := b.OnLocationUpdate(c1, geo.Point{Lat: 12.97, Lng: 77.59}, 5, PublicProfile{Name: "Five"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Empty(t, rec.to(c1))
	got := rec.to(c2)
	require.Len(t, got, 1)
	assert.Equal(t, EventNearbyUserUpdate, got[0].event)

	update, ok := got[0].payload.(NearbyUserUpdate)
	require.True(t, ok)
	assert.Equal(t, 5, update.UserID)
	assert.Equal(t, "Five", update.UserData.Name)
	assert.InDelta(t, 1.55, update.Distance, 0.02)
	assert.Equal(t, 12.97, update.Latitude)
}

func TestOnLocationUpdate_SkipsFarAnonymousAndSameUser(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()

	mover := reg.Register()
	far := reg.Register()
	anon := reg.Register()
	sameUser := reg.Register()
	edge := reg.Register()

	origin := geo.Point{Lat: 10, Lng: 10}
	_, err := b.OnLocationUpdate(far, geo.Point{Lat: 10.5, Lng: 10}, 2, PublicProfile{})
	require.NoError(t, err)
	_, err = b.OnLocationUpdate(sameUser, origin, 1, PublicProfile{})
	require.NoError(t, err)
	_, err = b.OnLocationUpdate(edge, geo.Point{Lat: 10 + 19.9/111.195, Lng: 10}, 3, PublicProfile{})
	require.NoError(t, err)
	rec.reset()

	n, err := b.OnLocationUpdate(mover, origin, 1, PublicProfile{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, rec.to(edge), 1)
	assert.Empty(t, rec.to(far))
	assert.Empty(t, rec.to(anon))
	assert.Empty(t, rec.to(sameUser))
}

func TestOnLocationUpdate_UnknownConnection(t *testing.T) {
	b, _ := newBroadcaster()
	_, err := b.OnLocationUpdate("missing", geo.Point{}, 1, PublicProfile{})
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestOnLocationUpdate_FailedPushDoesNotCount(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()
	a, slow := reg.Register(), reg.Register()
	_, err := b.OnLocationUpdate(slow, geo.Point{}, 2, PublicProfile{})
	require.NoError(t, err)

	rec.fail = map[string]error{slow: ErrSlowConsumer}
	n, err := b.OnLocationUpdate(a, geo.Point{}, 1, PublicProfile{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiscoverNearby(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()

	me := reg.Register()
	near := reg.Register()
	nearer := reg.Register()
	far := reg.Register()
	anon := reg.Register()
	_ = anon

	_, _ = b.OnLocationUpdate(me, geo.Point{Lat: 10, Lng: 10}, 1, PublicProfile{})
	_, _ = b.OnLocationUpdate(near, geo.Point{Lat: 10.1, Lng: 10}, 2, PublicProfile{Name: "near"})
	_, _ = b.OnLocationUpdate(nearer, geo.Point{Lat: 10.01, Lng: 10}, 3, PublicProfile{Name: "nearer"})
	_, _ = b.OnLocationUpdate(far, geo.Point{Lat: 11, Lng: 10}, 4, PublicProfile{})
	rec.reset()

	users, err := b.DiscoverNearby(me, geo.Point{Lat: 10, Lng: 10}, nil)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 3, users[0].UserID)
	assert.Equal(t, 2, users[1].UserID)
	assert.InDelta(t, 1.11, users[0].Distance, 0.01)

	got := rec.to(me)
	require.Len(t, got, 1)
	assert.Equal(t, EventNearbyUsers, got[0].event)
	resp := got[0].payload.(NearbyUsersResponse)
	assert.Equal(t, 20.0, resp.Radius)
	assert.Len(t, resp.Users, 2)
	assert.Empty(t, rec.to(near))

	radius := 200.0
	_, err = b.DiscoverNearby(me, geo.Point{Lat: 10, Lng: 10}, &radius)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	radius = 150
	b2 := NewBroadcaster(reg, rec, Config{MaxDiscoverRadiusKm: 200})
	users, err = b2.DiscoverNearby(me, geo.Point{Lat: 10, Lng: 10}, &radius)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	_, err = b.DiscoverNearby("missing", geo.Point{}, nil)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestDiscoverNearby_AnonymousCaller(t *testing.T) {
	b, _ := newBroadcaster()
	reg := b.Registry()
	me, other := reg.Register(), reg.Register()
	_, _ = b.OnLocationUpdate(other, geo.Point{Lat: 1, Lng: 1}, 2, PublicProfile{})

	users, err := b.DiscoverNearby(me, geo.Point{Lat: 1, Lng: 1}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, other, users[0].ConnectionID)
}

func TestJoinChat(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()
	a, c := reg.Register(), reg.Register()

	require.NoError(t, b.JoinChat(a, JoinChatRequest{ChatID: "chat-1"}))
	assert.Empty(t, rec.pushes)

	uid := 7
	require.NoError(t, b.JoinChat(c, JoinChatRequest{ChatID: "chat-1", UserID: &uid}))
	got := rec.to(a)
	require.Len(t, got, 1)
	assert.Equal(t, EventUserJoined, got[0].event)
	joined := got[0].payload.(UserJoined)
	assert.Equal(t, c, joined.ConnectionID)
	assert.Equal(t, 7, *joined.UserID)
	assert.Empty(t, rec.to(c))

	assert.ErrorIs(t, b.JoinChat("missing", JoinChatRequest{ChatID: "x"}), ErrUnknownConnection)
}

func TestDisconnect(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()
	a, c := reg.Register(), reg.Register()
	_, _ = b.OnLocationUpdate(a, geo.Point{}, 1, PublicProfile{})
	rec.reset()

	b.Disconnect(a)
	b.Disconnect(a)

	got := rec.to(c)
	require.Len(t, got, 1)
	gone := got[0].payload.(UserDisconnected)
	assert.Equal(t, a, gone.ConnectionID)
	assert.Equal(t, 1, *gone.UserID)
	assert.Equal(t, 1, reg.Count())
}

func TestBroadcaster_ConcurrentUpdatesAndDisconnects(t *testing.T) {
	b, _ := newBroadcaster()
	reg := b.Registry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := reg.Register()
			for i := 0; i < 100; i++ {
				pt := geo.Point{Lat: 10 + float64(i)*0.001, Lng: 10}
				_, err := b.OnLocationUpdate(id, pt, w+1, PublicProfile{})
				assert.NoError(t, err)
				_, err = b.DiscoverNearby(id, pt, nil)
				assert.NoError(t, err)
			}
			b.Disconnect(id)
		}(w)
	}
	wg.Wait()
	assert.Zero(t, reg.Count())
}

func TestUpdateStatus_ReachesEveryConnection(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()

	a, other := reg.Register(), reg.Register()
	_, err := b.OnLocationUpdate(a, geo.Point{Lat: 10, Lng: 10}, 4, PublicProfile{})
	require.NoError(t, err)
	rec.reset()

	n, err := b.UpdateStatus(a, UpdateStatusRequest{Status: "away"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{a, other} {
		got := rec.to(id)
		require.Len(t, got, 1, id)
		assert.Equal(t, EventUserStatusUpdate, got[0].event)
		update, ok := got[0].payload.(UserStatusUpdate)
		require.True(t, ok)
		assert.Equal(t, a, update.ConnectionID)
		assert.Equal(t, "away", update.Status)
		require.NotNil(t, update.UserID)
		assert.Equal(t, 4, *update.UserID)
	}

	stored, ok := reg.Get(a)
	require.True(t, ok)
	assert.Equal(t, "away", stored.Status)
	require.NotNil(t, stored.StatusUpdatedAt)

	_, err = b.UpdateStatus("missing", UpdateStatusRequest{Status: "away"})
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestTyping_RelaysToOtherRoomMembers(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()

	a, member, outsider := reg.Register(), reg.Register(), reg.Register()
	require.NoError(t, b.JoinChat(a, JoinChatRequest{ChatID: "room-1"}))
	require.NoError(t, b.JoinChat(member, JoinChatRequest{ChatID: "room-1"}))
	require.NoError(t, b.JoinChat(outsider, JoinChatRequest{ChatID: "room-2"}))
	rec.reset()

	n, err := b.Typing(a, TypingRequest{ChatID: "room-1"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got := rec.to(member)
	require.Len(t, got, 1)
	assert.Equal(t, EventUserTyping, got[0].event)
	typing, ok := got[0].payload.(UserTyping)
	require.True(t, ok)
	assert.True(t, typing.IsTyping)
	assert.Equal(t, "room-1", typing.ChatID)
	assert.Empty(t, rec.to(a))
	assert.Empty(t, rec.to(outsider))

	rec.reset()
	off := false
	_, err = b.Typing(a, TypingRequest{ChatID: "room-1", IsTyping: &off}, true)
	require.NoError(t, err)
	typing, ok = rec.to(member)[0].payload.(UserTyping)
	require.True(t, ok)
	assert.False(t, typing.IsTyping)

	rec.reset()
	_, err = b.Typing(a, TypingRequest{ChatID: "room-1"}, false)
	require.NoError(t, err)
	got = rec.to(member)
	require.Len(t, got, 1)
	assert.Equal(t, EventUserStopTyping, got[0].event)
}

func TestTyping_RequiresMembership(t *testing.T) {
	b, rec := newBroadcaster()
	reg := b.Registry()

	a, member := reg.Register(), reg.Register()
	require.NoError(t, b.JoinChat(member, JoinChatRequest{ChatID: "room-1"}))
	rec.reset()

	_, err := b.Typing(a, TypingRequest{ChatID: "room-1"}, true)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Empty(t, rec.to(member))

	_, err = b.Typing("missing", TypingRequest{ChatID: "room-1"}, true)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}
