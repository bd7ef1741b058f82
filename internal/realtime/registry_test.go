package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdugdh24/yuno-backend/internal/geo"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	id := r.Register()
	require.NotEmpty(t, id)
	assert.Equal(t, 1, r.Count())

	rec, ok := r.Get(id)
	require.True(t, ok)
	assert.False(t, rec.Identified())
	assert.Empty(t, r.AllIdentified())

	require.NoError(t, r.UpdateLocation(id, geo.Point{Lat: 1, Lng: 2}, 5, PublicProfile{Name: "A"}))
	rec, _ = r.Get(id)
	assert.True(t, rec.Identified())
	assert.Equal(t, 5, *rec.UserID)
	assert.Equal(t, geo.Point{Lat: 1, Lng: 2}, *rec.Location)
	require.Len(t, r.AllIdentified(), 1)

	// Last write wins.
	require.NoError(t, r.UpdateLocation(id, geo.Point{Lat: 3, Lng: 4}, 5, PublicProfile{Name: "B"}))
	rec, _ = r.Get(id)
	assert.Equal(t, geo.Point{Lat: 3, Lng: 4}, *rec.Location)
	assert.Equal(t, "B", rec.Profile.Name)

	final, ok := r.Remove(id)
	require.True(t, ok)
	assert.Equal(t, id, final.ConnectionID)
	_, ok = r.Remove(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	assert.ErrorIs(t, r.UpdateLocation(id, geo.Point{}, 1, PublicProfile{}), ErrUnknownConnection)
	_, err := r.JoinRoom(id, "room", nil)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	id := r.Register()
	profile := PublicProfile{Interests: []string{"a"}}
	require.NoError(t, r.UpdateLocation(id, geo.Point{Lat: 1, Lng: 1}, 5, profile))
	profile.Interests[0] = "caller changed"

	snap := r.AllIdentified()
	require.Len(t, snap, 1)
	*snap[0].UserID = 99
	snap[0].Location.Lat = 50
	snap[0].Profile.Interests[0] = "x"

	rec, _ := r.Get(id)
	assert.Equal(t, 5, *rec.UserID)
	assert.Equal(t, 1.0, rec.Location.Lat)
	assert.Equal(t, []string{"a"}, rec.Profile.Interests)
}

func TestRegistry_Rooms(t *testing.T) {
	r := NewRegistry()
	a, b := r.Register(), r.Register()

	left, err := r.JoinRoom(a, "chat-1", nil)
	require.NoError(t, err)
	assert.Empty(t, left)
	rec, _ := r.Get(a)
	assert.False(t, rec.Identified())

	uid := 7
	_, err = r.JoinRoom(b, "chat-1", &uid)
	require.NoError(t, err)
	rec, _ = r.Get(b)
	assert.True(t, rec.Identified())
	assert.ElementsMatch(t, []string{a, b}, r.RoomMembers("chat-1"))

	left, err = r.JoinRoom(a, "chat-2", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-1"}, left)
	assert.Equal(t, []string{b}, r.RoomMembers("chat-1"))

	// Rejoining the current room leaves nothing.
	left, err = r.JoinRoom(a, "chat-2", nil)
	require.NoError(t, err)
	assert.Empty(t, left)

	r.Remove(b)
	assert.Empty(t, r.RoomMembers("chat-1"))
	rec, _ = r.Get(a)
	assert.Equal(t, []string{"chat-2"}, rec.Rooms)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := r.Register()
				_ = r.UpdateLocation(id, geo.Point{Lat: float64(i % 80), Lng: float64(w)}, w*1000+i, PublicProfile{})
				_, _ = r.JoinRoom(id, fmt.Sprintf("room-%d", i%5), nil)
				_ = r.AllIdentified()
				_ = r.RoomMembers("room-0")
				if i%2 == 0 {
					r.Remove(id)
					r.Remove(id)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*100, r.Count())
	assert.Len(t, r.AllIdentified(), workers*100)
	total := 0
	for i := 0; i < 5; i++ {
		total += len(r.RoomMembers(fmt.Sprintf("room-%d", i)))
	}
	assert.Equal(t, workers*100, total)
}

func TestRegistry_StatusAndMembership(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register()

	rec, _ := reg.Get(id)
	assert.Empty(t, rec.Status)
	assert.Nil(t, rec.StatusUpdatedAt)

	_, err := reg.UpdateStatus(id, "busy")
	require.NoError(t, err)
	rec, _ = reg.Get(id)
	assert.Equal(t, "busy", rec.Status)
	require.NotNil(t, rec.StatusUpdatedAt)
	assert.False(t, rec.Identified())

	assert.False(t, reg.InRoom(id, "room-1"))
	_, err = reg.JoinRoom(id, "room-1", nil)
	require.NoError(t, err)
	assert.True(t, reg.InRoom(id, "room-1"))

	reg.Remove(id)
	assert.False(t, reg.InRoom(id, "room-1"))
	_, err = reg.UpdateStatus(id, "busy")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}
