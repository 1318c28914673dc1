package rooms

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestDirectoryLobbyLifecycle follows two connections through a room from
// creation to removal.
func TestDirectoryLobbyLifecycle(t *testing.T) {
	d := NewDirectory()

	res := d.Join("lobby", "A")
	assert.True(t, res.RoomCreated)
	assert.False(t, res.AlreadyMember)
	assert.Nil(t, res.Moved)

	res = d.Join("lobby", "B")
	assert.False(t, res.RoomCreated)

	assert.Equal(t, []string{"lobby"}, d.RoomNames())
	assert.Equal(t, []string{"A", "B"}, d.Members("lobby"))

	left := d.Leave("lobby", "B")
	assert.Equal(t, LeaveResult{Room: "lobby", WasMember: true}, left)
	assert.Equal(t, []string{"A"}, d.Members("lobby"))

	left = d.Leave("lobby", "A")
	assert.Equal(t, LeaveResult{Room: "lobby", WasMember: true, RoomRemoved: true}, left)
	assert.Empty(t, d.RoomNames())
	assert.Equal(t, []string{}, d.Members("lobby"))
	assert.Zero(t, d.Len())
}

func TestDirectoryJoinTwiceIsIdempotent(t *testing.T) {
	d := NewDirectory()

	first := d.Join("lobby", "A")
	second := d.Join("lobby", "A")

	assert.True(t, first.RoomCreated)
	assert.False(t, second.RoomCreated)
	assert.True(t, second.AlreadyMember)
	assert.Equal(t, []string{"A"}, d.Members("lobby"))
}

// TestDirectoryJoinMovesBetweenRooms checks the one-room-at-a-time rule.
func TestDirectoryJoinMovesBetweenRooms(t *testing.T) {
	tests := []struct {
		name        string
		othersInX   []string
		wantRemoved bool
		wantRooms   []string
	}{
		{
			name:        "vacated room is removed",
			wantRemoved: true,
			wantRooms:   []string{"y"},
		},
		{
			name:        "room with remaining members survives",
			othersInX:   []string{"B"},
			wantRemoved: false,
			wantRooms:   []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirectory()
			d.Join("x", "A")
			for _, id := range tt.othersInX {
				d.Join("x", id)
			}

			res := d.Join("y", "A")

			require.NotNil(t, res.Moved)
			assert.Equal(t, "x", res.Moved.Room)
			assert.True(t, res.Moved.WasMember)
			assert.Equal(t, tt.wantRemoved, res.Moved.RoomRemoved)
			assert.True(t, res.RoomCreated)

			room, ok := d.RoomOf("A")
			assert.True(t, ok)
			assert.Equal(t, "y", room)
			assert.NotContains(t, d.Members("x"), "A")
			assert.Equal(t, tt.wantRooms, d.RoomNames())
		})
	}
}

func TestDirectoryLeaveNoop(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *Directory)
		room  string
		id    string
	}{
		{name: "absent room", setup: func(*Directory) {}, room: "nowhere", id: "A"},
		{name: "not a member", setup: func(d *Directory) { d.Join("lobby", "B") }, room: "lobby", id: "A"},
		{name: "member of another room", setup: func(d *Directory) { d.Join("other", "A") }, room: "lobby", id: "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirectory()
			tt.setup(d)
			before := d.RoomNames()

			res := d.Leave(tt.room, tt.id)

			assert.False(t, res.WasMember)
			assert.False(t, res.RoomRemoved)
			assert.Equal(t, before, d.RoomNames())
		})
	}
}

func TestDirectoryLeaveAll(t *testing.T) {
	d := NewDirectory()
	d.Join("lobby", "A")
	d.Join("lobby", "B")

	assert.Nil(t, d.LeaveAll("ghost"))

	res := d.LeaveAll("A")
	assert.Equal(t, []LeaveResult{{Room: "lobby", WasMember: true}}, res)
	assert.Equal(t, []string{"B"}, d.Members("lobby"))

	_, ok := d.RoomOf("A")
	assert.False(t, ok)

	res = d.LeaveAll("B")
	assert.Equal(t, []LeaveResult{{Room: "lobby", WasMember: true, RoomRemoved: true}}, res)
	assert.Empty(t, d.RoomNames())
}

func TestDirectoryRoomNamesCreationOrder(t *testing.T) {
	d := NewDirectory()
	for i, name := range []string{"c", "a", "b"} {
		d.Join(name, fmt.Sprintf("conn-%d", i))
	}
	assert.Equal(t, []string{"c", "a", "b"}, d.RoomNames())

	// a recreated room goes to the back
	d.Leave("c", "conn-0")
	d.Join("c", "conn-0")
	assert.Equal(t, []string{"a", "b", "c"}, d.RoomNames())
}

func TestDirectoryRoomNamesAreCaseSensitive(t *testing.T) {
	d := NewDirectory()
	d.Join("Lobby", "A")
	d.Join("lobby", "B")

	assert.Equal(t, []string{"Lobby", "lobby"}, d.RoomNames())
	assert.True(t, d.IsMember("Lobby", "A"))
	assert.False(t, d.IsMember("lobby", "A"))
}

func TestDirectoryMembersReturnsCopy(t *testing.T) {
	d := NewDirectory()
	d.Join("lobby", "A")

	members := d.Members("lobby")
	members[0] = "mutated"

	assert.Equal(t, []string{"A"}, d.Members("lobby"))
}

// TestDirectoryConcurrentLastLeave races every member of a room leaving at
// once and checks that exactly one caller observes the room removal.
func TestDirectoryConcurrentLastLeave(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := NewDirectory()
		const members = 32
		for i := 0; i < members; i++ {
			d.Join("hot", fmt.Sprintf("conn-%d", i))
		}

		var removed atomic.Int32
		var g errgroup.Group
		for i := 0; i < members; i++ {
			id := fmt.Sprintf("conn-%d", i)
			g.Go(func() error {
				res := d.Leave("hot", id)
				if !res.WasMember {
					return fmt.Errorf("%s was not reported as a member", id)
				}
				if res.RoomRemoved {
					removed.Add(1)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int32(1), removed.Load())
		assert.Zero(t, d.Len())
	}
}

// TestDirectoryConcurrentChurn mixes joins, moves and leaves and then checks
// that no empty room survived and the reverse index agrees with the members.
func TestDirectoryConcurrentChurn(t *testing.T) {
	d := NewDirectory()
	roomNames := []string{"r0", "r1", "r2"}

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("conn-%d", i)
		g.Go(func() error {
			for step := 0; step < 50; step++ {
				name := roomNames[(step+len(id))%len(roomNames)]
				switch step % 4 {
				case 0, 1:
					d.Join(name, id)
				case 2:
					d.Leave(name, id)
				default:
					d.LeaveAll(id)
				}
				_ = d.Members(name)
				_ = d.RoomNames()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]string{}
	for _, name := range d.RoomNames() {
		members := d.Members(name)
		assert.NotEmpty(t, members, "room %s exists without members", name)
		for _, id := range members {
			_, dup := seen[id]
			assert.False(t, dup, "%s is in more than one room", id)
			seen[id] = name

			current, ok := d.RoomOf(id)
			assert.True(t, ok)
			assert.Equal(t, name, current)
		}
	}
}
