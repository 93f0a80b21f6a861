package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomControllerInvariant(t *testing.T) {
	r := NewRoom("movie", 300, 500, 1)
	assert.Equal(t, ReasonInit, r.Sync.Reason)
	assert.Empty(t, r.ControllerId)

	require.NoError(t, r.AddMember(Member{Id: "a", Nickname: "ann", JoinedAt: 1}, 1))
	require.NoError(t, r.AddMember(Member{Id: "b", Nickname: "bob", JoinedAt: 2}, 2))
	require.NoError(t, r.AddMember(Member{Id: "c", Nickname: "cid", JoinedAt: 3}, 3))
	assert.Equal(t, "a", r.ControllerId)
	assert.ErrorIs(t, r.AddMember(Member{Id: "b"}, 4), ErrMemberAlreadyExists)

	require.NoError(t, r.ClaimController("c", 5))
	assert.True(t, r.IsController("c"))

	_, err := r.RemoveMember("c", 6)
	require.NoError(t, err)
	assert.Equal(t, "a", r.ControllerId, "oldest remaining member takes control")

	_, err = r.RemoveMember("b", 7)
	require.NoError(t, err)
	assert.Equal(t, "a", r.ControllerId, "non-controller leave keeps controller")

	_, err = r.RemoveMember("a", 8)
	require.NoError(t, err)
	assert.Empty(t, r.ControllerId)
	assert.True(t, r.IsEmpty())
	assert.False(t, r.IsController(""))
	assert.Equal(t, int64(8), r.UpdatedAt)
}

func TestRoomClaimRequiresMembership(t *testing.T) {
	r := NewRoom("movie", 300, 500, 1)
	assert.ErrorIs(t, r.ClaimController("ghost", 2), ErrNotMember)
	_, err := r.RemoveMember("ghost", 2)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRoomSetMediaResetsSync(t *testing.T) {
	r := NewRoom("movie", 300, 500, 1)
	r.UpdateSync(SyncSnapshot{Playing: true, CurrentTime: 42, PlaybackRate: 2, Reason: ReasonSeek, ServerTime: 5})

	r.SetMedia(Media{Id: "m1", SourceRef: "s3://bucket/a.ts"}, 10)
	require.NotNil(t, r.Media)
	assert.Equal(t, "m1", r.Media.Id)
	assert.Equal(t, SyncSnapshot{
		Playing:      false,
		CurrentTime:  0,
		PlaybackRate: 1,
		Reason:       ReasonMediaChange,
		ServerTime:   10,
	}, r.Sync)
}

func TestFeedBounded(t *testing.T) {
	f := NewFeed[int](3)
	for i := 1; i <= 5; i++ {
		f.Add(i)
	}

	assert.Equal(t, 3, f.Length())
	assert.Equal(t, []int{3, 4, 5}, f.AsList())

	list := f.AsList()
	list[0] = 100
	assert.Equal(t, []int{3, 4, 5}, f.AsList(), "AsList returns a copy")
}

func TestMembersOrder(t *testing.T) {
	m := NewMembers()
	_, ok := m.Oldest()
	assert.False(t, ok)

	require.NoError(t, m.Add(Member{Id: "a"}))
	require.NoError(t, m.Add(Member{Id: "b"}))
	require.NoError(t, m.Add(Member{Id: "c"}))
	_, err := m.RemoveById("a")
	require.NoError(t, err)

	oldest, ok := m.Oldest()
	assert.True(t, ok)
	assert.Equal(t, "b", oldest.Id)
	assert.Equal(t, []string{"b", "c"}, m.Ids())
}
