package domain

import "errors"

var ErrNotMember = errors.New("not a member of the room")

// Room holds live state for one shared session. It is not safe for
// concurrent use; the registry serializes access.
type Room struct {
	Id           string
	Members      *Members
	ControllerId string
	Media        *Media
	Sync         SyncSnapshot
	Chat         *Feed[ChatMessage]
	Danmaku      *Feed[Danmaku]
	UpdatedAt    int64
}

func NewRoom(id string, chatLimit, danmakuLimit int, now int64) *Room {
	return &Room{
		Id:        id,
		Members:   NewMembers(),
		Sync:      NewSyncSnapshot(ReasonInit, now),
		Chat:      NewFeed[ChatMessage](chatLimit),
		Danmaku:   NewFeed[Danmaku](danmakuLimit),
		UpdatedAt: now,
	}
}

func (r *Room) IsEmpty() bool {
	return r.Members.Length() == 0
}

func (r *Room) IsController(memberId string) bool {
	return r.ControllerId != "" && r.ControllerId == memberId
}

// AddMember appends the member and makes it controller if the room has none.
func (r *Room) AddMember(member Member, now int64) error {
	if err := r.Members.Add(member); err != nil {
		return err
	}

	if r.ControllerId == "" {
		r.ControllerId = member.Id
	}
	r.UpdatedAt = now

	return nil
}

// RemoveMember drops the member. If it was controller, control passes to the
// oldest remaining member or is cleared.
func (r *Room) RemoveMember(memberId string, now int64) (Member, error) {
	member, err := r.Members.RemoveById(memberId)
	if err != nil {
		return Member{}, err
	}

	if r.ControllerId == memberId {
		r.ControllerId = ""
		if oldest, ok := r.Members.Oldest(); ok {
			r.ControllerId = oldest.Id
		}
	}
	r.UpdatedAt = now

	return member, nil
}

func (r *Room) ClaimController(memberId string, now int64) error {
	if _, _, err := r.Members.GetById(memberId); err != nil {
		return ErrNotMember
	}

	r.ControllerId = memberId
	r.UpdatedAt = now

	return nil
}

func (r *Room) SetMedia(media Media, now int64) {
	r.Media = &media
	r.Sync = NewSyncSnapshot(ReasonMediaChange, now)
	r.UpdatedAt = now
}

func (r *Room) UpdateSync(snapshot SyncSnapshot) {
	r.Sync = snapshot
}
