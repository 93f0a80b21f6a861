package room

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	roomIdMaxLen     = 64
	nicknameMaxLen   = 40
	chatMaxLen       = 500
	chatTypeMaxLen   = 20
	danmakuMaxLen    = 80
	reasonMaxLen     = 40
	mediaNameMaxLen  = 200
	mediaIdMaxLen    = 120
	sourceRefMaxLen  = 5000
	defaultNickname  = "anonymous"
	defaultChatType  = "text"
	maxMediaDuration = 864000
	maxCurrentTime   = 86400
	minPlaybackRate  = 0.25
	maxPlaybackRate  = 4
	defaultPlayRate  = 1
)

var RoomIdRule = []validation.Rule{
	validation.Required,
	validation.RuneLength(1, roomIdMaxLen),
}

var ColorRule = []validation.Rule{
	validation.Required,
	is.HexColor,
	validation.Match(regexp.MustCompile("^#")),
}
