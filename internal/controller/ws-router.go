package controller

import (
	"github.com/sharetube/cowatch/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.ackWSMw())

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "GET_LOBBY", c.handleGetLobby)

	// membership
	wsrouter.Handle(mux, "JOIN", c.handleJoin)
	wsrouter.Handle(mux, "LEAVE", c.handleLeave)
	wsrouter.Handle(mux, "CLAIM_CONTROLLER", c.handleClaimController)

	// playback
	wsrouter.Handle(mux, "CHANGE_MEDIA", c.handleChangeMedia)
	wsrouter.Handle(mux, "SYNC_UPDATE", c.handleSyncUpdate)

	// chat
	wsrouter.Handle(mux, "CHAT_SEND", c.handleChatSend)
	wsrouter.Handle(mux, "DANMAKU_SEND", c.handleDanmakuSend)

	return mux
}
