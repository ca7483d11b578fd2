package explore

// Main/sub protocol codes for frames exchanged over the explore context
// (§6). The channel-handshake code (main=11, sub=5032) lives in
// internal/mux since it belongs to the multiplexer, not the exploration
// domain; the codes below are this package's own.
const (
	// MainChannel carries platform<->explore application traffic over
	// the channel multiplexer (CREATE_EXPLORE_*, FIGHT_SUCCESS_*,
	// EXPLORE_END_SYNC).
	MainChannel uint16 = 1000

	// MainClient carries client<->explore traffic on the player's own
	// session (currently just the move request/response pair).
	MainClient uint16 = 2000
)

const (
	SubHeart             uint16 = 1
	SubCreateExploreReq  uint16 = 1022
	SubCreateExploreResp uint16 = 1023
	SubFightSuccessReq   uint16 = 1024
	SubFightSuccessResp  uint16 = 1025
	SubExploreEndSync    uint16 = 1026

	SubExploreMoveReq  uint16 = 1
	SubExploreMoveResp uint16 = 2
)

// CreateExploreResult is the CREATE_EXPLORE_RESP result enum.
type CreateExploreResult int

const (
	CreateExploreOK CreateExploreResult = iota
	CreateExploreNoExploreFound
)

// EndSyncResult is the EXPLORE_END_SYNC terminal status.
type EndSyncResult int

const (
	EndSyncFinished EndSyncResult = iota
	EndSyncFailed
)
