package ws

// user-facing error messages sent in {type:"error"} envelopes
const (
	MsgInvalidMessage  = "invalid message"
	MsgUnknownAction   = "unknown action"
	MsgInvalidBet      = "bet must be between 1 and the maximum stake"
	MsgBetOverBalance  = "you cannot bet more affection than you currently have"
	MsgUnknownSession  = "unknown game session"
	MsgLedgerDown      = "affection ledger unavailable"
	MsgAlreadyInMatch  = "already in a match"
	MsgNotInMatch      = "not in a match"
	MsgUnknownRoom     = "unknown room"
	MsgSettleFailed    = "settlement failed"
	MsgSessionReplaced = "session connected elsewhere"
)
