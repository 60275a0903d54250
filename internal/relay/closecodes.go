package relay

// WebSocket close codes used by the relay.
const (
	CloseProtocolError  uint16 = 1002
	CloseUnsupported    uint16 = 1003
	CloseTryAgainLater  uint16 = 1013
	CloseUserIDTaken    uint16 = 4001
)

// Reserved userId values.
const (
	BroadcastTarget uint64 = 0xFFFFFFFFFFFFFFFF
	RelayTarget     uint64 = 0x0000000000000000
)
