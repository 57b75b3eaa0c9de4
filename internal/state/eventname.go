package state

// EventName identifies a notification type the WebSocket subsystem can
// route. Only the fixed set below is ever valid.
type EventName string

// The closed set of event names the upstream service defines.
const (
	EventNewMsgReceived          EventName = "new-msg-received"
	EventSentMsgRead             EventName = "sent-msg-read"
	EventAssetReceived           EventName = "asset-received"
	EventAssetConfirmed          EventName = "asset-confirmed"
	EventFinalMsgProgress        EventName = "final-msg-progress"
	EventAssetExportOutcome      EventName = "asset-export-outcome"
	EventAssetMigrationOutcome   EventName = "asset-migration-outcome"
	EventNFTokenReceived         EventName = "nf-token-received"
	EventNFTokenConfirmed        EventName = "nf-token-confirmed"
	EventNFAssetIssuanceOutcome  EventName = "nf-asset-issuance-outcome"
	EventNFTokenRetrievalOutcome EventName = "nf-token-retrieval-outcome"
	EventNFTokenTransferOutcome  EventName = "nf-token-transfer-outcome"
)

// AllEventNames returns every recognised event name.
func AllEventNames() []EventName {
	return []EventName{
		EventNewMsgReceived,
		EventSentMsgRead,
		EventAssetReceived,
		EventAssetConfirmed,
		EventFinalMsgProgress,
		EventAssetExportOutcome,
		EventAssetMigrationOutcome,
		EventNFTokenReceived,
		EventNFTokenConfirmed,
		EventNFAssetIssuanceOutcome,
		EventNFTokenRetrievalOutcome,
		EventNFTokenTransferOutcome,
	}
}

// validEventNames is a pre-computed lookup set, built once, so validation is
// O(1) per call instead of a linear scan over AllEventNames.
var validEventNames map[EventName]struct{}

func init() {
	validEventNames = make(map[EventName]struct{}, len(AllEventNames()))
	for _, e := range AllEventNames() {
		validEventNames[e] = struct{}{}
	}
}

// IsValidEventName reports whether name is one of the recognised events.
func IsValidEventName(name EventName) bool {
	_, ok := validEventNames[name]
	return ok
}
