package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawEnvelope 客户端侧的 Envelope：payload 延迟解码
type RawEnvelope struct {
	Seq       uint64          `json:"seq"`
	Type      Type            `json:"type"`
	Op        string          `json:"op"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode 按 Type 还原具体事件
func (e RawEnvelope) Decode() (Event, error) {
	var ev Event
	switch e.Type {
	case TypeGenesis:
		ev = &GenesisEvent{}
	case TypeAssetMinted:
		ev = &AssetMintedEvent{}
	case TypeAssetTransferred:
		ev = &AssetTransferredEvent{}
	case TypeApprovalForAll:
		ev = &ApprovalForAllEvent{}
	case TypePaymentTransfer:
		ev = &PaymentTransferEvent{}
	case TypePaymentApproval:
		ev = &PaymentApprovalEvent{}
	case TypeListed:
		ev = &ListedEvent{}
	case TypeListingCancelled:
		ev = &ListingCancelledEvent{}
	case TypeSold:
		ev = &SoldEvent{}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if err := json.Unmarshal(e.Payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return ev, nil
}
