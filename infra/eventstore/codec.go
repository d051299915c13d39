package eventstore

import (
	"encoding/json"
	"fmt"

	"github.com/amirasaad/ledger/pkg/domain/account"
)

func encodePayload(p account.Payload) ([]byte, error) {
	return json.Marshal(p)
}

func decodePayload(kind account.EventKind, data []byte) (account.Payload, error) {
	switch kind {
	case account.KindOpened:
		var p account.Opened
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case account.KindClosed:
		var p account.Closed
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case account.KindCredited:
		var p account.Credited
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case account.KindDebited:
		var p account.Debited
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case account.KindTransferValidated:
		var p account.TransferValidated
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case account.KindOverdraftLimitChanged:
		var p account.OverdraftLimitChanged
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case account.KindPasswordChanged:
		var p account.PasswordChanged
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}
