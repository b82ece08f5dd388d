package wire

import (
	"encoding/json"
	"fmt"
)

// clientEnvelope mirrors the tagged-object convention used on the JSON
// wire: exactly one field is present, naming the variant.
type clientEnvelope struct {
	CallReducer      *CallReducer      `json:"CallReducer,omitempty"`
	Subscribe        *Subscribe        `json:"Subscribe,omitempty"`
	SubscribeSingle  *SubscribeSingle  `json:"SubscribeSingle,omitempty"`
	SubscribeMulti   *SubscribeMulti   `json:"SubscribeMulti,omitempty"`
	Unsubscribe      *Unsubscribe      `json:"Unsubscribe,omitempty"`
	UnsubscribeMulti *UnsubscribeMulti `json:"UnsubscribeMulti,omitempty"`
	OneOffQuery      *OneOffQuery      `json:"OneOffQuery,omitempty"`
}

// EncodeClientMessageJSON marshals msg using the tagged-object convention.
func EncodeClientMessageJSON(msg ClientMessage) ([]byte, error) {
	var env clientEnvelope
	switch m := msg.(type) {
	case CallReducer:
		env.CallReducer = &m
	case Subscribe:
		env.Subscribe = &m
	case SubscribeSingle:
		env.SubscribeSingle = &m
	case SubscribeMulti:
		env.SubscribeMulti = &m
	case Unsubscribe:
		env.Unsubscribe = &m
	case UnsubscribeMulti:
		env.UnsubscribeMulti = &m
	case OneOffQuery:
		env.OneOffQuery = &m
	default:
		return nil, fmt.Errorf("wire: unsupported client message type %T", msg)
	}
	return json.Marshal(env)
}

type serverEnvelope struct {
	IdentityToken           *IdentityToken           `json:"IdentityToken,omitempty"`
	InitialSubscription     *InitialSubscription     `json:"InitialSubscription,omitempty"`
	TransactionUpdate       *TransactionUpdate       `json:"TransactionUpdate,omitempty"`
	TransactionUpdateLight  *TransactionUpdateLight  `json:"TransactionUpdateLight,omitempty"`
	SubscribeApplied        *SubscribeApplied        `json:"SubscribeApplied,omitempty"`
	UnsubscribeApplied      *UnsubscribeApplied      `json:"UnsubscribeApplied,omitempty"`
	SubscriptionError       *SubscriptionError       `json:"SubscriptionError,omitempty"`
	SubscribeMultiApplied   *SubscribeMultiApplied   `json:"SubscribeMultiApplied,omitempty"`
	UnsubscribeMultiApplied *UnsubscribeMultiApplied `json:"UnsubscribeMultiApplied,omitempty"`
	OneOffQueryResponse     *OneOffQueryResponse     `json:"OneOffQueryResponse,omitempty"`
}

// DecodeServerMessageJSON unmarshals a tagged-object server message,
// preserving TransactionUpdate.Status as a structured variant (the
// reference SDK's JSON path collapses it to a bare string; this client
// does not).
func DecodeServerMessageJSON(data []byte) (ServerMessage, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch {
	case env.IdentityToken != nil:
		return *env.IdentityToken, nil
	case env.InitialSubscription != nil:
		return *env.InitialSubscription, nil
	case env.TransactionUpdate != nil:
		return *env.TransactionUpdate, nil
	case env.TransactionUpdateLight != nil:
		return *env.TransactionUpdateLight, nil
	case env.SubscribeApplied != nil:
		return *env.SubscribeApplied, nil
	case env.UnsubscribeApplied != nil:
		return *env.UnsubscribeApplied, nil
	case env.SubscriptionError != nil:
		return *env.SubscriptionError, nil
	case env.SubscribeMultiApplied != nil:
		return *env.SubscribeMultiApplied, nil
	case env.UnsubscribeMultiApplied != nil:
		return *env.UnsubscribeMultiApplied, nil
	case env.OneOffQueryResponse != nil:
		return *env.OneOffQueryResponse, nil
	default:
		return nil, fmt.Errorf("wire: empty or unrecognized server message envelope")
	}
}
