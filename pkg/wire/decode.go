package wire

import (
	"spacetimedb.com/client/pkg/codec"
)

// DecodeServerMessageBSATN reads one complete server-to-client message,
// dispatching on its enum tag. Unrecognized struct fields within a known
// variant are skipped rather than rejected, for forward compatibility.
func DecodeServerMessageBSATN(r *codec.Reader) (ServerMessage, error) {
	variant, err := r.ReadEnumHeader()
	if err != nil {
		return nil, err
	}
	switch variant {
	case TagIdentityToken:
		return decodeIdentityToken(r)
	case TagInitialSubscription:
		return decodeInitialSubscription(r)
	case TagTransactionUpdate:
		return decodeTransactionUpdate(r)
	case TagTransactionUpdateLight:
		return decodeTransactionUpdateLight(r)
	case TagSubscribeApplied:
		m, err := decodeSubscribeAppliedShape(r)
		return SubscribeApplied(m), err
	case TagUnsubscribeApplied:
		m, err := decodeSubscribeAppliedShape(r)
		return UnsubscribeApplied(m), err
	case TagSubscriptionError:
		return decodeSubscriptionError(r)
	case TagSubscribeMultiApplied:
		m, err := decodeSubscribeMultiAppliedShape(r)
		return SubscribeMultiApplied(m), err
	case TagUnsubscribeMultiApplied:
		m, err := decodeSubscribeMultiAppliedShape(r)
		return UnsubscribeMultiApplied(m), err
	case TagOneOffQueryResponse:
		return decodeOneOffQueryResponse(r)
	default:
		return nil, r.SkipValue()
	}
}

func decodeIdentityToken(r *codec.Reader) (IdentityToken, error) {
	var m IdentityToken
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "identity":
			m.Identity, err = r.ReadIdentity()
		case "token":
			m.Token, err = r.ReadString()
		case "connection_id":
			m.ConnectionID, err = r.ReadConnectionId()
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeInitialSubscription(r *codec.Reader) (InitialSubscription, error) {
	var m InitialSubscription
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "database_update":
			m.DatabaseUpdate, err = decodeDatabaseUpdate(r)
		case "request_id":
			var v uint32
			v, err = r.ReadU32()
			m.RequestID = codec.RequestId(v)
		case "total_host_execution_duration":
			m.TotalHostExecutionDuration, err = readDurationMicros(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeTransactionUpdate(r *codec.Reader) (TransactionUpdate, error) {
	var m TransactionUpdate
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "status":
			m.Status, err = decodeUpdateStatus(r)
		case "timestamp":
			m.Timestamp, err = r.ReadI64()
		case "caller_identity":
			m.CallerIdentity, err = r.ReadIdentity()
		case "caller_connection_id":
			m.CallerConnectionID, err = r.ReadConnectionId()
		case "reducer_call":
			m.ReducerCall, err = decodeReducerCallInfo(r)
		case "energy_quanta_used":
			m.EnergyQuantaUsed, err = r.ReadEnergyQuanta()
		case "total_host_execution_duration":
			m.TotalHostExecutionDuration, err = readDurationMicros(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeTransactionUpdateLight(r *codec.Reader) (TransactionUpdateLight, error) {
	var m TransactionUpdateLight
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "request_id":
			var v uint32
			v, err = r.ReadU32()
			m.RequestID = codec.RequestId(v)
		case "update":
			m.Update, err = decodeDatabaseUpdate(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeSubscribeAppliedShape(r *codec.Reader) (SubscribeApplied, error) {
	var m SubscribeApplied
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "request_id":
			var v uint32
			v, err = r.ReadU32()
			m.RequestID = codec.RequestId(v)
		case "duration_micros":
			m.DurationMicros, err = r.ReadI64()
		case "query_id":
			var v uint32
			v, err = r.ReadU32()
			m.QueryID = codec.QueryId(v)
		case "table_id":
			m.TableID, err = r.ReadU32()
		case "table_name":
			m.TableName, err = r.ReadString()
		case "table_rows":
			m.TableRows, err = decodeByteRows(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeSubscriptionError(r *codec.Reader) (SubscriptionError, error) {
	var m SubscriptionError
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "duration_micros":
			m.DurationMicros, err = r.ReadI64()
		case "request_id":
			m.RequestID, err = decodeOptionalRequestID(r)
		case "query_id":
			m.QueryID, err = decodeOptionalQueryID(r)
		case "table_id":
			m.TableID, err = decodeOptionalU32(r)
		case "error":
			m.Error, err = r.ReadString()
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeSubscribeMultiAppliedShape(r *codec.Reader) (SubscribeMultiApplied, error) {
	var m SubscribeMultiApplied
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "request_id":
			var v uint32
			v, err = r.ReadU32()
			m.RequestID = codec.RequestId(v)
		case "duration_micros":
			m.DurationMicros, err = r.ReadI64()
		case "query_id":
			var v uint32
			v, err = r.ReadU32()
			m.QueryID = codec.QueryId(v)
		case "update":
			m.Update, err = decodeDatabaseUpdate(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeOneOffQueryResponse(r *codec.Reader) (OneOffQueryResponse, error) {
	var m OneOffQueryResponse
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "message_id":
			var b []byte
			b, err = r.ReadBytes()
			if err == nil {
				copy(m.MessageID[:], b)
			}
		case "error":
			m.Error, err = r.ReadString()
		case "tables":
			m.Tables, err = decodeTableUpdates(r)
		case "total_host_execution_duration":
			m.TotalHostExecutionDuration, err = readDurationMicros(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeDatabaseUpdate(r *codec.Reader) (DatabaseUpdate, error) {
	sr, err := newStructReader(r)
	if err != nil {
		return DatabaseUpdate{}, err
	}
	var out DatabaseUpdate
	for {
		name, ok, err := sr.next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		switch name {
		case "tables":
			out.Tables, err = decodeTableUpdates(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return out, err
		}
	}
	return out, sr.skipRest()
}

func decodeTableUpdates(r *codec.Reader) ([]TableUpdate, error) {
	count, err := r.ReadListHeader()
	if err != nil {
		return nil, err
	}
	out := make([]TableUpdate, 0, count)
	for i := uint32(0); i < count; i++ {
		tu, err := decodeTableUpdate(r)
		if err != nil {
			return nil, err
		}
		out = append(out, tu)
	}
	return out, nil
}

func decodeTableUpdate(r *codec.Reader) (TableUpdate, error) {
	var m TableUpdate
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "table_id":
			m.TableID, err = r.ReadU32()
		case "table_name":
			m.TableName, err = r.ReadString()
		case "inserts":
			m.Inserts, err = decodeByteRows(r)
		case "deletes":
			m.Deletes, err = decodeByteRows(r)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeByteRows(r *codec.Reader) ([][]byte, error) {
	count, err := r.ReadListHeader()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		b, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func decodeUpdateStatus(r *codec.Reader) (UpdateStatus, error) {
	variant, err := r.ReadEnumHeader()
	if err != nil {
		return UpdateStatus{}, err
	}
	switch variant {
	case 0:
		u, err := decodeDatabaseUpdate(r)
		return UpdateStatus{Kind: StatusCommitted, Update: &u}, err
	case 1:
		msg, err := r.ReadString()
		return UpdateStatus{Kind: StatusFailed, FailMessage: msg}, err
	case 2:
		if err := r.SkipValue(); err != nil {
			return UpdateStatus{}, err
		}
		return UpdateStatus{Kind: StatusOutOfEnergy}, nil
	default:
		return UpdateStatus{}, r.SkipValue()
	}
}

func decodeReducerCallInfo(r *codec.Reader) (ReducerCallInfo, error) {
	var m ReducerCallInfo
	sr, err := newStructReader(r)
	if err != nil {
		return m, err
	}
	for {
		name, ok, err := sr.next()
		if err != nil {
			return m, err
		}
		if !ok {
			break
		}
		switch name {
		case "name":
			m.Name, err = r.ReadString()
		case "id":
			m.ID, err = r.ReadU32()
		case "args":
			m.Args, err = r.ReadBytes()
		case "request_id":
			var v uint32
			v, err = r.ReadU32()
			m.RequestID = codec.RequestId(v)
		default:
			err = r.SkipValue()
		}
		if err != nil {
			return m, err
		}
	}
	return m, sr.skipRest()
}

func decodeOptionalRequestID(r *codec.Reader) (*codec.RequestId, error) {
	some, err := r.ReadOption()
	if err != nil || !some {
		return nil, err
	}
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	id := codec.RequestId(v)
	return &id, nil
}

func decodeOptionalQueryID(r *codec.Reader) (*codec.QueryId, error) {
	some, err := r.ReadOption()
	if err != nil || !some {
		return nil, err
	}
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	id := codec.QueryId(v)
	return &id, nil
}

func decodeOptionalU32(r *codec.Reader) (*uint32, error) {
	some, err := r.ReadOption()
	if err != nil || !some {
		return nil, err
	}
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}
