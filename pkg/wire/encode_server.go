package wire

import "spacetimedb.com/client/pkg/codec"

// EncodeServerMessageBSATN writes msg's enum tag followed by its fields.
// Primarily exercised by tests and by any in-process fake server.
func EncodeServerMessageBSATN(w *codec.Writer, msg ServerMessage) error {
	if err := w.WriteEnumHeader(msg.serverTag()); err != nil {
		return err
	}
	switch m := msg.(type) {
	case IdentityToken:
		return encodeIdentityToken(w, m)
	case InitialSubscription:
		return encodeInitialSubscription(w, m)
	case TransactionUpdate:
		return encodeTransactionUpdate(w, m)
	case TransactionUpdateLight:
		return encodeTransactionUpdateLight(w, m)
	case SubscribeApplied:
		return encodeSubscribeAppliedShape(w, m)
	case UnsubscribeApplied:
		return encodeSubscribeAppliedShape(w, SubscribeApplied(m))
	case SubscriptionError:
		return encodeSubscriptionError(w, m)
	case SubscribeMultiApplied:
		return encodeSubscribeMultiAppliedShape(w, m)
	case UnsubscribeMultiApplied:
		return encodeSubscribeMultiAppliedShape(w, SubscribeMultiApplied(m))
	case OneOffQueryResponse:
		return encodeOneOffQueryResponse(w, m)
	default:
		return nil
	}
}

func encodeIdentityToken(w *codec.Writer, m IdentityToken) error {
	return writeStruct(w, 3, func(f *fieldWriter) {
		f.identity("identity", m.Identity)
		f.str("token", m.Token)
		f.connectionID("connection_id", m.ConnectionID)
	})
}

func encodeInitialSubscription(w *codec.Writer, m InitialSubscription) error {
	return writeStruct(w, 3, func(f *fieldWriter) {
		f.databaseUpdate("database_update", m.DatabaseUpdate)
		f.u32("request_id", uint32(m.RequestID))
		f.durationMicros("total_host_execution_duration", m.TotalHostExecutionDuration)
	})
}

func encodeTransactionUpdate(w *codec.Writer, m TransactionUpdate) error {
	return writeStruct(w, 7, func(f *fieldWriter) {
		f.updateStatus("status", m.Status)
		f.i64("timestamp", m.Timestamp)
		f.identity("caller_identity", m.CallerIdentity)
		f.connectionID("caller_connection_id", m.CallerConnectionID)
		f.reducerCallInfo("reducer_call", m.ReducerCall)
		f.u64("energy_quanta_used", uint64(m.EnergyQuantaUsed))
		f.durationMicros("total_host_execution_duration", m.TotalHostExecutionDuration)
	})
}

func encodeTransactionUpdateLight(w *codec.Writer, m TransactionUpdateLight) error {
	return writeStruct(w, 2, func(f *fieldWriter) {
		f.u32("request_id", uint32(m.RequestID))
		f.databaseUpdate("update", m.Update)
	})
}

func encodeSubscribeAppliedShape(w *codec.Writer, m SubscribeApplied) error {
	return writeStruct(w, 6, func(f *fieldWriter) {
		f.u32("request_id", uint32(m.RequestID))
		f.i64("duration_micros", m.DurationMicros)
		f.u32("query_id", uint32(m.QueryID))
		f.u32("table_id", m.TableID)
		f.str("table_name", m.TableName)
		f.byteRows("table_rows", m.TableRows)
	})
}

func encodeSubscriptionError(w *codec.Writer, m SubscriptionError) error {
	return writeStruct(w, 5, func(f *fieldWriter) {
		f.i64("duration_micros", m.DurationMicros)
		f.optionalU32("request_id", requestIDPtrToU32Ptr(m.RequestID))
		f.optionalU32("query_id", queryIDPtrToU32Ptr(m.QueryID))
		f.optionalU32("table_id", m.TableID)
		f.str("error", m.Error)
	})
}

func encodeSubscribeMultiAppliedShape(w *codec.Writer, m SubscribeMultiApplied) error {
	return writeStruct(w, 4, func(f *fieldWriter) {
		f.u32("request_id", uint32(m.RequestID))
		f.i64("duration_micros", m.DurationMicros)
		f.u32("query_id", uint32(m.QueryID))
		f.databaseUpdate("update", m.Update)
	})
}

func encodeOneOffQueryResponse(w *codec.Writer, m OneOffQueryResponse) error {
	return writeStruct(w, 4, func(f *fieldWriter) {
		f.bytes("message_id", m.MessageID[:])
		f.str("error", m.Error)
		f.tableUpdates("tables", m.Tables)
		f.durationMicros("total_host_execution_duration", m.TotalHostExecutionDuration)
	})
}

func requestIDPtrToU32Ptr(p *codec.RequestId) *uint32 {
	if p == nil {
		return nil
	}
	v := uint32(*p)
	return &v
}

func queryIDPtrToU32Ptr(p *codec.QueryId) *uint32 {
	if p == nil {
		return nil
	}
	v := uint32(*p)
	return &v
}
