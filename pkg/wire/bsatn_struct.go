package wire

import (
	"time"

	"spacetimedb.com/client/pkg/codec"
)

// fieldWriter accumulates the first encode error encountered while writing
// a struct's fields, mirroring the Writer's own sticky-error discipline.
type fieldWriter struct {
	w   *codec.Writer
	err error
}

func (f *fieldWriter) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fieldWriter) name(n string) bool {
	if f.err != nil {
		return false
	}
	if err := f.w.WriteFieldName(n); err != nil {
		f.fail(err)
		return false
	}
	return true
}

func (f *fieldWriter) str(name, v string) {
	if f.name(name) {
		f.fail(f.w.WriteString(v))
	}
}

func (f *fieldWriter) bytes(name string, v []byte) {
	if f.name(name) {
		f.fail(f.w.WriteBytes(v))
	}
}

func (f *fieldWriter) u8(name string, v uint8) {
	if f.name(name) {
		f.fail(f.w.WriteU8(v))
	}
}

func (f *fieldWriter) u32(name string, v uint32) {
	if f.name(name) {
		f.fail(f.w.WriteU32(v))
	}
}

func (f *fieldWriter) u64(name string, v uint64) {
	if f.name(name) {
		f.fail(f.w.WriteU64(v))
	}
}

func (f *fieldWriter) i64(name string, v int64) {
	if f.name(name) {
		f.fail(f.w.WriteI64(v))
	}
}

func (f *fieldWriter) identity(name string, v codec.Identity) {
	if f.name(name) {
		f.fail(f.w.WriteIdentity(v))
	}
}

func (f *fieldWriter) connectionID(name string, v codec.ConnectionId) {
	if f.name(name) {
		f.fail(f.w.WriteConnectionId(v))
	}
}

func (f *fieldWriter) durationMicros(name string, d time.Duration) {
	if f.name(name) {
		f.fail(f.w.WriteI64(int64(d / time.Microsecond)))
	}
}

func (f *fieldWriter) byteRows(name string, rows [][]byte) {
	if !f.name(name) {
		return
	}
	if err := f.w.WriteListHeader(uint32(len(rows))); err != nil {
		f.fail(err)
		return
	}
	for _, row := range rows {
		if f.err != nil {
			return
		}
		f.fail(f.w.WriteBytes(row))
	}
}

func (f *fieldWriter) tableUpdates(name string, tables []TableUpdate) {
	if !f.name(name) {
		return
	}
	if err := f.w.WriteListHeader(uint32(len(tables))); err != nil {
		f.fail(err)
		return
	}
	for _, t := range tables {
		if f.err != nil {
			return
		}
		f.fail(writeStruct(f.w, 4, func(inner *fieldWriter) {
			inner.u32("table_id", t.TableID)
			inner.str("table_name", t.TableName)
			inner.byteRows("inserts", t.Inserts)
			inner.byteRows("deletes", t.Deletes)
		}))
	}
}

func (f *fieldWriter) databaseUpdate(name string, u DatabaseUpdate) {
	if !f.name(name) {
		return
	}
	f.fail(writeStruct(f.w, 1, func(inner *fieldWriter) {
		inner.tableUpdates("tables", u.Tables)
	}))
}

func (f *fieldWriter) reducerCallInfo(name string, c ReducerCallInfo) {
	if !f.name(name) {
		return
	}
	f.fail(writeStruct(f.w, 4, func(inner *fieldWriter) {
		inner.str("name", c.Name)
		inner.u32("id", c.ID)
		inner.bytes("args", c.Args)
		inner.u32("request_id", uint32(c.RequestID))
	}))
}

func (f *fieldWriter) updateStatus(name string, s UpdateStatus) {
	if !f.name(name) {
		return
	}
	var variant uint32
	switch s.Kind {
	case StatusCommitted:
		variant = 0
	case StatusFailed:
		variant = 1
	case StatusOutOfEnergy:
		variant = 2
	}
	if err := f.w.WriteEnumHeader(variant); err != nil {
		f.fail(err)
		return
	}
	switch s.Kind {
	case StatusCommitted:
		u := DatabaseUpdate{}
		if s.Update != nil {
			u = *s.Update
		}
		f.fail(writeStruct(f.w, 1, func(inner *fieldWriter) {
			inner.tableUpdates("tables", u.Tables)
		}))
	case StatusFailed:
		f.fail(f.w.WriteString(s.FailMessage))
	case StatusOutOfEnergy:
		f.fail(f.w.WriteBool(true))
	}
}

func (f *fieldWriter) optionalU32(name string, v *uint32) {
	if !f.name(name) {
		return
	}
	if v == nil {
		f.fail(f.w.WriteOptionNone())
		return
	}
	if err := f.w.WriteOptionSomeHeader(); err != nil {
		f.fail(err)
		return
	}
	f.fail(f.w.WriteU32(*v))
}

func (f *fieldWriter) strList(name string, vs []string) {
	if !f.name(name) {
		return
	}
	if err := f.w.WriteListHeader(uint32(len(vs))); err != nil {
		f.fail(err)
		return
	}
	for _, v := range vs {
		if f.err != nil {
			return
		}
		f.fail(f.w.WriteString(v))
	}
}

// writeStruct writes a struct header with fieldCount fields, then invokes
// build to emit each field name/value pair via the returned fieldWriter.
func writeStruct(w *codec.Writer, fieldCount uint32, build func(f *fieldWriter)) error {
	if err := w.WriteStructHeader(fieldCount); err != nil {
		return err
	}
	f := &fieldWriter{w: w}
	build(f)
	return f.err
}

// structReader reads a struct header and then yields each field's name;
// the caller must decode that field's value (or, if unwanted, skip it via
// Reader.SkipValue) before the next field name is read.
type structReader struct {
	r         *codec.Reader
	remaining uint32
}

func newStructReader(r *codec.Reader) (*structReader, error) {
	n, err := r.ReadStructHeader()
	if err != nil {
		return nil, err
	}
	return &structReader{r: r, remaining: n}, nil
}

// next reads the next field's name, or returns ok=false once all fields of
// the struct have been consumed.
func (s *structReader) next() (name string, ok bool, err error) {
	if s.remaining == 0 {
		return "", false, nil
	}
	s.remaining--
	name, err = s.r.ReadFieldName()
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// skipRest discards every field not yet consumed, for forward compatibility
// with servers that add struct fields this client does not know about.
func (s *structReader) skipRest() error {
	for s.remaining > 0 {
		s.remaining--
		if _, err := s.r.ReadFieldName(); err != nil {
			return err
		}
		if err := s.r.SkipValue(); err != nil {
			return err
		}
	}
	return nil
}
