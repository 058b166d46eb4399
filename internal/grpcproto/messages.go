package grpcproto

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/S0me0neR0man/simbook/internal/record"
)

// Message fields.
const (
	FieldFileGroup   = "fg"
	FieldIndex       = "index"
	FieldGroup       = "group"
	FieldLocal       = "local"
	FieldRecord      = "record"
	FieldBefore      = "before"
	FieldAfter       = "after"
	FieldRecords     = "records"
	FieldLoaded      = "loaded"
	FieldPartial     = "partial"
	FieldRecordLen   = "record_length"
	FieldTotalLen    = "total_length"
	FieldRecordCount = "record_count"

	fieldTag     = "tag"
	fieldNumber  = "number"
	fieldEmails  = "emails"
	fieldNumbers = "numbers"
)

var ErrBadMessage = errors.New("bad message")

func stringList(values []string) *structpb.Value {
	list := make([]*structpb.Value, len(values))
	for i, v := range values {
		list[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

// RecordValue encodes rec as a struct value.
func RecordValue(rec record.Record) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTag:     structpb.NewStringValue(rec.Tag),
		fieldNumber:  structpb.NewStringValue(rec.Number),
		fieldEmails:  stringList(rec.Emails),
		fieldNumbers: stringList(rec.Numbers),
		FieldIndex:   structpb.NewNumberValue(float64(rec.Index)),
	}})
}

// RecordFromValue decodes a RecordValue, missing fields stay empty.
func RecordFromValue(v *structpb.Value) (record.Record, error) {
	s := v.GetStructValue()
	if s == nil {
		return record.Record{}, fmt.Errorf("%w: record is not a struct", ErrBadMessage)
	}
	f := s.GetFields()

	rec := record.Record{
		Tag:    f[fieldTag].GetStringValue(),
		Number: f[fieldNumber].GetStringValue(),
		Index:  int(f[FieldIndex].GetNumberValue()),
	}
	for _, e := range f[fieldEmails].GetListValue().GetValues() {
		rec.Emails = append(rec.Emails, e.GetStringValue())
	}
	for _, n := range f[fieldNumbers].GetListValue().GetValues() {
		rec.Numbers = append(rec.Numbers, n.GetStringValue())
	}
	return rec, nil
}

// RecordsValue encodes a record list.
func RecordsValue(list []record.Record) *structpb.Value {
	values := make([]*structpb.Value, len(list))
	for i, rec := range list {
		values[i] = RecordValue(rec)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// RecordsFromValue decodes a RecordsValue.
func RecordsFromValue(v *structpb.Value) ([]record.Record, error) {
	values := v.GetListValue().GetValues()
	list := make([]record.Record, 0, len(values))
	for i, item := range values {
		rec, err := RecordFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		list = append(list, rec)
	}
	return list, nil
}

// Int reads a whole number field.
func Int(s *structpb.Struct, field string) (int, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return 0, fmt.Errorf("%w: %s is missing", ErrBadMessage, field)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrBadMessage, field)
	}
	return int(n.NumberValue), nil
}

// Record reads a record field.
func Record(s *structpb.Struct, field string) (record.Record, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s is missing", ErrBadMessage, field)
	}
	rec, err := RecordFromValue(v)
	if err != nil {
		return record.Record{}, fmt.Errorf("%s: %w", field, err)
	}
	return rec, nil
}

// Message builds a struct from fields.
func Message(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}

// FileGroupRequest the request of Load, Cached and Capacity.
func FileGroupRequest(fg int) *structpb.Struct {
	return Message(map[string]*structpb.Value{
		FieldFileGroup: structpb.NewNumberValue(float64(fg)),
	})
}
