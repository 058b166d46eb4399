package grpcproto

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/S0me0neR0man/simbook/internal/record"
)

func TestInt(t *testing.T) {
	s := Message(map[string]*structpb.Value{
		FieldFileGroup: structpb.NewNumberValue(float64(record.EFAdn)),
		FieldIndex:     structpb.NewNumberValue(1.5),
		FieldRecord:    structpb.NewStringValue("3"),
	})

	fg, err := Int(s, FieldFileGroup)
	require.NoError(t, err)
	require.Equal(t, record.EFAdn, fg)

	for _, field := range []string{FieldIndex, FieldRecord, FieldGroup} {
		_, err = Int(s, field)
		require.ErrorIs(t, err, ErrBadMessage, field)
	}
}

func TestRecord(t *testing.T) {
	rec := record.New("Alice", "123")
	rec.Emails = []string{"a@x", ""}
	rec.Index = 4

	s := Message(map[string]*structpb.Value{
		FieldRecord:  RecordValue(rec),
		FieldBefore:  structpb.NewNumberValue(1),
		FieldRecords: RecordsValue([]record.Record{rec, {}}),
	})

	got, err := Record(s, FieldRecord)
	require.NoError(t, err)
	require.True(t, rec.Equal(got))
	require.Equal(t, 4, got.Index)
	require.Equal(t, []string{"a@x", ""}, got.Emails)

	_, err = Record(s, FieldBefore)
	require.ErrorIs(t, err, ErrBadMessage)
	_, err = Record(s, FieldAfter)
	require.ErrorIs(t, err, ErrBadMessage)

	list, err := RecordsFromValue(s.Fields[FieldRecords])
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[1].IsEmpty())

	_, err = RecordsFromValue(structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{structpb.NewBoolValue(true)}}))
	require.ErrorIs(t, err, ErrBadMessage)
}
