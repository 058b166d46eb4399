package card

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

type keyKind byte

const (
	kindMeta keyKind = iota
	kindRecord
	kindIndex
	kindSubject
)

// imageKey the synthetic key of a card image entry. All digits stored in BigEndian notation.
//
// [0] the kind (meta, record, index row, subject value)
//
// [1:3] the file group uint16
//
// [3:5] record index (record, index row) or slot (subject) uint16
//
// [5] group
//
// [6] column
//
// [7] position
type imageKey [8]byte

func newImageKey(kind keyKind, fg, n int) imageKey {
	var k imageKey
	k[0] = byte(kind)
	binary.BigEndian.PutUint16(k[1:3], uint16(fg))
	binary.BigEndian.PutUint16(k[3:5], uint16(n))
	return k
}

func metaKey(fg int) imageKey {
	return newImageKey(kindMeta, fg, 0)
}

func recordKey(fg, index int) imageKey {
	return newImageKey(kindRecord, fg, index)
}

func indexKey(fg, global int) imageKey {
	return newImageKey(kindIndex, fg, global)
}

func subjectValueKey(fg int, sk subjectKey) imageKey {
	k := newImageKey(kindSubject, fg, sk.slot)
	k[5] = byte(sk.group)
	k[6] = byte(sk.column)
	k[7] = byte(sk.position)
	return k
}

// String is Stringer implementation
func (k imageKey) String() string {
	return fmt.Sprintf("%s %s %s %s",
		hex.EncodeToString(k[0:1]),
		hex.EncodeToString(k[1:3]),
		hex.EncodeToString(k[3:5]),
		hex.EncodeToString(k[5:8]),
	)
}
