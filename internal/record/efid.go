package record

// Elementary file ids, see 3GPP TS 51.011 and TS 31.102.
const (
	EFAdn    = 0x6F3A
	EFFdn    = 0x6F3B
	EFMsisdn = 0x6F40
	EFSdn    = 0x6F49
	EFExt1   = 0x6F4A
	EFExt2   = 0x6F4B
	EFExt3   = 0x6F4C
	EFMbdn   = 0x6FC7
	EFExt6   = 0x6FC8
	EFPbr    = 0x4F30
)

// ExtensionFor returns the extension EF of an ADN-like EF, 0 for the
// phonebook reference file which has none, -1 when fg is unknown.
func ExtensionFor(fg int) int {
	switch fg {
	case EFMbdn:
		return EFExt6
	case EFAdn, EFMsisdn:
		return EFExt1
	case EFSdn:
		return EFExt3
	case EFFdn:
		return EFExt2
	case EFPbr:
		return 0
	default:
		return -1
	}
}

// IsExtended reports whether the records of fg carry subjects in companion files.
func IsExtended(fg int) bool {
	return fg == EFPbr
}
