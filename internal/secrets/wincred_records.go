package secrets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Credential Manager record kinds that hold passwords
const (
	credTypeGeneric        uint32 = 1
	credTypeDomainPassword uint32 = 2
)

// credRecord is one enumerated Credential Manager record, copied out of the
// native buffer
type credRecord struct {
	Type       uint32
	TargetName string
	UserName   string
	Blob       []byte
}

var errOddBlob = errors.New("blob has an odd number of bytes")

// decodeUTF16Blob decodes a little-endian UTF-16 blob. The size is a byte
// count, so an odd size can never be UTF-16 and is rejected, as is any
// unpaired surrogate.
func decodeUTF16Blob(blob []byte) (string, error) {
	if len(blob)%2 != 0 {
		return "", errOddBlob
	}
	units := make([]uint16, len(blob)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(blob[2*i:])
	}
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
				return "", fmt.Errorf("unpaired high surrogate at unit %d", i)
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF:
			return "", fmt.Errorf("unpaired low surrogate at unit %d", i)
		}
	}
	return string(utf16.Decode(units)), nil
}

// encodeUTF16Blob encodes text as little-endian UTF-16 without a terminator
func encodeUTF16Blob(s string) []byte {
	units := utf16.Encode([]rune(s))
	blob := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(blob[2*i:], u)
	}
	return blob
}

// collectRecords keeps generic and domain-password records and decodes
// their blobs. Records that fail to decode are skipped.
func collectRecords(records []credRecord) []Found {
	found := make([]Found, 0, len(records))
	for _, rec := range records {
		if rec.Type != credTypeGeneric && rec.Type != credTypeDomainPassword {
			continue
		}
		password, err := decodeUTF16Blob(rec.Blob)
		if err != nil {
			log().Debug("skipping undecodable credential", "backend", BackendWinCred, "target", rec.TargetName, "error", err)
			continue
		}
		found = append(found, Found{Account: rec.UserName, Secret: []byte(password)})
	}
	return found
}

// winCredDefaultTarget is where a credential lives when no target is given
func winCredDefaultTarget(service, user string) string {
	return user + "." + service
}

// winCredFilter is the CredEnumerate filter for a service or explicit target
func winCredFilter(service string, target *string) string {
	if target != nil {
		return *target
	}
	return "*." + service
}
