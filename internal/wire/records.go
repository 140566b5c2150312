package wire

import (
	"errors"
	"fmt"
	"io"
)

// Record version tags. Each record begins with a single version byte so the
// schema can evolve without breaking stored or in-flight data.
const (
	endpointVersion         = 1
	payloadReferenceVersion = 1
	payloadVersion          = 1
	addressBookEntryVersion = 1
)

// ErrUnknownVersion is returned when a record's version byte does not match
// a schema this implementation understands.
var ErrUnknownVersion = errors.New("unknown record version")

// Endpoint is the wire form of a public endpoint: its two public keys and
// the URL of the inbox that receives notifications for it.
type Endpoint struct {
	SigningPublicKey         []byte
	EncryptionPublicKey      []byte
	MessageReceivingEndpoint string
}

// PayloadReference is the wire form of the compact pointer that lets a
// recipient fetch and open a payload blob. ExpiresUTC is Unix nanoseconds.
type PayloadReference struct {
	Location   string
	Hash       []byte
	Key        []byte
	IV         []byte
	ExpiresUTC int64
}

// Payload is the wire form of application content.
type Payload struct {
	Content     []byte
	ContentType string
}

// AddressBookEntry is the wire form of a signed, published endpoint.
type AddressBookEntry struct {
	SerializedEndpoint []byte
	Signature          []byte
}

func writeVersion(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func readVersion(r io.Reader, want byte) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ErrTruncated
	}
	if b[0] != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUnknownVersion, b[0], want)
	}
	return nil
}

// WriteEndpoint serializes e.
func WriteEndpoint(w io.Writer, e *Endpoint) error {
	if err := writeVersion(w, endpointVersion); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, e.SigningPublicKey); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, e.EncryptionPublicKey); err != nil {
		return err
	}
	return writeString(w, e.MessageReceivingEndpoint)
}

// ReadEndpoint deserializes an Endpoint record.
func ReadEndpoint(r io.Reader, ceiling int) (*Endpoint, error) {
	if err := readVersion(r, endpointVersion); err != nil {
		return nil, err
	}
	signingPub, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	encryptionPub, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	inboxURL, err := readString(r, ceiling)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		SigningPublicKey:         signingPub,
		EncryptionPublicKey:      encryptionPub,
		MessageReceivingEndpoint: inboxURL,
	}, nil
}

// WritePayloadReference serializes ref. The receiver-populated reference
// location is deliberately not part of the wire form.
func WritePayloadReference(w io.Writer, ref *PayloadReference) error {
	if err := writeVersion(w, payloadReferenceVersion); err != nil {
		return err
	}
	if err := writeString(w, ref.Location); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, ref.Hash); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, ref.Key); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, ref.IV); err != nil {
		return err
	}
	return WriteInt64(w, ref.ExpiresUTC)
}

// ReadPayloadReference deserializes a PayloadReference record.
func ReadPayloadReference(r io.Reader, ceiling int) (*PayloadReference, error) {
	if err := readVersion(r, payloadReferenceVersion); err != nil {
		return nil, err
	}
	location, err := readString(r, ceiling)
	if err != nil {
		return nil, err
	}
	hash, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	key, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	iv, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	expires, err := ReadInt64(r)
	if err != nil {
		return nil, err
	}
	return &PayloadReference{
		Location:   location,
		Hash:       hash,
		Key:        key,
		IV:         iv,
		ExpiresUTC: expires,
	}, nil
}

// WritePayload serializes p.
func WritePayload(w io.Writer, p *Payload) error {
	if err := writeVersion(w, payloadVersion); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, p.Content); err != nil {
		return err
	}
	return writeString(w, p.ContentType)
}

// ReadPayload deserializes a Payload record.
func ReadPayload(r io.Reader, ceiling int) (*Payload, error) {
	if err := readVersion(r, payloadVersion); err != nil {
		return nil, err
	}
	content, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	contentType, err := readString(r, ceiling)
	if err != nil {
		return nil, err
	}
	return &Payload{Content: content, ContentType: contentType}, nil
}

// WriteAddressBookEntry serializes e.
func WriteAddressBookEntry(w io.Writer, e *AddressBookEntry) error {
	if err := writeVersion(w, addressBookEntryVersion); err != nil {
		return err
	}
	if err := WriteSizeAndBuffer(w, e.SerializedEndpoint); err != nil {
		return err
	}
	return WriteSizeAndBuffer(w, e.Signature)
}

// ReadAddressBookEntry deserializes an AddressBookEntry record.
func ReadAddressBookEntry(r io.Reader, ceiling int) (*AddressBookEntry, error) {
	if err := readVersion(r, addressBookEntryVersion); err != nil {
		return nil, err
	}
	serialized, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	signature, err := ReadSizeAndBuffer(r, ceiling)
	if err != nil {
		return nil, err
	}
	return &AddressBookEntry{SerializedEndpoint: serialized, Signature: signature}, nil
}
