package keypackage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"meshvox/internal/domain"
)

// MarshalPayload serializes the signed portion of a KeyPackage in the
// canonical layout. This is the exact byte string the signature covers.
func MarshalPayload(kp domain.KeyPackage) []byte {
	name := []byte(kp.Credential.Name)

	var buf bytes.Buffer
	buf.Grow(2 + 2 + 4 + len(kp.InitKey) + 4 + len(name) + 4 + len(kp.Credential.IdentityKey) + 8 + 8)

	be := binary.BigEndian
	var u16 [2]byte
	var u32 [4]byte
	var u64 [8]byte

	be.PutUint16(u16[:], kp.Version)
	buf.Write(u16[:])
	be.PutUint16(u16[:], kp.CipherSuite)
	buf.Write(u16[:])

	be.PutUint32(u32[:], uint32(len(kp.InitKey)))
	buf.Write(u32[:])
	buf.Write(kp.InitKey.Slice())

	be.PutUint32(u32[:], uint32(len(name)))
	buf.Write(u32[:])
	buf.Write(name)

	be.PutUint32(u32[:], uint32(len(kp.Credential.IdentityKey)))
	buf.Write(u32[:])
	buf.Write(kp.Credential.IdentityKey.Slice())

	be.PutUint64(u64[:], uint64(kp.NotBefore))
	buf.Write(u64[:])
	be.PutUint64(u64[:], uint64(kp.NotAfter))
	buf.Write(u64[:])

	return buf.Bytes()
}

// Marshal serializes a full KeyPackage: the canonical payload followed by
// sigLen:u32 and the signature. The init private key is never included.
func Marshal(kp domain.KeyPackage) []byte {
	payload := MarshalPayload(kp)
	out := make([]byte, 0, len(payload)+4+len(kp.Signature))
	out = append(out, payload...)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(kp.Signature)))
	out = append(out, u32[:]...)
	out = append(out, kp.Signature...)
	return out
}

// Unmarshal parses a Marshal output back into a KeyPackage.
func Unmarshal(data []byte) (domain.KeyPackage, error) {
	r := reader{buf: data}
	var kp domain.KeyPackage

	kp.Version = r.u16()
	kp.CipherSuite = r.u16()

	initKey := r.vec()
	if len(initKey) != len(kp.InitKey) {
		return domain.KeyPackage{}, fmt.Errorf("%w: init key length %d", domain.ErrValidation, len(initKey))
	}
	copy(kp.InitKey[:], initKey)

	kp.Credential.Name = string(r.vec())

	idKey := r.vec()
	if len(idKey) != len(kp.Credential.IdentityKey) {
		return domain.KeyPackage{}, fmt.Errorf("%w: identity key length %d", domain.ErrValidation, len(idKey))
	}
	copy(kp.Credential.IdentityKey[:], idKey)

	kp.NotBefore = int64(r.u64())
	kp.NotAfter = int64(r.u64())
	kp.Signature = append([]byte(nil), r.vec()...)
	kp.Capabilities = []uint16{kp.CipherSuite}

	if r.err != nil {
		return domain.KeyPackage{}, fmt.Errorf("%w: truncated key package", domain.ErrValidation)
	}
	return kp, nil
}

// reader is a cursor over a binary buffer that latches the first error.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil || len(r.buf) < n {
		r.err = fmt.Errorf("short read")
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) vec() []byte {
	n := r.u32()
	// Compare unsigned before converting: a crafted length >= 2^31 would
	// go negative as an int on 32-bit platforms and slip past take's guard.
	if r.err == nil && uint64(n) > uint64(len(r.buf)) {
		r.err = fmt.Errorf("short read")
		return nil
	}
	return r.take(int(n))
}
