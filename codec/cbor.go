package codec

import "github.com/fxamacker/cbor/v2"

// cborEnc produces deterministic output so equal bucket states encode to
// equal bytes and therefore equal checksums.
var cborEnc = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// CBOR is a compact binary codec backed by github.com/fxamacker/cbor/v2.
type CBOR struct{}

// Marshal encodes the value to canonical CBOR.
func (CBOR) Marshal(v any) ([]byte, error) { return cborEnc.Marshal(v) }

// Unmarshal decodes the CBOR data into v.
func (CBOR) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// Name returns the unique name of the codec ("cbor").
func (CBOR) Name() string { return "cbor" }
