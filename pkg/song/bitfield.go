package song

const base64Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-_"

var base64CharToInt = func() [128]int {
	var table [128]int
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		table[base64Alphabet[i]] = i
	}
	// Old links used "." in place of "_".
	table['.'] = 63
	return table
}()

func base64Value(c byte) int {
	if c >= 128 {
		return -1
	}
	return base64CharToInt[c]
}

// BitFieldWriter packs integers into a bit string that is later emitted as
// base64 digits, six bits per digit.
type BitFieldWriter struct {
	bits []byte
}

// Clear empties the writer.
func (w *BitFieldWriter) Clear() {
	w.bits = w.bits[:0]
}

// Len returns the number of written bits.
func (w *BitFieldWriter) Len() int {
	return len(w.bits)
}

// Write appends the low bitCount bits of value, most significant first.
func (w *BitFieldWriter) Write(bitCount int, value int) {
	for bitCount--; bitCount >= 0; bitCount-- {
		w.bits = append(w.bits, byte((value>>bitCount)&1))
	}
}

// WriteLongTail writes value >= minValue with an Elias-gamma-like prefix so
// small values take few bits and large values remain representable.
func (w *BitFieldWriter) WriteLongTail(minValue, minBits, value int) {
	if value < minValue {
		panic("song: long tail value out of bounds")
	}
	value -= minValue
	numBits := minBits
	for value >= 1<<numBits {
		w.bits = append(w.bits, 1)
		value -= 1 << numBits
		numBits++
	}
	w.bits = append(w.bits, 0)
	for numBits > 0 {
		numBits--
		w.bits = append(w.bits, byte((value>>numBits)&1))
	}
}

// WritePartDuration writes a duration of at least one part.
func (w *BitFieldWriter) WritePartDuration(value int) {
	w.WriteLongTail(1, 3, value)
}

// WritePinCount writes a count of at least one pin.
func (w *BitFieldWriter) WritePinCount(value int) {
	w.WriteLongTail(1, 0, value)
}

// WritePitchInterval writes a signed, non-zero interval.
func (w *BitFieldWriter) WritePitchInterval(value int) {
	if value < 0 {
		w.Write(1, 1)
		w.WriteLongTail(1, 3, -value)
	} else {
		w.Write(1, 0)
		w.WriteLongTail(1, 3, value)
	}
}

// Concat appends the bits of other.
func (w *BitFieldWriter) Concat(other *BitFieldWriter) {
	w.bits = append(w.bits, other.bits...)
}

// Key returns the written bits as a comparable string.
func (w *BitFieldWriter) Key() string {
	return string(w.bits)
}

// EncodeBase64 appends the bits to buf as base64 digits, zero padding the
// last digit.
func (w *BitFieldWriter) EncodeBase64(buf []byte) []byte {
	for i := 0; i < len(w.bits); i += 6 {
		value := 0
		for j := 0; j < 6; j++ {
			value <<= 1
			if i+j < len(w.bits) {
				value |= int(w.bits[i+j])
			}
		}
		buf = append(buf, base64Alphabet[value])
	}
	return buf
}

// LengthBase64 is the number of digits EncodeBase64 emits.
func (w *BitFieldWriter) LengthBase64() int {
	return (len(w.bits) + 5) / 6
}

// BitFieldReader reads values written by BitFieldWriter. Reading past the
// end yields zero bits and marks the reader as truncated.
type BitFieldReader struct {
	bits      []byte
	index     int
	truncated bool
}

// NewBitFieldReader decodes the base64 digits of source.
func NewBitFieldReader(source string) (*BitFieldReader, error) {
	r := &BitFieldReader{bits: make([]byte, 0, len(source)*6)}
	for i := 0; i < len(source); i++ {
		value := base64Value(source[i])
		if value < 0 {
			return nil, corruptf("invalid character in bit field")
		}
		for b := 5; b >= 0; b-- {
			r.bits = append(r.bits, byte((value>>b)&1))
		}
	}
	return r, nil
}

// Truncated reports whether a read ran past the end of the data.
func (r *BitFieldReader) Truncated() bool {
	return r.truncated
}

func (r *BitFieldReader) bit() int {
	if r.index >= len(r.bits) {
		r.truncated = true
		return 0
	}
	b := r.bits[r.index]
	r.index++
	return int(b)
}

// Read reads an unsigned value of bitCount bits.
func (r *BitFieldReader) Read(bitCount int) int {
	result := 0
	for ; bitCount > 0; bitCount-- {
		result = result<<1 | r.bit()
	}
	return result
}

// ReadLongTail reads a value written by WriteLongTail.
func (r *BitFieldReader) ReadLongTail(minValue, minBits int) int {
	result := minValue
	numBits := minBits
	for r.bit() == 1 {
		result += 1 << numBits
		numBits++
		if numBits > 30 {
			r.truncated = true
			return minValue
		}
	}
	for numBits > 0 {
		numBits--
		if r.bit() == 1 {
			result += 1 << numBits
		}
	}
	return result
}

// ReadPartDuration reads a duration written by WritePartDuration.
func (r *BitFieldReader) ReadPartDuration() int {
	return r.ReadLongTail(1, 3)
}

// ReadPinCount reads a count written by WritePinCount.
func (r *BitFieldReader) ReadPinCount() int {
	return r.ReadLongTail(1, 0)
}

// ReadPitchInterval reads an interval written by WritePitchInterval.
func (r *BitFieldReader) ReadPitchInterval() int {
	if r.Read(1) == 1 {
		return -r.ReadLongTail(1, 3)
	}
	return r.ReadLongTail(1, 3)
}
