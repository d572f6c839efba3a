package pkcs12

import "fmt"

// berToDER rewrites a BER-encoded element as minimal definite-length DER so
// encoding/asn1 can unmarshal it. Indefinite lengths are resolved, long-form
// lengths are minimized, and constructed OCTET STRING segments are merged
// into a single primitive. DER input passes through byte-identical.
func berToDER(ber []byte) ([]byte, error) {
	der, rest, err := berElementToDER(ber)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, wrapAsn1Error("ber", fmt.Errorf("%d trailing bytes", len(rest)))
	}
	return der, nil
}

func berElementToDER(in []byte) (der, rest []byte, err error) {
	if len(in) < 2 {
		return nil, nil, wrapAsn1Error("ber", fmt.Errorf("truncated element"))
	}

	idLen := 1
	if in[0]&0x1f == 0x1f {
		// High tag number form: identifier continues while the top bit is set.
		for {
			if idLen >= len(in) {
				return nil, nil, wrapAsn1Error("ber", fmt.Errorf("truncated identifier"))
			}
			c := in[idLen]
			idLen++
			if c&0x80 == 0 {
				break
			}
		}
	}
	if idLen >= len(in) {
		return nil, nil, wrapAsn1Error("ber", fmt.Errorf("missing length"))
	}

	constructed := in[0]&0x20 != 0
	id := in[:idLen]

	lengthByte := in[idLen]
	offset := idLen + 1

	var content []byte
	indefinite := false
	switch {
	case lengthByte == 0x80:
		if !constructed {
			return nil, nil, wrapAsn1Error("ber", fmt.Errorf("indefinite length on primitive element"))
		}
		indefinite = true
	case lengthByte < 0x80:
		length := int(lengthByte)
		if offset+length > len(in) {
			return nil, nil, wrapAsn1Error("ber", fmt.Errorf("truncated content"))
		}
		content = in[offset : offset+length]
		rest = in[offset+length:]
	default:
		numBytes := int(lengthByte & 0x7f)
		if numBytes > 4 || offset+numBytes > len(in) {
			return nil, nil, wrapAsn1Error("ber", fmt.Errorf("unsupported length encoding"))
		}
		length := 0
		for _, c := range in[offset : offset+numBytes] {
			length = length<<8 | int(c)
		}
		offset += numBytes
		if length < 0 || offset+length > len(in) {
			return nil, nil, wrapAsn1Error("ber", fmt.Errorf("truncated content"))
		}
		content = in[offset : offset+length]
		rest = in[offset+length:]
	}

	if !constructed {
		return appendTLV(id, content), rest, nil
	}

	var children [][]byte
	if indefinite {
		remainder := in[offset:]
		for {
			if len(remainder) >= 2 && remainder[0] == 0x00 && remainder[1] == 0x00 {
				rest = remainder[2:]
				break
			}
			if len(remainder) == 0 {
				return nil, nil, wrapAsn1Error("ber", fmt.Errorf("missing end-of-contents"))
			}
			var child []byte
			child, remainder, err = berElementToDER(remainder)
			if err != nil {
				return nil, nil, err
			}
			children = append(children, child)
		}
	} else {
		remainder := content
		for len(remainder) > 0 {
			var child []byte
			child, remainder, err = berElementToDER(remainder)
			if err != nil {
				return nil, nil, err
			}
			children = append(children, child)
		}
	}

	// A constructed universal OCTET STRING is a BER segmentation of one
	// primitive string; DER requires the merged primitive form.
	if in[0]&0xc0 == 0 && in[0]&0x1f == tagOctetString {
		var merged []byte
		for _, child := range children {
			segment, err := octetStringContent(child)
			if err != nil {
				return nil, nil, err
			}
			merged = append(merged, segment...)
		}
		return appendTLV([]byte{tagOctetString}, merged), rest, nil
	}

	var body []byte
	for _, child := range children {
		body = append(body, child...)
	}
	return appendTLV(id, body), rest, nil
}

// octetStringContent extracts the content octets of a DER primitive OCTET
// STRING (a normalized segment of a constructed BER string).
func octetStringContent(der []byte) ([]byte, error) {
	if len(der) < 2 || der[0] != tagOctetString {
		return nil, wrapAsn1Error("ber", fmt.Errorf("constructed octet string segment is not an octet string"))
	}
	if der[1] < 0x80 {
		return der[2:], nil
	}
	numBytes := int(der[1] & 0x7f)
	if 2+numBytes > len(der) {
		return nil, wrapAsn1Error("ber", fmt.Errorf("truncated octet string segment"))
	}
	return der[2+numBytes:], nil
}

func appendTLV(id, content []byte) []byte {
	out := make([]byte, 0, len(id)+5+len(content))
	out = append(out, id...)
	out = append(out, encodeLength(len(content))...)
	return append(out, content...)
}

func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var buf []byte
	for m := n; m > 0; m >>= 8 {
		buf = append([]byte{byte(m)}, buf...)
	}
	return append([]byte{byte(0x80 | len(buf))}, buf...)
}
