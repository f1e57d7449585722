package adapters

import "bytes"

// Detect implements the byte-sniffing auto-detection rule of spec §6
// item 1 as a pure function over the raw payload, independent of any
// declared content type (spec §9 "auto-detection is a separate pure
// function over the raw payload").
func Detect(payload []byte) InputFormat {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")

	if bytes.HasPrefix(trimmed, []byte("MSH")) {
		return FormatHL7v2
	}
	if len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(trimmed, []byte(`"resourceType"`)) {
		return FormatFHIR
	}
	return FormatNative
}
