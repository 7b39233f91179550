package parser

// maxTLSRecord is the plaintext record size limit from RFC 5246 §6.2.1;
// a declared record length above this is never valid, so it is treated
// as malformed rather than "need more bytes".
const maxTLSRecord = 1 << 14

// TLS extracts the SNI hostname from a TLS ClientHello record. It walks
// the same record -> handshake -> extensions structure a real TLS stack
// would, stopping as soon as the server_name extension is found.
type TLS struct{}

func (TLS) Parse(buf []byte) (string, Result) {
	if len(buf) < 5 {
		return "", Incomplete
	}
	if buf[0] != 0x16 { // ContentType: handshake
		return "", Malformed(0)
	}

	recordLen := int(buf[3])<<8 | int(buf[4])
	if recordLen > maxTLSRecord {
		return "", Malformed(1)
	}
	if len(buf) < 5+recordLen {
		return "", Incomplete
	}
	hs := buf[5 : 5+recordLen]

	if len(hs) < 4 {
		return "", Incomplete
	}
	if hs[0] != 0x01 { // HandshakeType: client_hello
		return "", Malformed(2)
	}
	hsLen := int(hs[1])<<16 | int(hs[2])<<8 | int(hs[3])
	if len(hs) < 4+hsLen {
		return "", Incomplete
	}
	ch := hs[4 : 4+hsLen]

	pos := 2 + 32 // client_version + random
	if pos >= len(ch) {
		return "", Malformed(3)
	}

	sessionIDLen := int(ch[pos])
	pos += 1 + sessionIDLen
	if pos+2 > len(ch) {
		return "", Malformed(4)
	}

	cipherSuitesLen := int(ch[pos])<<8 | int(ch[pos+1])
	pos += 2 + cipherSuitesLen
	if pos+1 > len(ch) {
		return "", Malformed(5)
	}

	compressionLen := int(ch[pos])
	pos += 1 + compressionLen
	if pos+2 > len(ch) {
		return "", Malformed(6)
	}

	extensionsLen := int(ch[pos])<<8 | int(ch[pos+1])
	pos += 2
	if pos+extensionsLen > len(ch) {
		return "", Malformed(7)
	}

	name, ok := findServerName(ch[pos : pos+extensionsLen])
	if !ok {
		return "", NoHostname
	}
	return name, Result(len(name))
}

// findServerName walks a ClientHello's extensions looking for
// server_name (type 0).
func findServerName(extensions []byte) (string, bool) {
	pos := 0
	for pos+4 <= len(extensions) {
		extType := int(extensions[pos])<<8 | int(extensions[pos+1])
		extLen := int(extensions[pos+2])<<8 | int(extensions[pos+3])
		pos += 4

		if pos+extLen > len(extensions) {
			return "", false
		}
		if extType == 0 {
			return parseServerNameList(extensions[pos : pos+extLen])
		}
		pos += extLen
	}
	return "", false
}

// parseServerNameList extracts the first host_name entry (type 0) from a
// server_name extension's ServerNameList.
func parseServerNameList(data []byte) (string, bool) {
	if len(data) < 2 {
		return "", false
	}
	listLen := int(data[0])<<8 | int(data[1])
	if len(data) < 2+listLen {
		return "", false
	}
	list := data[2 : 2+listLen]

	pos := 0
	for pos+3 <= len(list) {
		nameType := list[pos]
		nameLen := int(list[pos+1])<<8 | int(list[pos+2])
		pos += 3

		if pos+nameLen > len(list) {
			return "", false
		}
		if nameType == 0 {
			return string(list[pos : pos+nameLen]), true
		}
		pos += nameLen
	}
	return "", false
}
