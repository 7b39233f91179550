package parser

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildClientHello assembles a minimal TLS record carrying a ClientHello
// with a server_name extension naming hostname, mirroring the structure
// TLS.Parse walks.
func buildClientHello(hostname string) []byte {
	var sni bytes.Buffer
	sni.WriteByte(0) // name_type: host_name
	binary.Write(&sni, binary.BigEndian, uint16(len(hostname)))
	sni.WriteString(hostname)

	var list bytes.Buffer
	binary.Write(&list, binary.BigEndian, uint16(sni.Len()))
	list.Write(sni.Bytes())

	var ext bytes.Buffer
	binary.Write(&ext, binary.BigEndian, uint16(0)) // extension type: server_name
	binary.Write(&ext, binary.BigEndian, uint16(list.Len()))
	ext.Write(list.Bytes())

	var ch bytes.Buffer
	ch.Write(make([]byte, 2))  // client_version
	ch.Write(make([]byte, 32)) // random
	ch.WriteByte(0)            // session id length
	binary.Write(&ch, binary.BigEndian, uint16(2))
	ch.Write([]byte{0x00, 0x35}) // one cipher suite
	ch.WriteByte(1)              // compression methods length
	ch.WriteByte(0)              // null compression
	binary.Write(&ch, binary.BigEndian, uint16(ext.Len()))
	ch.Write(ext.Bytes())

	var hs bytes.Buffer
	hs.WriteByte(0x01) // handshake type: client_hello
	hsLen := ch.Len()
	hs.Write([]byte{byte(hsLen >> 16), byte(hsLen >> 8), byte(hsLen)})
	hs.Write(ch.Bytes())

	var record bytes.Buffer
	record.WriteByte(0x16)               // content type: handshake
	record.Write([]byte{0x03, 0x01})     // version
	binary.Write(&record, binary.BigEndian, uint16(hs.Len()))
	record.Write(hs.Bytes())

	return record.Bytes()
}

func TestTLSParseExtractsSNI(t *testing.T) {
	buf := buildClientHello("example.com")

	name, result := TLS{}.Parse(buf)
	if result < 0 {
		t.Fatalf("Parse returned %v, want a successful result", result)
	}
	if name != "example.com" {
		t.Errorf("Parse hostname = %q, want %q", name, "example.com")
	}
}

func TestTLSParseIncompleteOnTruncation(t *testing.T) {
	buf := buildClientHello("example.com")

	for _, cut := range []int{0, 1, 5, 20, len(buf) - 1} {
		name, result := TLS{}.Parse(buf[:cut])
		if result != Incomplete {
			t.Errorf("Parse(truncated to %d) = (%q, %v), want Incomplete", cut, name, result)
		}
	}
}

func TestTLSParseRejectsNonHandshake(t *testing.T) {
	buf := buildClientHello("example.com")
	buf[0] = 0x17 // application data, not handshake

	_, result := TLS{}.Parse(buf)
	if result >= NoHostname {
		t.Errorf("Parse on non-handshake content type = %v, want Malformed", result)
	}
}

func TestTLSParseNoHostnameWhenSNIAbsent(t *testing.T) {
	var ch bytes.Buffer
	ch.Write(make([]byte, 2))
	ch.Write(make([]byte, 32))
	ch.WriteByte(0)
	binary.Write(&ch, binary.BigEndian, uint16(2))
	ch.Write([]byte{0x00, 0x35})
	ch.WriteByte(1)
	ch.WriteByte(0)
	binary.Write(&ch, binary.BigEndian, uint16(0)) // no extensions

	var hs bytes.Buffer
	hs.WriteByte(0x01)
	hsLen := ch.Len()
	hs.Write([]byte{byte(hsLen >> 16), byte(hsLen >> 8), byte(hsLen)})
	hs.Write(ch.Bytes())

	var record bytes.Buffer
	record.WriteByte(0x16)
	record.Write([]byte{0x03, 0x01})
	binary.Write(&record, binary.BigEndian, uint16(hs.Len()))
	record.Write(hs.Bytes())

	_, result := TLS{}.Parse(record.Bytes())
	if result != NoHostname {
		t.Errorf("Parse with no SNI extension = %v, want NoHostname", result)
	}
}
