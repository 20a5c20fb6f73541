package patch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sbl8/routegraph/core"
)

// Binary patch format: a magic number, a version, then length-prefixed
// node and connection records. Each string record is padded to a 32-byte
// boundary with core.Align32, matching the padding scheme the original
// compiler used for its own serialized payloads.
const (
	magic   uint32 = 0x52475048 // "RGPH"
	version uint16 = 1
)

// Encode serializes g into the binary patch format, letting a compiled
// topology be persisted and reloaded without re-parsing YAML.
func (g *Graph) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, magic); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, version); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(g.SlotSize)); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(g.Nodes))); err != nil {
		return nil, err
	}
	for _, n := range g.Nodes {
		if err := writeString(&buf, n.Label); err != nil {
			return nil, err
		}
		if err := writeString(&buf, n.Type); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(n.Channels)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(n.Params))); err != nil {
			return nil, err
		}
		for k, v := range n.Params {
			if err := writeString(&buf, k); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				return nil, err
			}
		}
	}

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(g.Connections))); err != nil {
		return nil, err
	}
	for _, c := range g.Connections {
		if err := writeString(&buf, c.From); err != nil {
			return nil, err
		}
		if err := writeString(&buf, c.To); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, c.Gain); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses data previously produced by Encode.
func Decode(data []byte) (*Graph, error) {
	r := bytes.NewReader(data)

	var m uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("patch: reading magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("patch: bad magic %#x, want %#x", m, magic)
	}
	var v uint16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, fmt.Errorf("patch: reading version: %w", err)
	}
	if v != version {
		return nil, fmt.Errorf("patch: unsupported version %d", v)
	}

	var slotSize uint32
	if err := binary.Read(r, binary.LittleEndian, &slotSize); err != nil {
		return nil, err
	}

	var nodeCount uint32
	if err := binary.Read(r, binary.LittleEndian, &nodeCount); err != nil {
		return nil, err
	}
	g := &Graph{SlotSize: int(slotSize), Nodes: make([]Node, nodeCount)}
	for i := range g.Nodes {
		label, err := readString(r)
		if err != nil {
			return nil, err
		}
		typ, err := readString(r)
		if err != nil {
			return nil, err
		}
		var channels uint32
		if err := binary.Read(r, binary.LittleEndian, &channels); err != nil {
			return nil, err
		}
		var paramCount uint32
		if err := binary.Read(r, binary.LittleEndian, &paramCount); err != nil {
			return nil, err
		}
		params := make(map[string]float64, paramCount)
		for p := uint32(0); p < paramCount; p++ {
			key, err := readString(r)
			if err != nil {
				return nil, err
			}
			var val float64
			if err := binary.Read(r, binary.LittleEndian, &val); err != nil {
				return nil, err
			}
			params[key] = val
		}
		g.Nodes[i] = Node{Label: label, Type: typ, Channels: int(channels), Params: params}
	}

	var connCount uint32
	if err := binary.Read(r, binary.LittleEndian, &connCount); err != nil {
		return nil, err
	}
	g.Connections = make([]Connection, connCount)
	for i := range g.Connections {
		from, err := readString(r)
		if err != nil {
			return nil, err
		}
		to, err := readString(r)
		if err != nil {
			return nil, err
		}
		var gain float64
		if err := binary.Read(r, binary.LittleEndian, &gain); err != nil {
			return nil, err
		}
		g.Connections[i] = Connection{From: from, To: to, Gain: gain}
	}

	return g, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	if _, err := buf.WriteString(s); err != nil {
		return err
	}
	if pad := core.Align32(len(s)) - len(s); pad > 0 {
		if _, err := buf.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	if pad := core.Align32(int(n)) - int(n); pad > 0 {
		if _, err := r.Seek(int64(pad), io.SeekCurrent); err != nil {
			return "", err
		}
	}
	return string(b), nil
}
