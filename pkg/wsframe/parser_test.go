package wsframe

import (
	"bytes"
	"testing"
)

var helloFrame = []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}

func TestParse_MaskedHello(t *testing.T) {
	var p Parser
	var f Frame
	res, n := p.Parse(&f, helloFrame)
	if res != Accept || n != len(helloFrame) {
		t.Fatalf("got (%v, %d), want (Accept, %d)", res, n, len(helloFrame))
	}
	if !f.Fin || f.Opcode != OpText || string(f.Payload) != "Hello" {
		t.Errorf("frame = %+v", f)
	}
}

func TestParse_SplitAnywhere(t *testing.T) {
	for split := 0; split < len(helloFrame); split++ {
		var p Parser
		var f Frame
		res, n := p.Parse(&f, helloFrame[:split])
		if res != NeedMore || n != split {
			t.Fatalf("split %d: first = (%v, %d)", split, res, n)
		}
		res, _ = p.Parse(&f, helloFrame[split:])
		if res != Accept || string(f.Payload) != "Hello" {
			t.Fatalf("split %d: second = %v, payload %q", split, res, f.Payload)
		}
	}
}

func TestParse_OneFramePerCycle(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	var buf []byte
	buf = AppendMasked(buf, false, OpText, []byte("ab"), key)
	buf = AppendMasked(buf, true, OpContinuation, []byte("cd"), key)

	var p Parser
	var got []Frame
	for len(buf) > 0 {
		var f Frame
		res, n := p.Parse(&f, buf)
		if res != Accept {
			t.Fatalf("result = %v", res)
		}
		got = append(got, f)
		buf = buf[n:]
	}
	if len(got) != 2 {
		t.Fatalf("frames = %d, want 2", len(got))
	}
	if got[0].Fin || got[0].Opcode != OpText || string(got[0].Payload) != "ab" {
		t.Errorf("first = %+v", got[0])
	}
	if !got[1].Fin || got[1].Opcode != OpContinuation || string(got[1].Payload) != "cd" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestParse_ExtendedLengths(t *testing.T) {
	key := [4]byte{0xaa, 0xbb, 0xcc, 0xdd}
	for _, size := range []int{0, 125, 126, 65535, 65536, 70000} {
		payload := bytes.Repeat([]byte{'x'}, size)
		wire := AppendMasked(nil, true, OpBinary, payload, key)

		var p Parser
		var f Frame
		res, n := p.Parse(&f, wire)
		if res != Accept || n != len(wire) {
			t.Fatalf("size %d: got (%v, %d)", size, res, n)
		}
		if !bytes.Equal(f.Payload, payload) {
			t.Fatalf("size %d: payload mismatch", size)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		max   int64
	}{
		{"unmasked", []byte{0x81, 0x05, 'H', 'e', 'l', 'l', 'o'}, 0},
		{"rsv1", []byte{0xc1, 0x85}, 0},
		{"rsv3", []byte{0x91, 0x85}, 0},
		{"length msb", []byte{0x82, 0xff, 0x80, 0, 0, 0, 0, 0, 0, 0}, -1},
		{"over limit", []byte{0x82, 0xfe, 0x01, 0x00}, 255},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Parser{MaxPayload: tc.max}
			var f Frame
			res, _ := p.Parse(&f, tc.input)
			if res != Reject {
				t.Fatalf("result = %v, want Reject", res)
			}
			if res, _ := p.Parse(&f, helloFrame); res != Reject {
				t.Errorf("after reject: %v", res)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	msg := []byte("round trip")
	wire := AppendData(nil, OpText, msg)
	if wire[0] != 0x81 || wire[1] != byte(len(msg)) {
		t.Fatalf("header = % x", wire[:2])
	}

	// Re-mask the server frame as a client would send it.
	key := [4]byte{9, 8, 7, 6}
	client := AppendMasked(nil, true, Opcode(wire[0]&0x0f), wire[2:], key)

	var p Parser
	var f Frame
	if res, _ := p.Parse(&f, client); res != Accept {
		t.Fatalf("result = %v", res)
	}
	if f.Opcode != OpText || !bytes.Equal(f.Payload, msg) {
		t.Errorf("frame = %+v", f)
	}
}

func TestEncode_Lengths(t *testing.T) {
	tests := []struct {
		size   int
		header []byte
	}{
		{5, []byte{0x82, 5}},
		{126, []byte{0x82, 126, 0x00, 0x7e}},
		{65536, []byte{0x82, 127, 0, 0, 0, 0, 0, 1, 0, 0}},
	}
	for _, tc := range tests {
		wire := AppendData(nil, OpBinary, make([]byte, tc.size))
		if !bytes.Equal(wire[:len(tc.header)], tc.header) {
			t.Errorf("size %d: header = % x, want % x", tc.size, wire[:len(tc.header)], tc.header)
		}
		if len(wire) != len(tc.header)+tc.size {
			t.Errorf("size %d: len = %d", tc.size, len(wire))
		}
	}
}

func TestControl(t *testing.T) {
	pong, err := Control(OpPong, []byte("hi"))
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if !bytes.Equal(pong, []byte{0x8a, 2, 'h', 'i'}) {
		t.Errorf("pong = % x", pong)
	}
	if _, err := Control(OpPing, make([]byte, 126)); err != ErrControlTooLarge {
		t.Errorf("err = %v, want ErrControlTooLarge", err)
	}
	if _, err := Control(OpText, nil); err != ErrNotControl {
		t.Errorf("err = %v, want ErrNotControl", err)
	}
}

func TestClose(t *testing.T) {
	wire := Close(CloseNormal, "bye")
	want := []byte{0x88, 5, 0x03, 0xe8, 'b', 'y', 'e'}
	if !bytes.Equal(wire, want) {
		t.Fatalf("Close = % x, want % x", wire, want)
	}
	code, reason := ParseClose(wire[2:])
	if code != CloseNormal || reason != "bye" {
		t.Errorf("ParseClose = (%d, %q)", code, reason)
	}
	if code, _ := ParseClose([]byte{0x03}); code != CloseNoStatusReceived {
		t.Errorf("short payload code = %d", code)
	}

	long := Close(CloseGoingAway, string(bytes.Repeat([]byte{'r'}, 300)))
	if len(long) != 2+MaxControlPayload {
		t.Errorf("long close frame len = %d", len(long))
	}
}

func TestOpcode(t *testing.T) {
	for _, op := range []Opcode{OpClose, OpPing, OpPong, 0xB, 0xF} {
		if !op.IsControl() {
			t.Errorf("%v.IsControl() = false", op)
		}
	}
	for _, op := range []Opcode{OpContinuation, OpText, OpBinary, 0x3} {
		if op.IsControl() {
			t.Errorf("%v.IsControl() = true", op)
		}
	}
	if OpPong.String() != "Pong" || Opcode(0x3).String() != "Unknown" {
		t.Error("String")
	}
}
