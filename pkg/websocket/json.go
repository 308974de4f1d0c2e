package websocket

import (
	"bytes"
	"encoding/json"

	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/wsframe"
)

// JSONCallbacks are the callbacks of a JSONSession. Text messages are decoded
// and passed to OnJSON; binary messages are passed through unchanged.
type JSONCallbacks struct {
	OnOpen   func(c *conn.Conn)
	OnJSON   func(v any, c *conn.Conn)
	OnBinary func(msg []byte, c *conn.Conn)
	OnClose  func(c *conn.Conn, info CloseInfo)
}

// JSONSession exchanges JSON documents as text messages.
type JSONSession struct {
	*Session
}

// NewJSONSession creates a session that decodes inbound text as JSON. A
// message that is not valid JSON closes the sending connection with 1003.
// Numbers decode as json.Number.
func NewJSONSession(name string, cb JSONCallbacks, opts ...SessionOption) *JSONSession {
	js := &JSONSession{}
	js.Session = NewSession(name, Callbacks{
		OnOpen:   cb.OnOpen,
		OnBinary: cb.OnBinary,
		OnClose:  cb.OnClose,
		OnText: func(msg []byte, c *conn.Conn) {
			if !json.Valid(msg) {
				js.logger.Debug("invalid JSON message", "conn_id", c.ID(), "bytes", len(msg))
				js.fail(c, wsframe.CloseUnsupportedData, "Read-Error: invalid JSON", nil)
				return
			}
			dec := json.NewDecoder(bytes.NewReader(msg))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				js.fail(c, wsframe.CloseUnsupportedData, "Read-Error: invalid JSON", err)
				return
			}
			if cb.OnJSON != nil {
				cb.OnJSON(v, c)
			}
		},
	}, opts...)
	return js
}

// SendJSON marshals v and broadcasts it as a text message.
func (js *JSONSession) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	js.SendText(data)
	return nil
}

// SendJSONTo marshals v and sends it to c as a text message.
func (js *JSONSession) SendJSONTo(c *conn.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return js.SendTextTo(c, data)
}
