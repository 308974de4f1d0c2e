// Package websocket implements the server side of RFC 6455 on top of
// connections owned by package conn.
//
// An Upgrader is a conn.Handler that validates upgrade requests and hands the
// connection to the Session registered under the request path:
//
//	chat := websocket.NewSession("chat", websocket.Callbacks{
//	    OnText: func(msg []byte, c *conn.Conn) {
//	        chat.SendText(msg)
//	    },
//	})
//	up := websocket.NewUpgrader()
//	up.Register("chat", chat)
//
// A Session owns the frame parser and fragment buffer of every attached
// connection, reassembles messages, answers pings and closes connections that
// violate the protocol with status 1002 or 1003. Sending is synchronous and
// broadcasts write outside the session lock.
package websocket
