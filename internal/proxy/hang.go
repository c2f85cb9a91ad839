package proxy

import (
	"log"
	"net"
	"net/http"
	"time"
)

// hangAndReset implements spec.md §4.4/§4.5's "timeout" terminal outcome:
// the connection is hijacked (taken over from net/http, per the §9 design
// note that a handler forced to emit a response must acquire the raw
// connection before the timer fires) and, after duration, torn down with
// SetLinger(0)+Close so the client sees a hard reset rather than any HTTP
// response. If the client disconnects first, the same teardown runs early
// and the pending timer is cancelled.
//
// Grounded on Maverick0351a-PathLab/internal/proxy/proxy.go's abortConn:
// SetLinger(0) on the underlying *net.TCPConn causes an RST on Close
// instead of a clean FIN, matching "destroy it (hard reset / close
// without HTTP headers)" in spec.md §3.
func hangAndReset(w http.ResponseWriter, duration time.Duration) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		// No raw connection available (e.g. some test ResponseRecorders).
		// There is nothing else this path can legitimately do: writing any
		// HTTP response here would violate "the literal tag timeout... no
		// other response is emitted on this path" (spec.md §4.5).
		log.Printf("[proxy] timeout hang requested but ResponseWriter is not a Hijacker")
		return
	}

	conn, buf, err := hj.Hijack()
	if err != nil {
		log.Printf("[proxy] hijack failed: %v", err)
		return
	}

	done := make(chan struct{})
	timer := time.AfterFunc(duration, func() {
		abortConn(conn)
		close(done)
	})

	// Watch for the client closing the connection first, per spec.md §5
	// ("a closed client connection cancels... any scheduled timers").
	go func() {
		defer func() {
			select {
			case <-done:
			default:
				if timer.Stop() {
					abortConn(conn)
					close(done)
				}
			}
		}()
		b := make([]byte, 1)
		_, _ = conn.Read(b)
	}()

	// buf (the *bufio.ReadWriter Hijack returns) is intentionally unused:
	// nothing is ever written to or read from it directly — only the
	// underlying net.Conn is needed for teardown.
	_ = buf
}

func abortConn(c net.Conn) {
	if tcp, ok := c.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	_ = c.Close()
}
