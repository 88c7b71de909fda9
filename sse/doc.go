// Package sse writes Server-Sent Events. The lookup backend streams each
// lookup through a Writer; the matching frame reader lives in httpclient/sse.
//
//	w, err := sse.NewWriter(c.Writer)
//	stop := w.KeepAlive(15 * time.Second)
//	defer stop()
//	_ = w.Event("progress", "1", payload)
package sse
