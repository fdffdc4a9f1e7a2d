// Package sse decodes the Server-Sent Events stream returned by the chat
// backend into ordered text deltas.
//
// The stream is a sequence of newline terminated lines. Lines of the form
//
//	data: {"choices":[{"delta":{"content":"..."}}]}
//
// carry one text delta each and the line "data: [DONE]" ends the stream.
// Comment lines (leading ':'), blank lines and other SSE fields are skipped.
//
// The decoder only reads. Callers that also need to forward the raw bytes
// downstream wrap the source in an io.TeeReader.
//
// See the HTML living standard:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse
