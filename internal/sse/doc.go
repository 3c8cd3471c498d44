// Package sse implements the Server-Sent Events framing used by the reload
// channel.
//
// Every frame is a text block terminated by a blank line. Data frames carry
// one of the tokens [TokenConnected] or [TokenReload]; keepalives are comment
// frames (lines starting with ":") which [Reader] never dispatches.
package sse
