/*
	Package jsonrpc2 implements bidirectional JSONRPC 2.0 over a single
	message-oriented connection. Batches are not supported.

	Remote is the engine bound to one connection. It is a client and a server
	at the same time: Go and Call issue requests whose responses are matched
	by id through a Registry of pending calls, while inbound requests are
	dispatched to a Server. Remote does no I/O of its own. A transport adapter
	supplies a Transport to send frames, feeds every inbound frame to
	OnMessageReceived and reports the end of the connection with
	OnConnectionClosed, at which point every pending call fails.

	Server is an RPC method registry. Handlers are added one by one with
	AddHandler, or given a receiver, Register will expose its callable methods.

	Errors that belong to one call complete that call's Future. Everything
	else (malformed frames, unmatched responses) goes to the ErrorSink given to
	NewRemote.

	When a Remote receives a call, it includes a context which contains a
	service value that can be acquired with CtxService(ctx). The service can be
	used to send calls back to the caller.
*/
package jsonrpc2
