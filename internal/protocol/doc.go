// Package protocol defines the message envelopes exchanged with the topology
// server and the typed payloads carried in their Obj field.
//
// Every message is a JSON object {Namespace, Type, Status, Obj}. Obj is kept
// raw until a handler knows which payload type to decode it into, so an
// unknown or malformed payload never aborts decoding of the envelope itself.
package protocol
