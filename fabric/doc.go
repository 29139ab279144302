// Package fabric implements the agent messaging transport: addressed,
// asynchronous, at-most-once delivery of messages between named endpoints.
//
// A Hub delivers within one process; a Node adds an HTTP transport so
// endpoints on different processes can reach each other through configured
// routes. The fabric itself offers no request/response correlation beyond
// the ReplyTo field a responder may set; callers that need correlated
// replies keep their own pending-call state (see the client package).
package fabric
