package fabric

import "context"

// Handler processes a message delivered to a registered address. A non-nil
// returned message is routed onward to its To address, which is how
// synchronous handlers reply to the sender. Handlers that reply on their
// own schedule return nil and send through the node directly.
type Handler func(ctx context.Context, message *Message) (*Message, error)
