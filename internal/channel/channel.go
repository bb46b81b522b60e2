// Package channel defines the capability the connection layer delegates
// application-data policy to, and ships three reference implementations
// covering the common reliability/ordering combinations.
package channel

// Channel is the external contract the Remote Connection calls against. The
// core never looks inside a message; framing and ordering are entirely the
// channel's business.
type Channel interface {
	// SendMessage enqueues data for eventual delivery.
	SendMessage(data []byte)
	// GetMessagesToSend returns messages ready to go out in the packet
	// currently being built for currentSequence, without exceeding
	// budgetBytes of combined message size.
	GetMessagesToSend(budgetBytes int, currentSequence uint16) [][]byte
	// ProcessAck is called once per acked packet sequence, on every
	// channel, whether or not that packet carried this channel's messages.
	ProcessAck(sequence uint16)
	// ProcessMessages folds newly arrived messages (in wire order) into the
	// channel's inbound state.
	ProcessMessages(messages [][]byte)
	// ReceiveMessage pops the next message ready for the application, if
	// any.
	ReceiveMessage() ([]byte, bool)
}
