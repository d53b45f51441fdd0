package cmt

// MessageID is a 16-bit enumerated message tag. The high byte groups
// ids into namespaces.
type MessageID uint16

// Namespace boundaries for MessageID, grouped by high byte.
const (
	// NamespaceCommon covers 0x0000-0x00FF.
	NamespaceCommon MessageID = 0x0000
	// NamespaceHostOS covers 0x0100-0x01FF.
	NamespaceHostOS MessageID = 0x0100
	// NamespaceControlUI covers 0x0200-0x02FF.
	NamespaceControlUI MessageID = 0x0200

	namespaceMask = 0xFF00
)

// Namespace returns the namespace an id belongs to (the id's high
// byte, masked to a namespace boundary constant).
func (id MessageID) Namespace() MessageID {
	return id & namespaceMask
}

// Reserved common-namespace ids used by the runtime itself.
const (
	// MsgHousekeeping is the LOW-priority, discardable heartbeat
	// broadcast to both cores every 16 ticks.
	MsgHousekeeping MessageID = NamespaceCommon | 0x01
	// MsgSleepExpired is the id carried by sleep-style scheduler
	// slots; its payload identifies the sleep callback to invoke.
	MsgSleepExpired MessageID = NamespaceCommon | 0x02
)

// Priority selects which ring within a QueueSet a message is
// delivered to.
type Priority uint8

const (
	// PriorityNormal is the default priority.
	PriorityNormal Priority = iota
	// PriorityHigh preempts normal and low traffic.
	PriorityHigh
	// PriorityLow is drained only once high and normal are empty.
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// PayloadKind tags which variant of Payload is populated. The
// variant used is implied by the Message's id; the union never
// grows, so a new field always extends Payload rather than replacing
// one of the existing variants.
type PayloadKind uint8

const (
	// PayloadNone carries no data.
	PayloadNone PayloadKind = iota
	// PayloadScalar carries a single 32-bit scalar.
	PayloadScalar
	// PayloadIndex carries a capability-by-index reference into a
	// client-owned table, replacing the source's raw user_data
	// pointer (see design notes).
	PayloadIndex
	// PayloadSleep carries a sleep record: a callback index plus an
	// opaque user value, dispatched by the generic sleep handler.
	PayloadSleep
	// PayloadRCDetect carries an RC autodetect result.
	PayloadRCDetect
	// PayloadSensorDelta carries a sensor-bank delta.
	PayloadSensorDelta
	// PayloadServoParams carries a servo parameter triple.
	PayloadServoParams
	// PayloadTimestamp carries a ms timestamp snapshot.
	PayloadTimestamp
)

// SleepPayload is the fixed-size record carried by sleep-style
// scheduler slots. CallbackIndex is a capability-by-index into a
// client-owned table of SleepFunc values rather than a raw pointer,
// so the payload stays copyable and the union stays fixed-size.
type SleepPayload struct {
	CallbackIndex uint32
	User          uint32
}

// RCDetectPayload reports the outcome of RCRX protocol autodetection.
type RCDetectPayload struct {
	BaudHz    uint32
	Protocol  uint8
	Inverted  bool
	Candidate uint8
}

// SensorDeltaPayload carries a change in a sensor bank reading.
type SensorDeltaPayload struct {
	BankIndex uint8
	ValueIdx  uint8
	Delta     int16
}

// ServoParamsPayload carries a servo parameter triple (e.g. a
// position/velocity/torque setpoint).
type ServoParamsPayload struct {
	Channel uint8
	A, B, C int32
}

// Payload is a fixed-size tagged union of message payload variants.
// Only the field identified by Kind is meaningful; the union never
// grows new variants, only new named fields.
type Payload struct {
	Kind PayloadKind

	Scalar       uint32
	Index        uint32
	Sleep        SleepPayload
	RCDetect     RCDetectPayload
	SensorDelta  SensorDeltaPayload
	ServoParams  ServoParamsPayload
	Timestamp    uint32
}

// HandlerFunc is invoked by a Dispatcher for a retrieved Message.
type HandlerFunc func(msg Message)

// pinnedHandler models the Message.handler field as an explicit
// two-variant alternative (set vs. unset) rather than a nullable
// function pointer, per the design note in SPEC_FULL.md §9: this
// removes a per-delivery nil check from the dispatcher's hot loop and
// makes the re-post-to-table trick (ClearHandler) explicit at the
// type level instead of relying on callers remembering to nil a
// pointer.
type pinnedHandler struct {
	fn  HandlerFunc
	set bool
}

// IsSet reports whether a pinned handler is present.
func (h pinnedHandler) IsSet() bool { return h.set }

// Message is an immutable value carrying an id, priority, payload,
// optional pinned handler, post sequence, and post timestamp. Messages
// are copied at post time; no shared mutable state survives the queue
// boundary.
type Message struct {
	ID         MessageID
	Priority   Priority
	Payload    Payload
	Sequence   uint32
	PostTimeMs uint32

	handler pinnedHandler
}

// NewMessage constructs a Message with the given id, NORMAL priority,
// no pinned handler, and a zeroed sequence/post time (both are
// assigned at post).
func NewMessage(id MessageID) Message {
	return Message{ID: id, Priority: PriorityNormal}
}

// NewMessageWithPriority constructs a Message with an explicit
// priority.
func NewMessageWithPriority(id MessageID, priority Priority) Message {
	return Message{ID: id, Priority: priority}
}

// NewMessageWithHandler constructs a Message with an explicit
// priority and a pinned handler that overrides registry lookup for
// this single delivery.
func NewMessageWithHandler(id MessageID, priority Priority, fn HandlerFunc) Message {
	return Message{ID: id, Priority: priority, handler: pinnedHandler{fn: fn, set: true}}
}

// WithPayload returns a copy of msg with its payload replaced.
func (m Message) WithPayload(p Payload) Message {
	m.Payload = p
	return m
}

// PinnedHandler returns the message's pinned handler and whether one
// is set.
func (m Message) PinnedHandler() (HandlerFunc, bool) {
	return m.handler.fn, m.handler.set
}

// ClearHandler returns a copy of msg with any pinned handler removed,
// so a re-post of the returned value dispatches through the registry
// table rather than the prior pinned handler.
func (m Message) ClearHandler() Message {
	m.handler = pinnedHandler{}
	return m
}
