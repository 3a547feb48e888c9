package xrouter

// ErrorEvent is emitted exactly once for every error encountered during
// dispatch, whether or not the error handling cascade ultimately produces a
// response. It exists for external monitoring and carries no handling
// obligations.
type ErrorEvent struct {
	RequestId string
	Err       error
}

// ErrorEventHandler receives ErrorEvent notifications. Handlers run on the
// dispatching goroutine and must not block.
type ErrorEventHandler interface {
	AcceptErrorEvent(event *ErrorEvent)
}

// ErrorEventHandlerF adapts a plain function to the ErrorEventHandler
// interface.
type ErrorEventHandlerF func(event *ErrorEvent)

func (handler ErrorEventHandlerF) AcceptErrorEvent(event *ErrorEvent) {
	handler(event)
}

// FatalEvent is raised at the transport boundary when a dispatch error
// escapes the error handling cascade or a panic is recovered. The owning
// process is expected to treat it as fatal-class (e.g. scheduled shutdown
// after in-flight logs flush).
type FatalEvent struct {
	RequestId string
	Err       error
	Stack     string
}

// FatalEventHandler receives FatalEvent notifications from the transport
// shim.
type FatalEventHandler interface {
	AcceptFatalEvent(event *FatalEvent)
}

// FatalEventHandlerF adapts a plain function to the FatalEventHandler
// interface.
type FatalEventHandlerF func(event *FatalEvent)

func (handler FatalEventHandlerF) AcceptFatalEvent(event *FatalEvent) {
	handler(event)
}
