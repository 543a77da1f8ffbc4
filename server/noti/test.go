package noti

type TestNotifier struct {
	Events chan *Event
}

func NewTestNotifier() *TestNotifier {
	return &TestNotifier{Events: make(chan *Event, 100)}
}

func (tn *TestNotifier) NewNotification() chan *Event {
	return tn.Events
}
