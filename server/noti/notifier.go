package noti

import (
	"encoding/json"
	"fmt"
)

type NotiError struct {
	code string
	msg  string
}

func (e *NotiError) Error() string {
	return fmt.Sprintf("Notification error: code = '%s', msg = '%s'", e.code, e.msg)
}

func (e *NotiError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"code": "noti:" + e.code,
		"msg":  e.msg,
	})
	return j
}

func NewNotiError(code string, msg string, a ...interface{}) *NotiError {
	return &NotiError{code: code, msg: fmt.Sprintf(msg, a...)}
}

//Event is one failed-operation payload on its way out of the process.
type Event struct {
	obj map[string]interface{}
}

func (e Event) Obj() map[string]interface{} {
	return e.obj
}

func NewFailureEvent(failedOperation map[string]interface{}) *Event {
	return &Event{obj: failedOperation}
}

type Notifier interface {
	NewNotification() chan *Event
}

func fanOut(in chan *Event, out chan *Event) {
	defer func() {
		close(out)
	}()
	for obj := range in {
		out <- obj
	}
}

//Broadcast decouples producers from the notifier's own channel; delivery is
//best-effort and never blocks the caller's batch.
func Broadcast(notifier Notifier) chan *Event {
	in := make(chan *Event, 100)
	out := notifier.NewNotification()
	go fanOut(in, out)
	return in
}
