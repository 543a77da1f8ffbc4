package noti_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"tether/server/noti"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Failure notification", func() {
	It("fans events out to the notifier channel", func() {
		testNotifier := noti.NewTestNotifier()
		in := noti.Broadcast(testNotifier)

		in <- noti.NewFailureEvent(map[string]interface{}{"operationType": "insert"})
		in <- noti.NewFailureEvent(map[string]interface{}{"operationType": "update"})
		close(in)

		first := <-testNotifier.Events
		Expect(first.Obj()["operationType"]).To(Equal("insert"))
		second := <-testNotifier.Events
		Expect(second.Obj()["operationType"]).To(Equal("update"))
	})

	It("posts events to the configured callback URL", func() {
		var delivered int32
		received := make(chan map[string]interface{}, 1)
		callbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]interface{}
			Expect(json.NewDecoder(r.Body).Decode(&payload)).To(BeNil())
			atomic.AddInt32(&delivered, 1)
			received <- payload
			w.WriteHeader(http.StatusOK)
		}))
		defer callbackServer.Close()

		restNotifier, err := noti.NewRestNotifier(callbackServer.URL)
		Expect(err).To(BeNil())

		in := noti.Broadcast(restNotifier)
		in <- noti.NewFailureEvent(map[string]interface{}{"errorMessage": "record already exists"})
		close(in)

		Eventually(received).Should(Receive(HaveKeyWithValue("errorMessage", "record already exists")))
		Expect(atomic.LoadInt32(&delivered)).To(Equal(int32(1)))
	})

	It("refuses to build a notifier without a URL", func() {
		_, err := noti.NewRestNotifier("")
		Expect(err).NotTo(BeNil())
	})
})
