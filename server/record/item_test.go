package record_test

import (
	"tether/server/record"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Item classification", func() {
	It("treats a structured value with fields as a create", func() {
		items := record.ClassifyItems([]interface{}{map[string]interface{}{"name": "Rex"}})
		Expect(items).To(HaveLen(1))
		Expect(items[0].IsCreate()).To(BeTrue())
		Expect(items[0].Payload()).To(Equal(map[string]interface{}{"name": "Rex"}))
	})

	It("treats scalars, nil and empty objects as bare keys", func() {
		items := record.ClassifyItems([]interface{}{42, "abc", nil, map[string]interface{}{}})
		Expect(items).To(HaveLen(4))
		for _, item := range items {
			Expect(item.IsCreate()).To(BeFalse())
		}
		Expect(items[0].Key()).To(Equal(42))
		Expect(items[1].Key()).To(Equal("abc"))
		Expect(items[2].Key()).To(BeNil())
	})

	It("keeps the order of a mixed batch", func() {
		items := record.ClassifyItems([]interface{}{
			map[string]interface{}{"name": "Rex"},
			42,
			map[string]interface{}{"name": "Buddy"},
		})
		Expect(items).To(HaveLen(3))
		Expect(items[0].IsCreate()).To(BeTrue())
		Expect(items[1].IsCreate()).To(BeFalse())
		Expect(items[2].IsCreate()).To(BeTrue())
	})
})
