package record_test

import (
	"tether/server/mem"
	"tether/server/record"
	"tether/server/schema"
	"tether/server/schema/description"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Association linking", func() {
	var descriptionSyncer *schema.InMemoryDescriptionSyncer
	var schemaStore *schema.SchemaStore
	var store *mem.Store
	var linker *record.Linker

	BeforeEach(func() {
		descriptionSyncer = schema.NewInMemoryDescriptionSyncer()
		schemaStore = schema.NewStore(descriptionSyncer)
		store = mem.NewStore(schemaStore)
		linker = record.NewLinker(store)
	})

	register := func(collectionDescription description.CollectionDescription) {
		(&description.NormalizationService{}).Normalize(&collectionDescription)
		Expect(descriptionSyncer.Create(collectionDescription)).To(BeNil())
	}

	havingPersonWithDogs := func() *schema.Collection {
		register(description.CollectionDescription{
			Name: "person",
			Attributes: []description.Attribute{
				{Name: "id", Type: description.AttributeTypeNumber, PrimaryKey: true},
				{Name: "name", Type: description.AttributeTypeString, Optional: true},
				{Name: "dogs", Collection: "dog", On: "owner"},
			},
		})
		register(description.CollectionDescription{
			Name: "dog",
			Attributes: []description.Attribute{
				{Name: "id", Type: description.AttributeTypeNumber, PrimaryKey: true},
				{Name: "name", Type: description.AttributeTypeString, Optional: true},
				{Name: "owner", Type: description.AttributeTypeNumber, References: "person", Optional: true},
			},
		})
		person, err := schemaStore.Get("person")
		Expect(err).To(BeNil())
		return person
	}

	havingPersonWithTags := func(junctionAttributes []description.Attribute) *schema.Collection {
		register(description.CollectionDescription{
			Name: "person",
			Attributes: []description.Attribute{
				{Name: "id", Type: description.AttributeTypeNumber, PrimaryKey: true},
				{Name: "tags", Collection: "person_tag", On: "person"},
			},
		})
		register(description.CollectionDescription{
			Name:          "person_tag",
			JunctionTable: true,
			Attributes:    junctionAttributes,
		})
		person, err := schemaStore.Get("person")
		Expect(err).To(BeNil())
		return person
	}

	It("injects the parent key into the foreign-key column when creating a direct child", func() {
		person := havingPersonWithDogs()

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"dogs": {record.CreateItem(map[string]interface{}{"name": "Rex"})},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(BeEmpty())

		dogCollection, err := store.Collection("dog")
		Expect(err).To(BeNil())
		createdDog, err := dogCollection.FindOne(map[string]interface{}{"name": "Rex"})
		Expect(err).To(BeNil())
		Expect(createdDog).NotTo(BeNil())
		Expect(createdDog["owner"]).To(Equal(1))
	})

	It("re-parents an existing child identified by a bare key", func() {
		person := havingPersonWithDogs()
		dogCollection, err := store.Collection("dog")
		Expect(err).To(BeNil())
		_, err = dogCollection.Create(map[string]interface{}{"id": 42, "name": "Buddy"})
		Expect(err).To(BeNil())

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"dogs": {record.LinkItem(42)},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(BeEmpty())

		linkedDog, err := dogCollection.FindOne(map[string]interface{}{"id": 42})
		Expect(err).To(BeNil())
		Expect(linkedDog["owner"]).To(Equal(1))
		Expect(store.Count("dog")).To(Equal(1))
	})

	It("reports a failed update with the criteria and values it attempted", func() {
		person := havingPersonWithDogs()

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"dogs": {record.LinkItem(42)},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(HaveLen(1))
		Expect(failedOperations[0].Operation).To(Equal(record.OperationUpdate))
		Expect(failedOperations[0].Collection).To(Equal("dog"))
		Expect(failedOperations[0].Criteria).To(Equal(map[string]interface{}{"id": 42}))
		Expect(failedOperations[0].Values).To(Equal(map[string]interface{}{"owner": 1}))
		Expect(failedOperations[0].Message).NotTo(BeEmpty())
	})

	It("creates a junction row when linking an existing record through a junction", func() {
		person := havingPersonWithTags([]description.Attribute{
			{Name: "person", Type: description.AttributeTypeNumber, References: "person"},
			{Name: "tag", Type: description.AttributeTypeNumber, References: "tag"},
		})

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"tags": {record.LinkItem(7)},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(BeEmpty())

		junctionCollection, err := store.Collection("person_tag")
		Expect(err).To(BeNil())
		junctionRow, err := junctionCollection.FindOne(map[string]interface{}{"person": 1, "tag": 7})
		Expect(err).To(BeNil())
		Expect(junctionRow).NotTo(BeNil())
	})

	It("never duplicates a junction row and reports the second attempt", func() {
		person := havingPersonWithTags([]description.Attribute{
			{Name: "person", Type: description.AttributeTypeNumber, References: "person"},
			{Name: "tag", Type: description.AttributeTypeNumber, References: "tag"},
		})
		associations := map[string][]record.Item{"tags": {record.LinkItem(7)}}

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, associations)
		Expect(err).To(BeNil())
		Expect(failedOperations).To(BeEmpty())

		failedOperations, err = linker.LinkRelated(person, map[string]interface{}{"id": 1}, associations)
		Expect(err).To(BeNil())
		Expect(failedOperations).To(HaveLen(1))
		Expect(failedOperations[0].Operation).To(Equal(record.OperationInsert))
		Expect(failedOperations[0].Message).To(Equal("record already exists"))
		Expect(store.Count("person_tag")).To(Equal(1))
	})

	It("creates the junction record unmodified and then reconciles its join row", func() {
		person := havingPersonWithTags([]description.Attribute{
			{Name: "id", Type: description.AttributeTypeNumber, PrimaryKey: true},
			{Name: "person", Type: description.AttributeTypeNumber, References: "person", Optional: true},
			{Name: "tag", Type: description.AttributeTypeNumber, References: "tag", Optional: true},
		})

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"tags": {record.CreateItem(map[string]interface{}{"tag": 5})},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(BeEmpty())

		junctionCollection, err := store.Collection("person_tag")
		Expect(err).To(BeNil())
		//the created record itself plus its join row
		Expect(store.Count("person_tag")).To(Equal(2))
		joinRow, err := junctionCollection.FindOne(map[string]interface{}{"person": 1, "tag": 1})
		Expect(err).To(BeNil())
		Expect(joinRow).NotTo(BeNil())
	})

	It("fails per item when the junction has no column referencing the child side", func() {
		person := havingPersonWithTags([]description.Attribute{
			{Name: "person", Type: description.AttributeTypeNumber, References: "person"},
		})

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"tags": {record.LinkItem(7)},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(HaveLen(1))
		Expect(failedOperations[0].Message).To(Equal("no primary key set on the child record"))
		Expect(store.Count("person_tag")).To(Equal(0))
	})

	It("fails per item when the child collection declares no primary key", func() {
		register(description.CollectionDescription{
			Name: "person",
			Attributes: []description.Attribute{
				{Name: "id", Type: description.AttributeTypeNumber, PrimaryKey: true},
				{Name: "notes", Collection: "note", On: "owner"},
			},
		})
		register(description.CollectionDescription{
			Name: "note",
			Attributes: []description.Attribute{
				{Name: "text", Type: description.AttributeTypeString, Optional: true},
				{Name: "owner", Type: description.AttributeTypeNumber, References: "person", Optional: true},
			},
		})
		person, err := schemaStore.Get("person")
		Expect(err).To(BeNil())

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"notes": {record.LinkItem(5)},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(HaveLen(1))
		Expect(failedOperations[0].Operation).To(Equal(record.OperationUpdate))
		Expect(failedOperations[0].Message).To(Equal("no primary key defined on the child record"))
	})

	It("refuses the whole batch when the parent collection has no primary key", func() {
		register(description.CollectionDescription{
			Name: "person",
			Attributes: []description.Attribute{
				{Name: "name", Type: description.AttributeTypeString, Optional: true},
				{Name: "dogs", Collection: "dog", On: "owner"},
			},
		})
		register(description.CollectionDescription{
			Name: "dog",
			Attributes: []description.Attribute{
				{Name: "id", Type: description.AttributeTypeNumber, PrimaryKey: true},
			},
		})
		person, err := schemaStore.Get("person")
		Expect(err).To(BeNil())

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"name": "A"}, map[string][]record.Item{
			"dogs": {record.CreateItem(map[string]interface{}{"name": "Rex"})},
		})
		Expect(err).NotTo(BeNil())
		Expect(err).To(BeAssignableToTypeOf(&record.LinkError{}))
		Expect(failedOperations).To(BeNil())
		Expect(store.Count("dog")).To(Equal(0))
	})

	It("refuses the whole batch when the parent record carries no key value", func() {
		person := havingPersonWithDogs()

		for _, parentRecord := range []map[string]interface{}{
			{"name": "A"},
			{"id": nil},
			{"id": ""},
		} {
			failedOperations, err := linker.LinkRelated(person, parentRecord, map[string][]record.Item{
				"dogs": {record.LinkItem(42)},
			})
			Expect(err).NotTo(BeNil())
			Expect(failedOperations).To(BeNil())
		}
		Expect(store.Count("dog")).To(Equal(0))
	})

	It("skips association names the parent does not declare", func() {
		person := havingPersonWithDogs()

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"ghosts": {record.LinkItem(1)},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(BeEmpty())
	})

	It("runs the whole batch even when some items fail", func() {
		person := havingPersonWithDogs()

		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"dogs": {
				record.CreateItem(map[string]interface{}{"name": "Rex"}),
				record.LinkItem(99),
				record.CreateItem(map[string]interface{}{"name": "Buddy"}),
				record.CreateItem(map[string]interface{}{"name": "Spot"}),
				record.CreateItem(map[string]interface{}{"name": "Toto"}),
			},
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(HaveLen(1))
		Expect(failedOperations[0].Operation).To(Equal(record.OperationUpdate))
		Expect(store.Count("dog")).To(Equal(4))
	})

	It("collects every failure of a concurrent batch", func() {
		person := havingPersonWithDogs()

		items := make([]record.Item, 0, 30)
		for i := 0; i < 30; i++ {
			items = append(items, record.LinkItem(1000+i))
		}
		failedOperations, err := linker.LinkRelated(person, map[string]interface{}{"id": 1}, map[string][]record.Item{
			"dogs": items,
		})
		Expect(err).To(BeNil())
		Expect(failedOperations).To(HaveLen(30))
	})
})
