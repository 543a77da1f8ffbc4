package record

type itemIntent int

const (
	intentCreate itemIntent = iota + 1
	intentLink
)

//Item is one related entry of an association batch: either a full payload to
//create or a bare primary-key value to link. The intent is decided once, at
//the boundary, never re-inspected downstream.
type Item struct {
	intent  itemIntent
	payload map[string]interface{}
	key     interface{}
}

func CreateItem(payload map[string]interface{}) Item {
	return Item{intent: intentCreate, payload: payload}
}

func LinkItem(key interface{}) Item {
	return Item{intent: intentLink, key: key}
}

func (item Item) IsCreate() bool {
	return item.intent == intentCreate
}

func (item Item) Payload() map[string]interface{} {
	return item.payload
}

func (item Item) Key() interface{} {
	return item.key
}

//ClassifyItems applies the create-vs-link rule to raw values: a non-nil
//structured value with at least one field is a create, anything else is
//treated as a bare key.
func ClassifyItems(rawItems []interface{}) []Item {
	items := make([]Item, 0, len(rawItems))
	for _, rawItem := range rawItems {
		if payload, ok := rawItem.(map[string]interface{}); ok && len(payload) > 0 {
			items = append(items, CreateItem(payload))
		} else {
			items = append(items, LinkItem(rawItem))
		}
	}
	return items
}
