package schema

import (
	"sync"
)

type CollectionCache struct {
	mutex          sync.RWMutex
	collectionList map[string]*Collection
}

func NewCache() *CollectionCache {
	return &CollectionCache{mutex: sync.RWMutex{}, collectionList: make(map[string]*Collection)}
}

func (cc *CollectionCache) Get(collectionName string) *Collection {
	cc.mutex.RLock()
	defer cc.mutex.RUnlock()
	if collection, ok := cc.collectionList[collectionName]; ok {
		return collection
	}
	return nil
}

func (cc *CollectionCache) Set(collection *Collection) {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()
	cc.collectionList[collection.Name] = collection
}

func (cc *CollectionCache) Flush() {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()
	for collectionName := range cc.collectionList {
		delete(cc.collectionList, collectionName)
	}
}
