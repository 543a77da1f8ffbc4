package schema

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	pkgerrors "github.com/pkg/errors"

	"tether/server/schema/description"
	"tether/utils"
)

//CollectionDescription driver interface.
type DescriptionSyncer interface {
	List() ([]*description.CollectionDescription, error)
	Get(name string) (*description.CollectionDescription, bool, error)
	Create(d description.CollectionDescription) error
	Update(name string, d description.CollectionDescription) (bool, error)
	Remove(name string) (bool, error)
}

//GetDescriptionSyncer builds the syncer configured for the application: a
//Redis-backed one when CACHE_TYPE is REDIS, the in-process one otherwise.
func GetDescriptionSyncer(config *utils.AppConfig) DescriptionSyncer {
	if config.CacheType == "REDIS" && config.RedisUrl != "" {
		redisOptions, err := redis.ParseURL(config.RedisUrl)
		if err == nil {
			return NewRedisDescriptionSyncer(redis.NewClient(redisOptions))
		}
	}
	return NewInMemoryDescriptionSyncer()
}

type InMemoryDescriptionSyncer struct {
	mutex        sync.RWMutex
	descriptions map[string]*description.CollectionDescription
}

func NewInMemoryDescriptionSyncer() *InMemoryDescriptionSyncer {
	return &InMemoryDescriptionSyncer{descriptions: make(map[string]*description.CollectionDescription)}
}

func (syncer *InMemoryDescriptionSyncer) List() ([]*description.CollectionDescription, error) {
	syncer.mutex.RLock()
	defer syncer.mutex.RUnlock()
	descriptionList := make([]*description.CollectionDescription, 0)
	for _, collectionDescription := range syncer.descriptions {
		descriptionList = append(descriptionList, collectionDescription.Clone())
	}
	return descriptionList, nil
}

func (syncer *InMemoryDescriptionSyncer) Get(name string) (*description.CollectionDescription, bool, error) {
	syncer.mutex.RLock()
	defer syncer.mutex.RUnlock()
	if collectionDescription, ok := syncer.descriptions[name]; ok {
		return collectionDescription.Clone(), true, nil
	}
	return nil, false, nil
}

func (syncer *InMemoryDescriptionSyncer) Create(d description.CollectionDescription) error {
	syncer.mutex.Lock()
	defer syncer.mutex.Unlock()
	if _, ok := syncer.descriptions[d.Name]; ok {
		return description.NewCollectionDescriptionError(d.Name, "create", description.ErrNotValid, "Collection '%s' already exists", d.Name)
	}
	syncer.descriptions[d.Name] = d.Clone()
	return nil
}

func (syncer *InMemoryDescriptionSyncer) Update(name string, d description.CollectionDescription) (bool, error) {
	syncer.mutex.Lock()
	defer syncer.mutex.Unlock()
	if _, ok := syncer.descriptions[name]; !ok {
		return false, nil
	}
	syncer.descriptions[name] = d.Clone()
	return true, nil
}

func (syncer *InMemoryDescriptionSyncer) Remove(name string) (bool, error) {
	syncer.mutex.Lock()
	defer syncer.mutex.Unlock()
	if _, ok := syncer.descriptions[name]; !ok {
		return false, nil
	}
	delete(syncer.descriptions, name)
	return true, nil
}

const redisDescriptionKeyPrefix = "tether:schema:"

type RedisDescriptionSyncer struct {
	client *redis.Client
}

func NewRedisDescriptionSyncer(client *redis.Client) *RedisDescriptionSyncer {
	return &RedisDescriptionSyncer{client: client}
}

func (syncer *RedisDescriptionSyncer) List() ([]*description.CollectionDescription, error) {
	ctx := context.Background()
	keys, err := syncer.client.Keys(ctx, redisDescriptionKeyPrefix+"*").Result()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "listing collection descriptions")
	}
	descriptionList := make([]*description.CollectionDescription, 0, len(keys))
	for _, key := range keys {
		collectionDescription, found, err := syncer.Get(strings.TrimPrefix(key, redisDescriptionKeyPrefix))
		if err != nil {
			return nil, err
		}
		if found {
			descriptionList = append(descriptionList, collectionDescription)
		}
	}
	return descriptionList, nil
}

func (syncer *RedisDescriptionSyncer) Get(name string) (*description.CollectionDescription, bool, error) {
	encoded, err := syncer.client.Get(context.Background(), redisDescriptionKeyPrefix+name).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, "getting collection description '%s'", name)
	}
	collectionDescription := new(description.CollectionDescription)
	if err := json.Unmarshal([]byte(encoded), collectionDescription); err != nil {
		return nil, false, description.NewCollectionDescriptionError(name, "get", description.ErrJsonUnmarshal, err.Error())
	}
	return collectionDescription, true, nil
}

func (syncer *RedisDescriptionSyncer) Create(d description.CollectionDescription) error {
	if _, found, err := syncer.Get(d.Name); err != nil {
		return err
	} else if found {
		return description.NewCollectionDescriptionError(d.Name, "create", description.ErrNotValid, "Collection '%s' already exists", d.Name)
	}
	return syncer.set(d.Name, &d)
}

func (syncer *RedisDescriptionSyncer) Update(name string, d description.CollectionDescription) (bool, error) {
	if _, found, err := syncer.Get(name); err != nil || !found {
		return false, err
	}
	return true, syncer.set(name, &d)
}

func (syncer *RedisDescriptionSyncer) Remove(name string) (bool, error) {
	removed, err := syncer.client.Del(context.Background(), redisDescriptionKeyPrefix+name).Result()
	if err != nil {
		return false, pkgerrors.Wrapf(err, "removing collection description '%s'", name)
	}
	return removed > 0, nil
}

func (syncer *RedisDescriptionSyncer) set(name string, d *description.CollectionDescription) error {
	encoded, err := json.Marshal(d)
	if err != nil {
		return description.NewCollectionDescriptionError(name, "set", description.ErrJsonMarshal, err.Error())
	}
	if err := syncer.client.Set(context.Background(), redisDescriptionKeyPrefix+name, encoded, 0).Err(); err != nil {
		return pkgerrors.Wrapf(err, "storing collection description '%s'", name)
	}
	return nil
}
