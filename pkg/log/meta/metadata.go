// Package meta 在请求上下文中携带可变的日志元信息（请求ID、连接器ID等）
package meta

import (
	"context"
	"sync"

	"moff.io/moff-connect/pkg/log"
)

// 元信息对象
type metadata struct {
	// 读写锁保护，确保并发安全
	carrier map[interface{}]interface{}
	mu      sync.RWMutex
}

func (c *metadata) Value(key interface{}) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carrier[key]
}

func (c *metadata) WithValue(key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carrier[key] = value
}

func (c *metadata) fields() log.Fields {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fields := make(log.Fields, len(c.carrier))
	for k, v := range c.carrier {
		if name, ok := k.(Key); ok {
			fields[string(name)] = v
		}
	}
	return fields
}

type contextKey struct{}

var metaContextKey = contextKey{}

// Key 可导出为日志字段的元信息键
type Key string

const (
	RequestIDKey   Key = "request_id"
	ConnectorIDKey Key = "connector_id"
)

// Begin 开启元信息对象
// 注意：
//  1. 该方法在整个上下文中注入元信息对象，应该在尽量靠近根上下文处调用
//  2. 多次调用数据安全：父上下文中已存在元信息对象时直接返回父上下文
func Begin(parent context.Context) context.Context {
	if parent.Value(metaContextKey) != nil {
		return parent
	}
	return context.WithValue(parent, metaContextKey, &metadata{
		carrier: make(map[interface{}]interface{}),
	})
}

// 从上下文获取元信息对象
func metadataFrom(parent context.Context) *metadata {
	value := parent.Value(metaContextKey)
	if value == nil {
		log.Debug("meta not found from context, should call meta.Begin() first?")
		return nil
	}
	return value.(*metadata)
}

// WithValue 设置键值对至上下文的元信息对象
func WithValue(parent context.Context, key, val interface{}) {
	meta := metadataFrom(parent)
	if meta == nil {
		return
	}
	meta.WithValue(key, val)
}

// Value 从上下文的元信息对象中获取对应key的值
func Value(parent context.Context, key interface{}) interface{} {
	meta := metadataFrom(parent)
	if meta == nil {
		return nil
	}
	return meta.Value(key)
}

// Fields 返回上下文中以 Key 为键的元信息，用作结构化日志字段
func Fields(parent context.Context) log.Fields {
	meta := metadataFrom(parent)
	if meta == nil {
		return log.Fields{}
	}
	return meta.fields()
}
